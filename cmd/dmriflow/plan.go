package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dmriflow/dmriflow/internal/pipeline"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Assemble a subject's task graphs without running them",
	Long: `Probes the input directory, assembles the anatomical and per-series
graphs for one subject, and prints them as YAML. Assembly performs all
configuration and input validation, so a successful plan means the subject
can run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := buildLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		plan, err := assembleSubject(cmd.Context(), cfg, logger, subjectID)
		if err != nil {
			return err
		}

		graphs := []*pipeline.Graph{plan.Anatomical}
		for _, d := range plan.DWI {
			graphs = append(graphs, d.Graph)
		}
		for _, g := range graphs {
			// Compiling surfaces wiring mistakes the builders missed.
			compiled, err := pipeline.Compile(g)
			if err != nil {
				return fmt.Errorf("graph %s does not compile: %w", g.Name, err)
			}
			fmt.Printf("# graph %s: %d nodes, %d edges, execution order: %v\n",
				g.Name, len(g.Nodes), len(g.Edges), compiled.Order)
			out, err := yaml.Marshal(g)
			if err != nil {
				return err
			}
			if _, err := os.Stdout.Write(out); err != nil {
				return err
			}
			fmt.Println("---")
		}
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&subjectID, "subject", "", "subject label (without the sub- prefix)")
	_ = planCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(planCmd)
}
