package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/constants"
	"github.com/dmriflow/dmriflow/internal/workflows"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Assemble a subject's graphs and execute them on the worker fleet",
	Long: `Assembles the subject's graphs, submits the anatomical workflow first,
seeds each per-series workflow with its outputs, and waits for completion.`,
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

		ctx := cmd.Context()
		plan, err := assembleSubject(ctx, cfg, logger, subjectID)
		if err != nil {
			return err
		}

		c, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			return fmt.Errorf("connect to Temporal: %w", err)
		}
		defer c.Close()

		taskQueue := cfg.Temporal.TaskQueue
		if taskQueue == "" {
			taskQueue = constants.TaskQueue
		}
		execute := func(input workflows.ReconWorkflowInput) (workflows.ReconWorkflowResult, error) {
			run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
				ID:        fmt.Sprintf("%s-%s", input.Graph.Name, uuid.NewString()[:8]),
				TaskQueue: taskQueue,
			}, workflows.ReconWorkflow, input)
			if err != nil {
				return workflows.ReconWorkflowResult{}, err
			}
			logger.Info("Workflow started",
				zap.String("graph", input.Graph.Name),
				zap.String("workflow_id", run.GetID()),
			)
			var result workflows.ReconWorkflowResult
			if err := run.Get(ctx, &result); err != nil {
				return workflows.ReconWorkflowResult{}, err
			}
			return result, nil
		}

		// Anatomical preparation runs once; its outputs seed every series.
		anatResult, err := execute(workflows.ReconWorkflowInput{
			SubjectID: subjectID,
			Graph:     plan.Anatomical,
			WorkDir:   cfg.WorkDir,
		})
		if err != nil {
			return fmt.Errorf("anatomical workflow: %w", err)
		}

		for _, d := range plan.DWI {
			// The DWI series and its companions resolve through the graph's
			// ingress node on the worker; only the anatomical outputs are
			// seeded from here.
			result, err := execute(workflows.ReconWorkflowInput{
				SubjectID:   subjectID,
				Graph:       d.Graph,
				InputFields: anatResult.Outputs,
				WorkDir:     cfg.WorkDir,
			})
			if err != nil {
				return fmt.Errorf("series %s: %w", d.DWIFile, err)
			}
			logger.Info("Series workflow completed",
				zap.String("graph", d.Graph.Name),
				zap.Int("derivatives", len(result.Derivatives)),
			)
		}

		fmt.Printf("subject %s: %d series completed\n", subjectID, len(plan.DWI))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&subjectID, "subject", "", "subject label (without the sub- prefix)")
	_ = runCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(runCmd)
}
