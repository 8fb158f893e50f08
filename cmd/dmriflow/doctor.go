package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/health"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local environment and workflow engine connectivity",
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

		hm := health.NewManager(time.Minute, logger)
		_ = hm.RegisterChecker(health.NewToolPathChecker(health.DefaultToolBinaries()))
		if cfg.InputDir != "" {
			_ = hm.RegisterChecker(health.NewDirectoryChecker("input_dir", cfg.InputDir, true))
		}
		if cfg.Anatomical.FreeSurferDir != "" {
			_ = hm.RegisterChecker(health.NewDirectoryChecker("freesurfer_dir", cfg.Anatomical.FreeSurferDir, false))
		}
		if c, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		}); err == nil {
			defer c.Close()
			_ = hm.RegisterChecker(health.NewTemporalChecker(c))
		} else {
			logger.Warn("Workflow engine unreachable", zap.Error(err))
		}

		hm.RunChecks(context.Background())
		overall := hm.Overall()
		for name, result := range overall.Checks {
			line := fmt.Sprintf("%-16s %s", name, result.Status)
			if result.Message != "" {
				line += "  " + result.Message
			}
			fmt.Println(line)
		}
		fmt.Printf("overall: %s\n", overall.Status)
		if !overall.Ready {
			return fmt.Errorf("environment is not ready")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
