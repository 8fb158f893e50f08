// Command dmriflow is the operator CLI: it assembles subject graphs, submits
// them to the worker fleet, and checks the environment.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/config"
)

var (
	configPath string
	subjectID  string
)

var rootCmd = &cobra.Command{
	Use:   "dmriflow",
	Short: "Assemble and run diffusion MRI reconstruction pipelines",
	Long: `dmriflow turns preprocessed diffusion MRI datasets (QSIPrep, UK Biobank,
HCP Young Adult) into executable task graphs and hands them to a Temporal
worker fleet for execution.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the configuration file")
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Observability.Logging.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	}
	if level := cfg.Observability.Logging.Level; level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = lvl
	}
	return zapCfg.Build()
}
