package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmriflow/dmriflow/internal/testdata"
)

var testdataDir string

var fetchTestdataCmd = &cobra.Command{
	Use:   "fetch-testdata [dataset...]",
	Short: "Download the reference datasets used by the smoke tests",
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

		wanted := map[string]bool{}
		for _, a := range args {
			wanted[a] = true
		}
		for _, ds := range testdata.KnownDatasets() {
			if len(wanted) > 0 && !wanted[ds.Name] {
				continue
			}
			path, err := testdata.Fetch(cmd.Context(), ds, testdataDir, logger)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", ds.Name, err)
			}
			fmt.Println(path)
		}
		return nil
	},
}

func init() {
	fetchTestdataCmd.Flags().StringVar(&testdataDir, "dir", "test_data", "directory to store datasets in")
	rootCmd.AddCommand(fetchTestdataCmd)
}
