package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtpipe/dtpipe/internal/config"
	"github.com/dtpipe/dtpipe/internal/engine"
)

var (
	runFollow   bool
	runStartLSN string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Copy schema and data, then optionally follow the source's change stream",
	Long: `Run performs the initial snapshot copy (schema DDL followed by every
table's rows) and, with --follow, transitions into streaming CDC from
--start-lsn, or else from the CDC coordinate in the position file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		eng := engine.New(&cfg, logger)

		if err := eng.RunSnapshot(cmd.Context()); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		if !runFollow {
			return nil
		}
		if cfg.Source.Dialect != config.DialectPostgres {
			return fmt.Errorf("--follow requires a postgres source")
		}
		return eng.RunCDC(cmd.Context(), runStartLSN)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runFollow, "follow", false, "Continue with CDC streaming after the snapshot copy")
	runCmd.Flags().StringVar(&runStartLSN, "start-lsn", "", "LSN to resume streaming from (defaults to the position file's recorded coordinate)")
	rootCmd.AddCommand(runCmd)
}
