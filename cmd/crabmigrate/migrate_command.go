package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"crabmigrate/internal/encoding"
	"crabmigrate/internal/logging"
	"crabmigrate/internal/migration"
	"crabmigrate/internal/taskqueue"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var verbose bool
	var workers int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Discover, convert, and link unoptimized assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.restClient()
			if err != nil {
				return err
			}

			logger := logging.NewNop()
			if verbose {
				logger, err = logging.New(logging.Options{Level: "debug", Format: "console", OutputPaths: []string{"stderr"}})
				if err != nil {
					return err
				}
			}

			queue := taskqueue.New(workers)
			defer queue.Close()

			session := migration.NewSession(cfg, client, encoding.NewFromConfig(cfg), queue, logger)
			if err := session.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run migration: %w", err)
			}

			progress := session.Progress()
			if jsonOutput {
				return writeJSON(cmd, progress)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Migration Run", colorize) {
				fmt.Fprintln(out, line)
			}
			kind := statusOK
			if progress.Failed > 0 {
				kind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("conversion", kind,
				fmt.Sprintf("%d converted, %d failed, %d skipped", progress.Converted, progress.Failed, progress.Skipped), colorize))
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Count"},
				[][]string{
					{"Discovered", strconv.Itoa(progress.Discovered)},
					{"Converted", strconv.Itoa(progress.Converted)},
					{"Failed", strconv.Itoa(progress.Failed)},
					{"Skipped", strconv.Itoa(progress.Skipped)},
					{"Content replaced", strconv.Itoa(progress.Replaced)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Log each conversion step to stderr")
	cmd.Flags().IntVar(&workers, "workers", 0, "Encode worker ceiling (0 picks a CPU-based default)")
	return cmd
}
