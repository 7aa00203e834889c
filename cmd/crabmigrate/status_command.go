package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"crabmigrate/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration progress counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.restClient()
			if err != nil {
				return err
			}
			status, err := client.MigrationStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch migration status: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Migration Status", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("overall", overallKind(status), overallMessage(status), colorize))
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable(
				[]string{"State", "Count"},
				[][]string{
					{"Pending", strconv.Itoa(status.Pending)},
					{"Completed", strconv.Itoa(status.Completed)},
					{"Failed", strconv.Itoa(status.Failed)},
					{"Total", strconv.Itoa(status.Total)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func overallKind(status *api.MigrationStatus) statusKind {
	switch {
	case status.Failed > 0:
		return statusWarn
	case status.Total == 0:
		return statusInfo
	case status.Pending == 0:
		return statusOK
	default:
		return statusInfo
	}
}

func overallMessage(status *api.MigrationStatus) string {
	if status.Total == 0 {
		return "No tracked assets yet"
	}
	parts := []string{fmt.Sprintf("%d/%d completed", status.Completed, status.Total)}
	if status.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", status.Failed))
	}
	return strings.Join(parts, ", ")
}
