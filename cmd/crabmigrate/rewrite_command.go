package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRewriteCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Rewrite document content to reference converted assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.restClient()
			if err != nil {
				return err
			}

			processed := 0
			replaced := 0
			page := 1
			for {
				result, err := client.ReplaceContent(cmd.Context(), page)
				if err != nil {
					return fmt.Errorf("replace content page %d: %w", page, err)
				}
				processed += result.Processed
				replaced += result.Replaced
				if result.IsLast {
					break
				}
				page = result.CurrentPage + 1
			}

			if jsonOutput {
				return writeJSON(cmd, map[string]int{"processed": processed, "replaced": replaced})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d documents, rewrote %d\n", processed, replaced)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}
