package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"crabmigrate/internal/discovery"
)

func newDiscoverCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan the media library and register unoptimized assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.restClient()
			if err != nil {
				return err
			}

			var images []discovery.Image
			page := 1
			for {
				result, err := client.Discover(cmd.Context(), page)
				if err != nil {
					return fmt.Errorf("discover page %d: %w", page, err)
				}
				images = append(images, result.Images...)
				if result.IsLast || len(result.Images) == 0 {
					break
				}
				page = result.Current + 1
			}

			if jsonOutput {
				return writeJSON(cmd, images)
			}

			out := cmd.OutOrStdout()
			if len(images) == 0 {
				fmt.Fprintln(out, "No image assets found")
				return nil
			}
			rows := make([][]string, 0, len(images))
			pending := 0
			for _, image := range images {
				state := "pending"
				switch {
				case image.IsOptimized:
					state = "optimized"
				case image.OptimizedID != 0:
					state = "linked"
				default:
					pending++
				}
				rows = append(rows, []string{
					strconv.FormatInt(image.ID, 10),
					image.Title,
					image.MimeType,
					state,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Type", "State"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d assets scanned, %d pending conversion\n", len(images), pending)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}
