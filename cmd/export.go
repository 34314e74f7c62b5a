// File: cmd/export.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/domsentry/internal/reporting"
	"github.com/xkilldash9x/domsentry/internal/service"
)

// newExportCmd creates the `export` command.
func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Scans the document and writes the Markdown and JSON reports",
		Long: `Scans the configured document and writes scan-report-<date>.md and
scan-report-<date>.json to the export directory (--export-dir, "-" for stdout).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
				paths, err := c.Console.Export(ctx)
				if err != nil {
					if errors.Is(err, reporting.ErrNoStatistics) {
						return fmt.Errorf("nothing to export, the scan did not complete: %w", err)
					}
					return err
				}
				for _, path := range paths {
					fmt.Fprintf(cmd.OutOrStdout(), "Report exported: %s\n", path)
				}
				return nil
			})
		},
	}
}
