// File: cmd/report.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/domsentry/internal/reporting"
	"github.com/xkilldash9x/domsentry/internal/service"
)

// newReportCmd creates the `report` command, which renders the Markdown
// report in the terminal without writing any file.
func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		width int
		raw   bool
	)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Scans the document and renders the report in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
				_, stats, err := c.Console.Scan(ctx)
				if err != nil {
					return err
				}
				markdown := reporting.RenderMarkdown(*stats)

				out := cmd.OutOrStdout()
				// Piped output stays plain Markdown.
				if raw || !isTerminal(out) {
					_, err := fmt.Fprint(out, markdown)
					return err
				}
				rendered, err := reporting.RenderTerminal(markdown, width)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(out, rendered)
				return err
			})
		},
	}

	reportCmd.Flags().IntVarP(&width, "width", "w", 100, "Word wrap width of the rendered report.")
	reportCmd.Flags().BoolVar(&raw, "raw", false, "Print the Markdown source instead of rendering it.")
	return reportCmd
}
