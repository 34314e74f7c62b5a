// File: cmd/watch.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/domsentry/internal/console"
	"github.com/xkilldash9x/domsentry/internal/document"
	"github.com/xkilldash9x/domsentry/internal/service"
)

var errWatchLiveDocument = errors.New("watch needs a document file, not a live page")

// newWatchCmd creates the `watch` command.
func newWatchCmd(opts *rootOptions) *cobra.Command {
	var debounce time.Duration

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-scans the document file whenever it is saved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := opts.cfg.Document().Source
			if document.IsChromeSource(source) {
				return errWatchLiveDocument
			}
			return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", source)

				issues, stats, err := c.Console.Scan(ctx)
				printWatchResult(cmd, source, console.ScanResult{Issues: issues, Statistics: stats, Err: err})

				return c.Console.Watch(ctx, source, debounce, func(r console.ScanResult) {
					printWatchResult(cmd, source, r)
				})
			})
		},
	}

	watchCmd.Flags().DurationVar(&debounce, "debounce", console.DefaultDebounce, "Quiet period after a change before re-scanning.")
	return watchCmd
}

func printWatchResult(cmd *cobra.Command, source string, r console.ScanResult) {
	out := cmd.OutOrStdout()
	stamp := dimStyle.Render(time.Now().Format("15:04:05"))
	if r.Err != nil {
		fmt.Fprintf(out, "%s scan failed: %v\n", stamp, r.Err)
		return
	}
	fmt.Fprintf(out, "%s ", stamp)
	printScanOutcome(out, scanOutcome{Document: source, Issues: r.Issues, Statistics: r.Statistics})
}
