// File: cmd/fix.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/domsentry/internal/remediator"
	"github.com/xkilldash9x/domsentry/internal/service"
)

// newFixCmd creates the `fix` command.
func newFixCmd(opts *rootOptions) *cobra.Command {
	var wait bool

	fixCmd := &cobra.Command{
		Use:   "fix",
		Short: "Removes and rewrites junk markup in the document",
		Long: `Applies one remediation pass to the configured document: removes empty
divs (including wrappers left empty by them), unwraps deprecated tags, and
moves hiding inline styles into classes. Overlay and portal containers are
never touched. HTML comments are reported by scan but left in place.

After a successful pass the document is re-scanned and, when clean, the
scan report is exported. Use --wait=false to skip that follow-up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
				out := cmd.OutOrStdout()
				fixed, saga, err := c.Console.Fix(ctx)
				if err != nil {
					return err
				}
				if fixed == 0 {
					fmt.Fprintln(out, "Nothing to fix.")
					return nil
				}
				fmt.Fprintf(out, "Fixed %d issues\n", fixed)

				if saga == nil || !wait {
					return nil
				}
				select {
				case <-saga.Done():
				case <-ctx.Done():
					saga.Cancel()
					return ctx.Err()
				}
				printOutcome(out, saga.Wait())
				return nil
			})
		},
	}

	fixCmd.Flags().BoolVar(&wait, "wait", true, "Wait for the follow-up re-scan and export.")
	return fixCmd
}

func printOutcome(w io.Writer, o remediator.Outcome) {
	switch {
	case errors.Is(o.Err, context.Canceled):
		fmt.Fprintln(w, "Follow-up cancelled.")
		return
	case o.Err != nil:
		fmt.Fprintf(w, "Follow-up failed: %v\n", o.Err)
		return
	case !o.Rescanned:
		return
	}

	fmt.Fprintf(w, "Follow-up scan: %s\n", issueCount(o.Issues))
	for _, path := range o.Exported {
		fmt.Fprintf(w, "Report exported: %s\n", path)
	}
}
