// File: cmd/snapshot.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/domsentry/internal/console"
	"github.com/xkilldash9x/domsentry/internal/service"
)

// errSnapshotFailed is returned when a snapshot control reports failure. The
// cause has already been logged and notified.
var errSnapshotFailed = errors.New("snapshot operation failed")

// newSnapshotCmd creates the `snapshot` command group.
func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Saves, restores and deletes the single document snapshot",
	}

	snapshotCmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Saves the current document, replacing any previous snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
					ok, err := c.Console.CreateSnapshot(ctx)
					if errors.Is(err, console.ErrDeclined) {
						fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
						return nil
					}
					if err != nil {
						return err
					}
					if !ok {
						return errSnapshotFailed
					}
					fmt.Fprintln(cmd.OutOrStdout(), c.Console.Status().Text)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "restore",
			Short: "Replaces the document with the saved snapshot and discards it",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
					if !c.Console.RestoreSnapshot(ctx) {
						return errSnapshotFailed
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Snapshot restored.")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Deletes the saved snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
					ok, err := c.Console.DeleteSnapshot(ctx)
					if errors.Is(err, console.ErrDeclined) {
						fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
						return nil
					}
					if err != nil {
						return err
					}
					if !ok {
						return errSnapshotFailed
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Snapshot deleted.")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "info",
			Short: "Shows when the snapshot was taken and its size",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
					out := cmd.OutOrStdout()
					badge := c.Console.Refresh(ctx)
					fmt.Fprintln(out, badge.Text)
					if info, ok := c.Console.SnapshotInfo(ctx); ok {
						fmt.Fprintf(out, "Taken: %s\nSize:  %d bytes\n", info.Timestamp.Local().Format(time.RFC1123), info.Size)
					}
					return nil
				})
			},
		},
	)
	return snapshotCmd
}
