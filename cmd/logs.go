// File: cmd/logs.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/domsentry/api/schemas"
	"github.com/xkilldash9x/domsentry/internal/logview"
	"github.com/xkilldash9x/domsentry/internal/service"
)

// levelBadges color the level column of `logs list`.
var levelBadges = map[schemas.Level]lipgloss.Style{
	schemas.LevelError:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	schemas.LevelWarning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
	schemas.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	schemas.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
}

var dimStyle = lipgloss.NewStyle().Faint(true)

// newLogsCmd creates the `logs` command group over the runtime log history.
func newLogsCmd(opts *rootOptions) *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Views, exports and clears the runtime log history",
	}
	logsCmd.AddCommand(
		newLogsListCmd(opts),
		&cobra.Command{
			Use:   "clear",
			Short: "Deletes every entry from the history",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
					if err := c.Console.ClearLogs(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Log history cleared.")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "export",
			Short: "Writes the full history to logs-<timestamp>.json",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
					path, err := c.Console.ExportLogs(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Logs exported: %s\n", path)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "test",
			Short: "Emits one error, one warning and one success event",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
					c.Console.TestEvents()
					fmt.Fprintln(cmd.OutOrStdout(), "Test events recorded.")
					return nil
				})
			},
		},
	)
	return logsCmd
}

func newLogsListCmd(opts *rootOptions) *cobra.Command {
	var (
		query   logview.Query
		verbose bool
		asJSON  bool
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists history entries, newest first",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return query.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
				entries, counts := c.Console.Logs(query)
				out := cmd.OutOrStdout()

				if asJSON {
					data, err := json.MarshalIndent(entries, "", "  ")
					if err != nil {
						return fmt.Errorf("failed to encode log entries: %w", err)
					}
					_, err = fmt.Fprintln(out, string(data))
					return err
				}

				if len(entries) == 0 {
					fmt.Fprintln(out, "No log entries.")
				}
				for _, e := range entries {
					printLogEntry(out, e, verbose)
				}
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%d entries: %d errors, %d warnings, %d info, %d success",
					counts.Total, counts.Error, counts.Warning, counts.Info, counts.Success)))
				return nil
			})
		},
	}

	listCmd.Flags().StringVarP(&query.Level, "level", "l", logview.LevelAll, "Only show entries of this level (all, error, warning, info, success).")
	listCmd.Flags().StringVarP(&query.Search, "search", "s", "", "Only show entries whose message or details contain this text.")
	listCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print details and stack traces.")
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print the entries as JSON.")
	return listCmd
}

func printLogEntry(w io.Writer, e schemas.LogEntry, verbose bool) {
	if verbose {
		fmt.Fprintln(w, logview.Format(e))
		fmt.Fprintln(w)
		return
	}
	label := fmt.Sprintf("%-7s", strings.ToUpper(string(e.Level)))
	if style, ok := levelBadges[e.Level]; ok {
		label = style.Render(label)
	}
	fmt.Fprintf(w, "%s %s %s\n", label, dimStyle.Render(e.Timestamp.Local().Format("15:04:05")), e.Message)
}
