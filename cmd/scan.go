// File: cmd/scan.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/domsentry/api/schemas"
	"github.com/xkilldash9x/domsentry/internal/config"
	"github.com/xkilldash9x/domsentry/internal/scanner"
	"github.com/xkilldash9x/domsentry/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// scanOutcome is the result for one document.
type scanOutcome struct {
	Document   string                  `json:"document"`
	Issues     int                     `json:"issues"`
	Statistics *schemas.ScanStatistics `json:"statistics"`
}

// newScanCmd creates and configures the `scan` command.
func newScanCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON      bool
		concurrency int
	)

	scanCmd := &cobra.Command{
		Use:   "scan [documents...]",
		Short: "Scans documents for junk markup",
		Long: `Scans the configured document, or every document given as an argument,
and lists the issues found. Scanning never modifies a document.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
				var outcomes []scanOutcome
				if len(args) == 0 {
					issues, stats, err := c.Console.Scan(ctx)
					if err != nil {
						return err
					}
					outcomes = []scanOutcome{{Document: c.Host.Name(), Issues: issues, Statistics: stats}}
				} else {
					var err error
					outcomes, err = scanDocuments(ctx, opts.cfg, c, args, concurrency)
					if err != nil {
						return err
					}
				}

				if asJSON {
					data, err := json.MarshalIndent(outcomes, "", "  ")
					if err != nil {
						return fmt.Errorf("failed to encode scan results: %w", err)
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return err
				}
				for _, o := range outcomes {
					printScanOutcome(cmd.OutOrStdout(), o)
				}
				return nil
			})
		},
	}

	scanCmd.Flags().BoolVar(&asJSON, "json", false, "Print the scan statistics as JSON.")
	scanCmd.Flags().IntVarP(&concurrency, "concurrency", "j", 4, "Number of documents scanned at once.")
	return scanCmd
}

// scanDocuments scans each document through its own host, sharing the
// notifier and logger of c. Results keep the argument order.
func scanDocuments(ctx context.Context, cfg config.Interface, c *service.Components, documents []string, concurrency int) ([]scanOutcome, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	outcomes := make([]scanOutcome, len(documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, doc := range documents {
		g.Go(func() error {
			docCfg := cfg.Document()
			docCfg.Source = doc
			host, closeHost, err := service.InitializeHost(gctx, docCfg, c.Logger)
			if err != nil {
				return fmt.Errorf("%s: %w", doc, err)
			}
			defer closeHost()

			sc := scanner.New(host, scanner.OptionsFromConfig(cfg.Scanner()), c.Notifier, c.Logger)
			issues, stats, err := sc.Scan(gctx)
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", doc, err)
			}
			outcomes[i] = scanOutcome{Document: host.Name(), Issues: issues, Statistics: stats}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func printScanOutcome(w io.Writer, o scanOutcome) {
	fmt.Fprintf(w, "%s: %s\n", o.Document, issueCount(o.Issues))
	if o.Statistics == nil {
		return
	}
	for _, line := range o.Statistics.IssuesList {
		if strings.HasPrefix(line, " ") {
			fmt.Fprintf(w, "    %s\n", strings.TrimSpace(line))
			continue
		}
		fmt.Fprintf(w, "  • %s\n", line)
	}
}

func issueCount(n int) string {
	switch n {
	case 0:
		return "no issues found"
	case 1:
		return "1 issue"
	default:
		return fmt.Sprintf("%d issues", n)
	}
}
