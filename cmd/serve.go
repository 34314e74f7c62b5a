// File: cmd/serve.go
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/domsentry/internal/server"
	"github.com/xkilldash9x/domsentry/internal/service"
)

// newServeCmd creates the `serve` command.
func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the console controls and the log viewer over HTTP",
		Long: `Serves the control API until interrupted. Snapshot creation and deletion
must be confirmed with ?confirm=true on the request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Requests carry their own confirmation; stdin is never read.
			opts.yes = true
			return withComponents(cmd, opts, func(ctx context.Context, c *service.Components) error {
				cfg := opts.cfg.Server()
				if addr != "" {
					cfg.Addr = addr
				}
				return server.New(c.Console, cfg, c.Logger).Run(ctx)
			})
		},
	}

	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address. (Overrides config/env)")
	return serveCmd
}
