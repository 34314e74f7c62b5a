// File: cmd/config.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigCmd creates the `config` command group.
func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspects the resolved configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Prints the configuration after file, environment and flag overrides",
		Long: `Prints the effective configuration as YAML. The output is a valid
domsentry.yaml. Credentials such as storage.postgres_url are never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(opts.cfg)
			if err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return configCmd
}
