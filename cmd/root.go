// File: cmd/root.go
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domsentry/internal/config"
	"github.com/xkilldash9x/domsentry/internal/console"
	"github.com/xkilldash9x/domsentry/internal/observability"
	"github.com/xkilldash9x/domsentry/internal/service"
)

// componentFactory builds the engine for every command. Tests replace it.
var componentFactory = service.NewComponentFactory()

// rootOptions carries the persistent flags and the configuration resolved from
// them, flags over environment over config file over defaults.
type rootOptions struct {
	cfgFile   string
	document  string
	exportDir string
	storage   string
	logLevel  string
	yes       bool

	cfg *config.Config
}

// NewRootCommand builds a fresh command tree. The interactive shell calls it
// once per line so flag state never leaks between commands.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "domsentry",
		Short:         "DOMSentry finds and repairs junk markup in a document.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, opts); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "domsentry"})
				return err
			}
			opts.cfg = cfg

			observability.InitializeLogger(cfg.Logger())
			// The logger is built once per process; later commands in the shell still pick their own level.
			if err := observability.SetLevel(cfg.Logger().Level); err != nil {
				return err
			}
			observability.GetLogger().Debug("Starting DOMSentry", zap.String("version", Version),
				zap.String("document", cfg.Document().Source), zap.String("storage", cfg.Storage().Driver))
			return nil
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./domsentry.yaml)")
	flags.StringVarP(&opts.document, "document", "d", "", "document to inspect: an HTML file or chrome:<url> (overrides config/env)")
	flags.StringVar(&opts.exportDir, "export-dir", "", "directory for exported reports and logs, or - for stdout (overrides config/env)")
	flags.StringVar(&opts.storage, "storage", "", "blob store driver: memory, sqlite, pebble or postgres (overrides config/env)")
	flags.StringVar(&opts.logLevel, "log-level", "", "minimum log level: debug, info, warn or error (overrides config/env)")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "answer yes to every confirmation prompt")

	rootCmd.AddCommand(
		newScanCmd(opts),
		newFixCmd(opts),
		newExportCmd(opts),
		newReportCmd(opts),
		newSnapshotCmd(opts),
		newLogsCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command named by os.Args under ctx.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Info("Command aborted.")
			return err
		}
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// initializeConfig reads the config file and environment into v, then binds
// the persistent flags that override them.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, opts *rootOptions) error {
	if opts.cfgFile != "" {
		v.SetConfigFile(opts.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("domsentry")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("DOMSENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}

	// Flags only override when set, so binding them is safe either way.
	flags := cmd.Root().PersistentFlags()
	bindings := map[string]string{
		"document.source": "document",
		"export.dir":      "export-dir",
		"storage.driver":  "storage",
		"logger.level":    "log-level",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// -- Shared helpers --

// withComponents builds the engine for one command and releases it afterwards.
func withComponents(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, c *service.Components) error) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	components, err := componentFactory.Create(ctx, opts.cfg, service.Options{
		Confirmer:     opts.confirmer(cmd),
		ConsoleWriter: cmd.ErrOrStderr(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	return fn(ctx, components)
}

// confirmer answers prompts from stdin unless --yes was given.
func (o *rootOptions) confirmer(cmd *cobra.Command) console.Confirmer {
	if o.yes {
		return console.AlwaysConfirm
	}
	return newPromptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
}

// newPromptConfirmer asks on out and reads a y/N answer from in. Anything but
// an explicit yes, including EOF, declines.
func newPromptConfirmer(in io.Reader, out io.Writer) console.Confirmer {
	reader := bufio.NewReader(in)
	return console.ConfirmFunc(func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	})
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
