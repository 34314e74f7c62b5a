// File: internal/service/factory.go
package service

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/xkilldash9x/domsentry/internal/config"
	"github.com/xkilldash9x/domsentry/internal/console"
	"github.com/xkilldash9x/domsentry/internal/interceptor"
	"github.com/xkilldash9x/domsentry/internal/remediator"
	"github.com/xkilldash9x/domsentry/internal/reporting"
	"github.com/xkilldash9x/domsentry/internal/scanner"
	"github.com/xkilldash9x/domsentry/internal/snapshot"
)

// ComponentFactory builds the component set for a command. The abstraction
// keeps the commands testable.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, opts Options, logger *zap.Logger) (*Components, error)
}

// Options are the per-command choices that do not belong in configuration.
type Options struct {
	// Confirmer answers the console's confirmation prompts.
	Confirmer console.Confirmer
	// ConsoleWriter receives the runtime console output. Defaults to stderr.
	ConsoleWriter io.Writer
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct{}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create handles the full dependency injection and initialization of the engine.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, opts Options, logger *zap.Logger) (*Components, error) {
	components := &Components{Logger: logger}

	// Ensure cleanup happens if initialization fails midway.
	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Blob store. It keeps the unwrapped logger: the interceptor persists
	// while holding its lock and must never be re-entered from a Put.
	blobs, err := InitializeStore(ctx, cfg.Storage(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Blobs = blobs

	// 2. Runtime log interceptor. From here on the logger tees into its history.
	writer := opts.ConsoleWriter
	if writer == nil {
		writer = os.Stderr
	}
	components.Output = interceptor.NewConsole(writer)
	components.Interceptor, components.Logger = InitializeInterceptor(ctx, components.Output, blobs, cfg, logger)
	logger = components.Logger

	// 3. Notifications.
	components.Notifier = InitializeNotifier(cfg.Notify(), logger)

	// 4. Document host.
	host, closeHost, err := InitializeHost(ctx, cfg.Document(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Host = host
	components.closeHost = closeHost
	logger.Debug("Document host initialized.", zap.String("host", host.Name()))

	// 5. Engine.
	namespace := cfg.Storage().Namespace
	components.Scanner = scanner.New(host, scanner.OptionsFromConfig(cfg.Scanner()), components.Notifier, logger)
	sink := reporting.NewSink(cfg.Export().Dir)
	components.Exporter = reporting.NewExporter(components.Scanner, sink, components.Notifier, logger)
	components.Remediator = remediator.New(host, components.Scanner, components.Exporter, components.Notifier, logger,
		remediator.OptionsFromConfig(cfg.Remediator()))
	components.Snapshots = snapshot.New(host, blobs, namespace, components.Notifier, logger)

	// 6. Control surface.
	components.Console = console.New(console.Deps{
		Scanner:     components.Scanner,
		Remediator:  components.Remediator,
		Snapshots:   components.Snapshots,
		Exporter:    components.Exporter,
		Interceptor: components.Interceptor,
		Output:      components.Output,
		LogSink:     sink,
		Confirmer:   opts.Confirmer,
	}, logger)
	components.Console.Refresh(ctx)

	logger.Debug("Engine components initialized.", zap.String("namespace", namespace))
	return components, nil
}

// Ensure the factory satisfies the interface at compile time.
var _ ComponentFactory = (*concreteFactory)(nil)
