package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/domsentry/api/schemas"
	"github.com/xkilldash9x/domsentry/internal/notify"
	"go.uber.org/zap"
)

// ErrNoStatistics means no scan result was available to export.
var ErrNoStatistics = errors.New("no scan statistics available")

// Scanner produces the statistics a report is built from.
type Scanner interface {
	Scan(ctx context.Context) (int, *schemas.ScanStatistics, error)
}

// Exporter writes the Markdown and JSON scan report for the current document.
type Exporter struct {
	scanner  Scanner
	sink     ArtifactSink
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewExporter(scanner Scanner, sink ArtifactSink, notifier notify.Notifier, logger *zap.Logger) *Exporter {
	return &Exporter{
		scanner:  scanner,
		sink:     sink,
		notifier: notifier,
		logger:   logger.Named("exporter"),
		now:      time.Now,
	}
}

// ExportScanStatistics runs a fresh scan and writes both artifacts, named by
// the current date. It returns the locations the sink reported.
func (e *Exporter) ExportScanStatistics(ctx context.Context) ([]string, error) {
	_, stats, err := e.scanner.Scan(ctx)
	if err != nil || stats == nil {
		e.notifier.Error("No scan data to export", "Run a scan first")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoStatistics, err)
		}
		return nil, ErrNoStatistics
	}

	payload, err := RenderJSON(*stats)
	if err != nil {
		e.notifier.Error("Export failed", err.Error())
		return nil, err
	}

	day := e.now()
	artifacts := []struct {
		name string
		data []byte
	}{
		{ArtifactName(ReportPrefix, day, "md"), []byte(RenderMarkdown(*stats))},
		{ArtifactName(ReportPrefix, day, "json"), payload},
	}

	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		path, err := e.sink.Write(ctx, a.name, a.data)
		if err != nil {
			e.logger.Error("Failed to write report artifact.", zap.String("name", a.name), zap.Error(err))
			e.notifier.Error("Export failed", err.Error())
			return paths, err
		}
		paths = append(paths, path)
	}

	e.logger.Info("✓ Scan report exported", zap.Strings("paths", paths), zap.Int("issues", stats.Issues))
	e.notifier.Success("Report exported", fmt.Sprintf("Markdown and JSON reports saved (%d issues)", stats.Issues))
	return paths, nil
}
