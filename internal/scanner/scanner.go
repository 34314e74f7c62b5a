package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/domsentry/api/schemas"
	"github.com/xkilldash9x/domsentry/internal/document"
	"github.com/xkilldash9x/domsentry/internal/notify"
	"go.uber.org/zap"
)

// Scanner loads the document from its host and classifies it.
type Scanner struct {
	host     document.Host
	opts     Options
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func New(host document.Host, opts Options, notifier notify.Notifier, logger *zap.Logger) *Scanner {
	return &Scanner{
		host:     host,
		opts:     opts,
		notifier: notifier,
		logger:   logger.Named("scanner"),
		now:      time.Now,
	}
}

// Scan runs one read-only classification pass and returns the issue count and
// the statistics. A clean document produces a success notification, anything
// else a warning.
func (s *Scanner) Scan(ctx context.Context) (int, *schemas.ScanStatistics, error) {
	doc, err := s.host.Load(ctx)
	if err != nil {
		s.notifier.Error("Scan failed", err.Error())
		return 0, nil, fmt.Errorf("failed to load document: %w", err)
	}

	result := Classify(doc, s.opts, s.now())
	stats := result.Statistics

	if result.IgnoreErrors > 0 {
		s.logger.Debug("Ignore predicate could not be evaluated; elements kept in scope.",
			zap.Int("elements", result.IgnoreErrors))
	}

	if stats.Issues == 0 {
		s.logger.Info("✓ Scan complete: no issues found")
		s.notifier.Success("Document is clean", "No issues found")
	} else {
		lines := make([]string, len(stats.IssuesList))
		for i, line := range stats.IssuesList {
			lines[i] = "  • " + line
		}
		s.logger.Warn(fmt.Sprintf("Found %d issues\n%s", stats.Issues, strings.Join(lines, "\n")))
		s.notifier.Warning(fmt.Sprintf("Found %d issues", stats.Issues), `Run "fix" to clean up automatically`)
	}

	s.logger.Info("Scan statistics",
		zap.String("host", s.host.Name()),
		zap.Int("total_elements", stats.TotalElements),
		zap.Int("scripts", stats.Scripts),
		zap.Int("inline_styles", stats.InlineStyles),
		zap.Int("comments", stats.Comments),
		zap.Int("issues", stats.Issues),
	)
	return stats.Issues, &stats, nil
}
