package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	jsoniter "github.com/json-iterator/go"
	"github.com/xkilldash9x/domsentry/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReportPrefix names scan report artifacts.
const ReportPrefix = "scan-report"

// ArtifactName is <prefix>-YYYY-MM-DD.<ext> for the given day.
func ArtifactName(prefix string, day time.Time, ext string) string {
	return fmt.Sprintf("%s-%s.%s", prefix, day.Format("2006-01-02"), ext)
}

// RenderMarkdown formats the statistics as a Markdown report. The output
// depends only on stats.
func RenderMarkdown(stats schemas.ScanStatistics) string {
	var b strings.Builder

	b.WriteString("# Document Scan Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n\n", stats.Timestamp.UTC().Format(time.RFC3339))

	b.WriteString("## Statistics\n\n")
	b.WriteString("| Metric | Count |\n")
	b.WriteString("|---|---:|\n")
	rows := []struct {
		label string
		value int
	}{
		{"Total elements", stats.TotalElements},
		{"Scripts", stats.Scripts},
		{"Inline styles", stats.InlineStyles},
		{"HTML comments", stats.Comments},
		{"Empty divs", stats.EmptyDivs},
		{"Deprecated tags", stats.DeprecatedTags},
		{"Elements with many classes", stats.ElementsWithManyClasses},
		{"Long data attributes", stats.LongDataAttrs},
		{"Hidden elements", stats.HiddenElements},
		{"Issues", stats.Issues},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %d |\n", row.label, row.value)
	}

	b.WriteString("\n## Issues\n\n")
	if len(stats.IssuesList) == 0 {
		b.WriteString("✅ No issues found\n")
		return b.String()
	}
	for i, line := range stats.IssuesList {
		fmt.Fprintf(&b, "%d. %s\n", i+1, escapeMarkdown(line))
	}
	return b.String()
}

// RenderJSON is the pretty-printed statistics.
func RenderJSON(stats schemas.ScanStatistics) ([]byte, error) {
	if stats.IssuesList == nil {
		stats.IssuesList = []string{}
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode statistics: %w", err)
	}
	return append(data, '\n'), nil
}

// RenderTerminal styles a Markdown report for a terminal of the given width.
func RenderTerminal(markdown string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return out, nil
}

// escapeMarkdown keeps element markup in issue lines from being read as HTML.
func escapeMarkdown(s string) string {
	return strings.NewReplacer("<", `\<`, ">", `\>`).Replace(s)
}
