// File: cmd/commands_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanPage = `<html><head></head><body><p>Hello</p></body></html>`

// sqliteArgs points a command at doc with a sqlite store that outlives it.
func sqliteArgs(t *testing.T, doc, exportDir string, args ...string) []string {
	t.Helper()
	return append(args, "--storage", "sqlite", "--document", doc, "--export-dir", exportDir)
}

func useStateFile(t *testing.T) {
	t.Helper()
	t.Setenv("DOMSENTRY_STORAGE_PATH", filepath.Join(t.TempDir(), "state.db"))
}

func TestScanCommand(t *testing.T) {
	t.Run("configured document", func(t *testing.T) {
		doc := writeDocument(t, junkPage)
		out, _, err := runCommand(t, "", docArgs(t, doc, "scan")...)
		require.NoError(t, err)
		assert.Contains(t, out, doc+": 1 issue\n")
		assert.Contains(t, out, "  • ")
	})

	t.Run("several documents keep argument order", func(t *testing.T) {
		junk, clean := writeDocument(t, junkPage), writeDocument(t, cleanPage)
		out, _, err := runCommand(t, "", docArgs(t, junk, "scan", "--json", "-j", "2", clean, junk)...)
		require.NoError(t, err)

		var outcomes []scanOutcome
		require.NoError(t, json.Unmarshal([]byte(out), &outcomes))
		require.Len(t, outcomes, 2)
		assert.Equal(t, clean, outcomes[0].Document)
		assert.Zero(t, outcomes[0].Issues)
		assert.Equal(t, junk, outcomes[1].Document)
		assert.Equal(t, 1, outcomes[1].Statistics.DeprecatedTags)
	})

	t.Run("missing document", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "absent.html")
		_, _, err := runCommand(t, "", docArgs(t, writeDocument(t, cleanPage), "scan", missing)...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to scan "+missing)
	})
}

func TestFixCommand(t *testing.T) {
	t.Setenv("DOMSENTRY_REMEDIATOR_RESCAN_DELAY", "0s")
	t.Setenv("DOMSENTRY_REMEDIATOR_EXPORT_DELAY", "0s")

	t.Run("fixes and follows up", func(t *testing.T) {
		doc := writeDocument(t, junkPage)
		exportDir := t.TempDir()
		out, _, err := runCommand(t, "", "fix", "--storage", "memory", "--document", doc, "--export-dir", exportDir)
		require.NoError(t, err)

		assert.Contains(t, out, "Fixed 1 issues\n")
		assert.Contains(t, out, "Follow-up scan: no issues found\n")
		assert.Contains(t, out, "Report exported: ")

		fixed, err := os.ReadFile(doc)
		require.NoError(t, err)
		assert.NotContains(t, string(fixed), "marquee")
		assert.Contains(t, string(fixed), "Hi")

		reports, err := filepath.Glob(filepath.Join(exportDir, "scan-report-*"))
		require.NoError(t, err)
		assert.Len(t, reports, 2)
	})

	t.Run("nothing to fix", func(t *testing.T) {
		out, _, err := runCommand(t, "", docArgs(t, writeDocument(t, cleanPage), "fix")...)
		require.NoError(t, err)
		assert.Equal(t, "Nothing to fix.\n", out)
	})

	t.Run("without waiting", func(t *testing.T) {
		out, _, err := runCommand(t, "", docArgs(t, writeDocument(t, junkPage), "fix", "--wait=false")...)
		require.NoError(t, err)
		assert.Equal(t, "Fixed 1 issues\n", out)
	})
}

func TestExportAndReportCommands(t *testing.T) {
	doc := writeDocument(t, junkPage)
	exportDir := t.TempDir()

	out, _, err := runCommand(t, "", "export", "--storage", "memory", "--document", doc, "--export-dir", exportDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Report exported: "+filepath.Join(exportDir, "scan-report-"))
	reports, err := filepath.Glob(filepath.Join(exportDir, "scan-report-*.json"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	out, _, err = runCommand(t, "", docArgs(t, doc, "report")...)
	require.NoError(t, err)
	assert.Contains(t, out, "# Document Scan Report")
	assert.Contains(t, out, "## Issues")
}

func TestSnapshotCommands(t *testing.T) {
	useStateFile(t)
	doc := writeDocument(t, junkPage)
	exportDir := t.TempDir()

	out, _, err := runCommand(t, "", sqliteArgs(t, doc, exportDir, "snapshot", "info")...)
	require.NoError(t, err)
	assert.Equal(t, "No snapshot\n", out)

	_, _, err = runCommand(t, "", sqliteArgs(t, doc, exportDir, "snapshot", "restore")...)
	assert.ErrorIs(t, err, errSnapshotFailed)

	out, errOut, err := runCommand(t, "n\n", sqliteArgs(t, doc, exportDir, "snapshot", "create")...)
	require.NoError(t, err)
	assert.Equal(t, "Cancelled.\n", out)
	assert.Contains(t, errOut, "[y/N]")

	out, _, err = runCommand(t, "y\n", sqliteArgs(t, doc, exportDir, "snapshot", "create")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Last snapshot:")

	out, _, err = runCommand(t, "", sqliteArgs(t, doc, exportDir, "snapshot", "info")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Last snapshot:")
	assert.Contains(t, out, "Size:")

	// Damage the document, then roll it back.
	require.NoError(t, os.WriteFile(doc, []byte("<p>broken</p>"), 0o644))
	out, _, err = runCommand(t, "", sqliteArgs(t, doc, exportDir, "snapshot", "restore")...)
	require.NoError(t, err)
	assert.Equal(t, "Snapshot restored.\n", out)
	restored, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.Contains(t, string(restored), "<marquee>Hi</marquee>")

	out, _, err = runCommand(t, "", sqliteArgs(t, doc, exportDir, "snapshot", "info")...)
	require.NoError(t, err)
	assert.Equal(t, "No snapshot\n", out, "restore consumes the snapshot")

	_, _, err = runCommand(t, "", sqliteArgs(t, doc, exportDir, "snapshot", "create", "--yes")...)
	require.NoError(t, err)
	out, _, err = runCommand(t, "", sqliteArgs(t, doc, exportDir, "snapshot", "delete", "--yes")...)
	require.NoError(t, err)
	assert.Equal(t, "Snapshot deleted.\n", out)

	out, _, err = runCommand(t, "", sqliteArgs(t, doc, exportDir, "snapshot", "info")...)
	require.NoError(t, err)
	assert.Equal(t, "No snapshot\n", out)
}

func TestLogsCommands(t *testing.T) {
	useStateFile(t)
	doc := writeDocument(t, cleanPage)
	exportDir := t.TempDir()

	out, errOut, err := runCommand(t, "", sqliteArgs(t, doc, exportDir, "logs", "test")...)
	require.NoError(t, err)
	assert.Equal(t, "Test events recorded.\n", out)
	assert.Contains(t, errOut, "[error] Test error")

	out, _, err = runCommand(t, "", sqliteArgs(t, doc, exportDir, "logs", "list", "--level", "error")...)
	require.NoError(t, err)
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "Test error")
	assert.NotContains(t, out, "Test warning")

	out, _, err = runCommand(t, "", sqliteArgs(t, doc, exportDir, "logs", "list", "--search", "success event", "-v")...)
	require.NoError(t, err)
	assert.Contains(t, out, "[SUCCESS]")
	assert.Contains(t, out, "Message:\n✓ Test success event")

	_, _, err = runCommand(t, "", sqliteArgs(t, doc, exportDir, "logs", "list", "--level", "fatal")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown log level "fatal"`)

	out, _, err = runCommand(t, "", sqliteArgs(t, doc, exportDir, "logs", "export")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Logs exported: "+filepath.Join(exportDir, "logs-"))

	out, _, err = runCommand(t, "", sqliteArgs(t, doc, exportDir, "logs", "clear")...)
	require.NoError(t, err)
	assert.Equal(t, "Log history cleared.\n", out)

	out, _, err = runCommand(t, "", sqliteArgs(t, doc, exportDir, "logs", "list", "--search", "Test")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No log entries.")
}

func TestWatchCommand_RejectsLiveDocuments(t *testing.T) {
	_, _, err := runCommand(t, "", "watch", "--storage", "memory", "--document", "chrome:http://localhost:3000")
	assert.ErrorIs(t, err, errWatchLiveDocument)
}
