// File: cmd/domsentry/main_test.go
package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/domsentry/api/schemas"
	"github.com/xkilldash9x/domsentry/internal/interceptor"
	"github.com/xkilldash9x/domsentry/internal/store"
)

// --- Setup Helpers ---

// resetMocks restores the original function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
}

// exitRecorder replaces osExit and collects the codes it is called with.
func exitRecorder() *[]int {
	codes := &[]int{}
	osExit = func(code int) { *codes = append(*codes, code) }
	return codes
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	t.Run("writes the panic log and exits", func(t *testing.T) {
		resetMocks()
		codes := exitRecorder()
		var written string
		osWriteFile = func(name string, data []byte, _ os.FileMode) error {
			assert.Equal(t, panicLogFile, name)
			written = string(data)
			return nil
		}

		func() {
			defer handlePanic()
			panic("document tree corrupted")
		}()

		assert.Equal(t, []int{2}, *codes)
		assert.True(t, strings.HasPrefix(written, "panic: document tree corrupted"))
		assert.Contains(t, written, "goroutine", "the stack is included")
	})

	t.Run("log write failure still exits", func(t *testing.T) {
		resetMocks()
		codes := exitRecorder()
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only file system") }

		func() {
			defer handlePanic()
			panic("boom")
		}()

		assert.Equal(t, []int{2}, *codes)
	})

	t.Run("no panic is a no-op", func(t *testing.T) {
		resetMocks()
		codes := exitRecorder()
		func() {
			defer handlePanic()
		}()
		assert.Empty(t, *codes)
	})

	t.Run("panic is recorded in the log history", func(t *testing.T) {
		resetMocks()
		exitRecorder()
		osWriteFile = func(string, []byte, os.FileMode) error { return nil }

		ic := interceptor.New(interceptor.NewConsoleWithSinks(nil, nil, nil), store.NewMemory(), interceptor.Options{})
		require.NoError(t, ic.Install(context.Background()))
		defer ic.Uninstall()

		func() {
			defer handlePanic()
			panic(errors.New("sentinel check"))
		}()

		var found bool
		for _, e := range ic.Entries() {
			if e.Level == schemas.LevelError && e.Message == "sentinel check" {
				found = true
			}
		}
		assert.True(t, found, "the panic should be in the history")
	})
}

func TestRunInteractive(t *testing.T) {
	t.Run("runs commands until exit", func(t *testing.T) {
		var out bytes.Buffer
		in := strings.NewReader("\n--version\nnot-a-command\nexit\nscan\n")

		require.NoError(t, runInteractive(context.Background(), in, &out))

		got := out.String()
		assert.Contains(t, got, "domsentry version dev")
		assert.Contains(t, got, `Error: unknown command "not-a-command"`)
		assert.Contains(t, got, "Bye.")
		assert.Equal(t, 4, strings.Count(got, "domsentry > "), "the line after exit is never read")
	})

	t.Run("ends on EOF", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runInteractive(context.Background(), strings.NewReader(""), &out))
		assert.Contains(t, out.String(), "Bye.")
	})
}
