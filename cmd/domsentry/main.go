// File: cmd/domsentry/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/xkilldash9x/domsentry/cmd"
	"github.com/xkilldash9x/domsentry/internal/interceptor"
	"github.com/xkilldash9x/domsentry/internal/observability"
)

const panicLogFile = "panic.log"

const banner = `
  ___   ___  __  __ ___          _
 |   \ / _ \|  \/  / __| ___ _ _| |_ _ _ _  _
 | |) | (_) | |\/| \__ \/ -_) ' \  _| '_| || |
 |___/ \___/|_|  |_|___/\___|_||_\__|_|  \_, |
                                         |__/
  Type a command (scan, fix, snapshot info, logs list ...), or exit.

`

// Function variables for dependency injection in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	execute     = cmd.Execute
)

func main() {
	// The Sentinel: an escaped panic is recorded before the process dies.
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 {
		if err := execute(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				osExit(0)
			} else {
				osExit(1)
			}
		}
		return
	}

	if err := runInteractive(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}
}

// runInteractive reads one command per line until EOF or exit.
func runInteractive(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprint(out, banner)
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "domsentry > ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		executeInteractiveCommand(ctx, line, out)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Fprintln(out, "Bye.")
	return nil
}

// executeInteractiveCommand runs one shell line on a fresh command tree. A
// failing or panicking command never ends the session.
func executeInteractiveCommand(ctx context.Context, line string, out io.Writer) {
	rootCmd := cmd.NewRootCommand()
	rootCmd.SetArgs(strings.Fields(line))
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	defer func() {
		if r := recover(); r != nil {
			interceptor.ReportPanic(r)
			fmt.Fprintf(out, "Error: command panicked: %v\n", r)
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "Error:", err)
	}
}

// handlePanic records the panic in the runtime log history, writes it with
// its stack to panic.log and exits non-zero.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()
	interceptor.ReportPanic(r)

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(2)
		return // Reached only when osExit is mocked.
	}

	fmt.Fprintf(os.Stderr, "\n----------------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "CRASH DETECTED. Details logged to %s\n", panicLogFile)
	fmt.Fprintf(os.Stderr, "----------------------------------------------------------------\n\n")
	osExit(2)
}
