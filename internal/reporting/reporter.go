// Package reporting renders scan statistics into report artifacts and writes
// them to a sink.
package reporting

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ArtifactSink stores a named artifact and returns where it went.
type ArtifactSink interface {
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// osWriteFile and osMkdirAll are variables so tests can simulate disk failures.
var (
	osWriteFile = os.WriteFile
	osMkdirAll  = os.MkdirAll
)

// NewSink returns the sink for an export target: a directory path, or
// "-"/"stdout" to print artifacts instead of writing files.
func NewSink(target string) ArtifactSink {
	if target == "-" || target == "stdout" {
		return NewWriterSink(os.Stdout)
	}
	return NewDirSink(target)
}

// -- Directory Sink --

// DirSink writes every artifact as a file in one directory.
type DirSink struct {
	dir string
}

func NewDirSink(dir string) *DirSink {
	if dir == "" {
		dir = "."
	}
	return &DirSink{dir: dir}
}

func (s *DirSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := osMkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, name)
	if err := osWriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	return path, nil
}

// -- Writer Sink --

// WriterSink prints each artifact to a stream under a name banner.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "==> %s <==\n%s\n", name, data); err != nil {
		return "", fmt.Errorf("failed to print artifact %s: %w", name, err)
	}
	return name, nil
}

// -- Memory Sink --

// MemorySink keeps artifacts in memory. The HTTP surface serves from it and
// tests inspect it.
type MemorySink struct {
	mu        sync.Mutex
	artifacts map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{artifacts: make(map[string][]byte)}
}

func (s *MemorySink) Write(ctx context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[name] = append([]byte(nil), data...)
	return name, nil
}

// Get returns a copy of the artifact.
func (s *MemorySink) Get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.artifacts[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Names lists the stored artifacts in lexical order.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.artifacts))
	for name := range s.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
