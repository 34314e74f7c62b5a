package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Host owns a document. The engine only borrows the tree: it loads it, mutates
// it transiently, and commits the result back.
type Host interface {
	// Load returns the current document. Hosts that keep a live tree return the
	// same *Document on every call so mutations are visible to later loads.
	Load(ctx context.Context) (*Document, error)
	// Commit makes doc the host's current content.
	Commit(ctx context.Context, doc *Document) error
	// Name identifies the host in logs and reports.
	Name() string
}

// -- Memory Host --

// MemoryHost keeps a live tree in memory. It backs the HTTP surface and tests.
type MemoryHost struct {
	mu  sync.Mutex
	doc *Document
}

// NewMemoryHost parses markup into a live tree.
func NewMemoryHost(markup, locationHost string) (*MemoryHost, error) {
	doc, err := ParseString(markup, locationHost)
	if err != nil {
		return nil, err
	}
	return &MemoryHost{doc: doc}, nil
}

func (h *MemoryHost) Load(ctx context.Context) (*Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc, nil
}

// Commit swaps the content of the live tree, so holders of an earlier Load
// result observe the committed document.
func (h *MemoryHost) Commit(ctx context.Context, doc *Document) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if doc != h.doc {
		h.doc.ReplaceRoot(doc)
	}
	return nil
}

func (h *MemoryHost) Name() string { return "memory" }

// -- File Host --

// FileHost reads the document from an HTML file and writes commits back to it.
type FileHost struct {
	path         string
	locationHost string
}

func NewFileHost(path, locationHost string) *FileHost {
	return &FileHost{path: path, locationHost: locationHost}
}

func (h *FileHost) Load(ctx context.Context) (*Document, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document %s: %w", h.path, err)
	}
	defer f.Close()
	return Parse(f, h.locationHost)
}

// Commit writes through a temporary file and renames it into place so a crash
// never leaves a half-written document.
func (h *FileHost) Commit(ctx context.Context, doc *Document) error {
	markup, err := doc.Render()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(h.path), ".domsentry-*.html")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(markup); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		return fmt.Errorf("failed to replace document %s: %w", h.path, err)
	}
	return nil
}

func (h *FileHost) Name() string { return h.path }

// Path is the file the host reads and writes.
func (h *FileHost) Path() string { return h.path }

// ChromePrefix marks a document source that points at a live browser tab.
const ChromePrefix = "chrome:"

// IsChromeSource reports whether source names a live tab rather than a file.
func IsChromeSource(source string) bool {
	return strings.HasPrefix(source, ChromePrefix)
}
