// Package workspace provides sandboxed file access rooted at a single
// directory. All paths are resolved against the root and refused if they
// escape it, so agents can only touch files inside the project they are
// building.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"codeloom/internal/fileutil"
	"codeloom/internal/logging"
)

var (
	// ErrNotFound is returned when reading a path that does not exist.
	ErrNotFound = errors.New("file not found in workspace")
	// ErrPermissionDenied is returned when a path resolves outside the root.
	ErrPermissionDenied = errors.New("path outside workspace")
	// ErrExists is returned when creating a file that is already present.
	ErrExists = errors.New("file already exists")
)

// WriteMode controls how Write treats an existing file.
type WriteMode string

const (
	// ModeCreate fails if the file already exists.
	ModeCreate WriteMode = "create"
	// ModeOverwrite replaces any existing content.
	ModeOverwrite WriteMode = "overwrite"
	// ModeAppend appends to existing content, creating the file if needed.
	ModeAppend WriteMode = "append"
)

// Operation is one recorded mutation, kept for the run report.
type Operation struct {
	Path  string
	Mode  WriteMode
	Bytes int
	Time  time.Time
}

// Workspace is a sandboxed view of one directory tree.
type Workspace struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	ops   []Operation
}

// New creates a workspace rooted at dir, creating the directory if needed.
func New(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace root: %w", err)
	}
	return &Workspace{
		root:  abs,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve maps a workspace-relative (or absolute) path to an absolute path,
// refusing anything that escapes the root.
func (w *Workspace) Resolve(path string) (string, error) {
	if path == "" || strings.Contains(path, "\x00") {
		return "", fmt.Errorf("%w: %q", ErrPermissionDenied, path)
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.root, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(w.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q", ErrPermissionDenied, path)
	}
	return abs, nil
}

// Read returns the content of a file inside the workspace.
func (w *Workspace) Read(path string) ([]byte, error) {
	abs, err := w.Resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// Write stores content at path according to mode. Parent directories are
// created as needed and the write itself is atomic, except in append mode.
func (w *Workspace) Write(path string, content []byte, mode WriteMode) error {
	abs, err := w.Resolve(path)
	if err != nil {
		return err
	}

	lock := w.fileLock(abs)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("creating parent directory for %s: %w", path, err)
	}

	switch mode {
	case ModeCreate:
		if _, err := os.Stat(abs); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		if err := fileutil.AtomicWrite(abs, content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	case ModeOverwrite:
		if err := fileutil.AtomicWrite(abs, content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	case ModeAppend:
		f, err := os.OpenFile(abs, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening %s for append: %w", path, err)
		}
		if _, err := f.Write(content); err != nil {
			f.Close()
			return fmt.Errorf("appending to %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unknown write mode %q", mode)
	}

	w.recordOp(Operation{Path: path, Mode: mode, Bytes: len(content), Time: time.Now()})
	logging.Debug("workspace write", "path", path, "mode", string(mode), "bytes", len(content))
	return nil
}

// List returns the workspace-relative paths of all regular files under dir,
// sorted. Pass "" or "." for the whole workspace.
func (w *Workspace) List(dir string) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := w.Resolve(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, p)
		if relErr != nil {
			return relErr
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Exists reports whether path refers to an existing file in the workspace.
func (w *Workspace) Exists(path string) bool {
	abs, err := w.Resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && !info.IsDir()
}

// Operations returns a copy of the mutation history for reporting.
func (w *Workspace) Operations() []Operation {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Operation, len(w.ops))
	copy(out, w.ops)
	return out
}

func (w *Workspace) recordOp(op Operation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ops = append(w.ops, op)
}

func (w *Workspace) fileLock(abs string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	lock, ok := w.locks[abs]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[abs] = lock
	}
	return lock
}
