// Package patterns performs the structural pass over source files: declarations,
// complexity, code style and known idioms.
package patterns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
)

var (
	// ErrEmptyPath is returned when an operation requires a file path.
	ErrEmptyPath = errors.New("file path is required")

	// ErrOutsideRoot is returned for a path that escapes the project root.
	ErrOutsideRoot = errors.New("path is outside the project root")
)

// Analyzer keeps the latest PatternRecord of every analyzed file.
type Analyzer struct {
	root string

	mu      sync.RWMutex
	records map[string]domain.PatternRecord
	styles  map[string]domain.CodeStyle
	order   []string
}

// New creates an analyzer for files under root.
func New(root string) *Analyzer {
	return &Analyzer{
		root:    root,
		records: make(map[string]domain.PatternRecord),
		styles:  make(map[string]domain.CodeStyle),
	}
}

// AnalyzeFile reads and analyzes one file, replacing any previous record for
// it. Unreadable files produce an empty record.
func (a *Analyzer) AnalyzeFile(ctx context.Context, relPath string) (domain.PatternRecord, error) {
	relPath, err := a.relative(relPath)
	if err != nil {
		return domain.PatternRecord{}, err
	}

	var (
		rec    domain.PatternRecord
		parsed bool
	)
	content, err := os.ReadFile(filepath.Join(a.root, filepath.FromSlash(relPath)))
	if err != nil {
		slog.Debug("Analyzing unreadable file as empty", "path", relPath, "error", err)
		rec = emptyRecord(relPath)
	} else {
		rec, parsed = Analyze(ctx, relPath, content)
	}
	rec.AnalyzedAt = time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.records[relPath]; !ok {
		a.order = append(a.order, relPath)
	}
	a.records[relPath] = rec
	if parsed {
		a.styles[relPath] = rec.CodeStyle
	} else {
		delete(a.styles, relPath)
	}
	return rec, nil
}

// relative maps an absolute or root-relative path to a clean slash path
// inside the root.
func (a *Analyzer) relative(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrEmptyPath
	}
	if filepath.IsAbs(p) {
		r, err := filepath.Rel(a.root, p)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
		}
		p = r
	}
	p = filepath.ToSlash(filepath.Clean(p))
	switch {
	case p == ".":
		return "", ErrEmptyPath
	case p == ".." || strings.HasPrefix(p, "../"):
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return p, nil
}

// AnalyzeFiles analyzes paths in order and stops early when ctx is done.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, paths []string) ([]domain.PatternRecord, error) {
	out := make([]domain.PatternRecord, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rec, err := a.AnalyzeFile(ctx, p)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Pattern returns the record of an analyzed path.
func (a *Analyzer) Pattern(path string) (domain.PatternRecord, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.records[path]
	return rec, ok
}

// Patterns returns every record in analysis order.
func (a *Analyzer) Patterns() []domain.PatternRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.PatternRecord, 0, len(a.order))
	for _, p := range a.order {
		out = append(out, a.records[p])
	}
	return out
}

// Forget drops a path, typically after it was deleted.
func (a *Analyzer) Forget(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.records[path]; !ok {
		return
	}
	delete(a.records, path)
	delete(a.styles, path)
	a.order = slices.DeleteFunc(a.order, func(p string) bool { return p == path })
}

// ForgetDir drops every path under dir.
func (a *Analyzer) ForgetDir(dir string) {
	prefix := strings.TrimSuffix(dir, "/") + "/"

	a.mu.Lock()
	defer a.mu.Unlock()

	a.order = slices.DeleteFunc(a.order, func(p string) bool {
		if !strings.HasPrefix(p, prefix) {
			return false
		}
		delete(a.records, p)
		delete(a.styles, p)
		return true
	})
}

// ProjectStyle is the majority style across parsed files, or the default
// style when nothing has been parsed.
func (a *Analyzer) ProjectStyle() domain.CodeStyle {
	a.mu.RLock()
	defer a.mu.RUnlock()

	styles := make([]domain.CodeStyle, 0, len(a.styles))
	for _, p := range a.order {
		if s, ok := a.styles[p]; ok {
			styles = append(styles, s)
		}
	}
	return majorityStyle(styles)
}

// Len returns the number of analyzed files.
func (a *Analyzer) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}
