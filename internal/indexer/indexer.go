// Package indexer walks a project tree and maintains per-file records, lexical
// signals and the project dependency graph.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/sha1n/mcp-codeintel-server/internal/domain"
	"github.com/sha1n/mcp-codeintel-server/internal/ignore"
)

const (
	// DefaultMaxFileSize is the largest file the indexer reads (1MB).
	DefaultMaxFileSize = 1024 * 1024

	// DefaultMaxResults caps Search results.
	DefaultMaxResults = 20
)

// DefaultExtensions are the source extensions the indexer considers.
var DefaultExtensions = []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"}

// ErrEmptyPath is returned when an operation requires a file path.
var ErrEmptyPath = errors.New("file path is required")

// Options configures an Indexer.
type Options struct {
	MaxFileSize int64
	Extensions  []string
	MaxResults  int
}

// IndexStats summarizes one Index run.
type IndexStats struct {
	FileCount     int
	EdgeCount     int
	ResolvedEdges int
	Skipped       int
	Reused        int
	Full          bool
	Duration      time.Duration
}

// snapshot is one immutable index generation. Readers load it once and never
// see a partially built state. The text index is shared by copy-on-write
// successors produced by UpdateFile.
type snapshot struct {
	files   map[string]domain.FileRecord
	signals map[string]domain.FileSignals
	edges   []domain.DependencyEdge
	text    bleve.Index
	builtAt time.Time
}

func emptySnapshot() *snapshot {
	return &snapshot{
		files:   map[string]domain.FileRecord{},
		signals: map[string]domain.FileSignals{},
		edges:   []domain.DependencyEdge{},
	}
}

// Indexer owns the index for one project root.
type Indexer struct {
	root       string
	resolver   *ignore.Resolver
	maxSize    int64
	extensions map[string]bool
	maxResults int

	current atomic.Pointer[snapshot]

	// writeMu serializes Index and UpdateFile.
	writeMu sync.Mutex
	// textMu guards closing a retired text index against in-flight searches.
	textMu sync.RWMutex
}

// New creates an indexer for root. A nil resolver uses the default ignore rules.
func New(root string, resolver *ignore.Resolver, opts Options) *Indexer {
	if resolver == nil {
		resolver = ignore.NewResolver(ignore.DefaultPatterns)
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[strings.ToLower(ext)] = true
	}

	i := &Indexer{
		root:       root,
		resolver:   resolver,
		maxSize:    opts.MaxFileSize,
		extensions: exts,
		maxResults: opts.MaxResults,
	}
	i.current.Store(emptySnapshot())
	return i
}

// Root returns the project root.
func (i *Indexer) Root() string {
	return i.root
}

// Supported reports whether path has an indexed source extension.
func (i *Indexer) Supported(path string) bool {
	return i.extensions[strings.ToLower(filepath.Ext(path))]
}

// Index walks the project and replaces the index in one step. When full is
// false, records whose size and modification time are unchanged since the
// previous generation are reused without re-extraction.
// Cancelling ctx abandons the new generation; the previous one stays visible.
func (i *Indexer) Index(ctx context.Context, full bool) (*IndexStats, error) {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	start := time.Now()
	prev := i.current.Load()
	next := emptySnapshot()
	stats := &IndexStats{Full: full}

	text, err := newTextIndex()
	if err != nil {
		slog.Warn("Full-text index unavailable", "error", err)
	}
	next.text = text

	batch := newTextBatch(text)

	walkErr := filepath.WalkDir(i.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == i.root {
				return err
			}
			slog.Debug("Skipping unreadable path", "path", path, "error", err)
			return nil
		}

		relPath, err := filepath.Rel(i.root, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && i.resolver.Ignored(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !i.Supported(relPath) || i.resolver.Ignored(relPath, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			stats.Skipped++
			return nil
		}
		if info.Size() > i.maxSize {
			stats.Skipped++
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			slog.Debug("Skipping unreadable file", "path", relPath, "error", err)
			stats.Skipped++
			return nil
		}
		if ignore.IsBinary(content) {
			stats.Skipped++
			return nil
		}

		if old, ok := prev.files[relPath]; ok && !full && old.Size == info.Size() && old.ModTime.Equal(info.ModTime()) {
			next.files[relPath] = old
			next.signals[relPath] = prev.signals[relPath]
			stats.Reused++
		} else {
			rec, sig := i.derive(relPath, info, content)
			next.files[relPath] = rec
			next.signals[relPath] = sig
		}

		batch.add(i.textDocument(relPath, next.signals[relPath], content))
		return nil
	})

	if walkErr != nil {
		closeTextIndex(text)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("walk project: %w", walkErr)
	}

	batch.flush()

	next.edges = computeEdges(next.files, next.signals)
	next.builtAt = time.Now()

	i.current.Store(next)
	i.retire(prev)

	stats.FileCount = len(next.files)
	stats.EdgeCount = len(next.edges)
	for _, e := range next.edges {
		if e.IsResolved() {
			stats.ResolvedEdges++
		}
	}
	stats.Duration = time.Since(start)

	slog.Info("Indexed project",
		"root", i.root,
		"files", stats.FileCount,
		"edges", stats.EdgeCount,
		"skipped", stats.Skipped,
		"reused", stats.Reused,
		"full", full,
		"duration", stats.Duration)

	return stats, nil
}

// UpdateFile re-derives one file and recomputes the edge set. Files that no
// longer exist, became ignored, or cannot be read are removed from the index.
// relPath may also be an absolute path inside the root.
func (i *Indexer) UpdateFile(relPath string) error {
	relPath, err := i.relative(relPath)
	if err != nil {
		return err
	}

	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	prev := i.current.Load()
	next := prev.clone()

	content, info, ok := i.readSource(relPath)
	if ok {
		rec, sig := i.derive(relPath, info, content)
		next.files[relPath] = rec
		next.signals[relPath] = sig
		if next.text != nil {
			if err := next.text.Index(relPath, i.textDocument(relPath, sig, content)); err != nil {
				slog.Warn("Failed to update full-text document", "path", relPath, "error", err)
			}
		}
	} else {
		if _, indexed := next.files[relPath]; !indexed {
			return nil
		}
		delete(next.files, relPath)
		delete(next.signals, relPath)
		if next.text != nil {
			if err := next.text.Delete(relPath); err != nil {
				slog.Warn("Failed to delete full-text document", "path", relPath, "error", err)
			}
		}
	}

	next.edges = computeEdges(next.files, next.signals)
	i.current.Store(next)
	return nil
}

// RemoveDir drops every indexed file under relDir.
func (i *Indexer) RemoveDir(relDir string) error {
	relDir, err := i.relative(relDir)
	if err != nil {
		return err
	}

	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	prev := i.current.Load()
	next := prev.clone()
	prefix := relDir + "/"
	removed := 0
	for path := range prev.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		delete(next.files, path)
		delete(next.signals, path)
		if next.text != nil {
			_ = next.text.Delete(path)
		}
		removed++
	}
	if removed == 0 {
		return nil
	}

	next.edges = computeEdges(next.files, next.signals)
	i.current.Store(next)
	return nil
}

// Files returns the indexed paths in lexical order.
func (i *Indexer) Files() []string {
	return slices.Sorted(maps.Keys(i.current.Load().files))
}

// Record returns the FileRecord of an indexed path.
func (i *Indexer) Record(path string) (domain.FileRecord, bool) {
	rec, ok := i.current.Load().files[path]
	return rec, ok
}

// Signals returns the FileSignals of an indexed path.
func (i *Indexer) Signals(path string) (domain.FileSignals, bool) {
	sig, ok := i.current.Load().signals[path]
	return sig, ok
}

// Edges returns every dependency edge of the current generation, including
// unresolved ones.
func (i *Indexer) Edges() []domain.DependencyEdge {
	return slices.Clone(i.current.Load().edges)
}

// Stats reports the size of the current generation.
func (i *Indexer) Stats() (files, edges int, builtAt time.Time) {
	s := i.current.Load()
	return len(s.files), len(s.edges), s.builtAt
}

// Close releases the full-text index.
func (i *Indexer) Close() error {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	s := i.current.Load()
	i.current.Store(emptySnapshot())
	i.retire(s)
	return nil
}

// derive builds the record and signals for one file's content.
func (i *Indexer) derive(relPath string, info fs.FileInfo, content []byte) (domain.FileRecord, domain.FileSignals) {
	text := string(content)
	rec := domain.FileRecord{
		Path:        relPath,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Language:    LanguageOf(relPath),
		ContentHash: ContentHash(content),
		LineCount:   CountLines(text),
	}
	return rec, ExtractSignals(text)
}

// readSource reads one candidate file, reporting false when it should not be indexed.
func (i *Indexer) readSource(relPath string) ([]byte, fs.FileInfo, bool) {
	if !i.Supported(relPath) || i.resolver.Ignored(relPath, false) {
		return nil, nil, false
	}

	absPath := filepath.Join(i.root, filepath.FromSlash(relPath))
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() || info.Size() > i.maxSize {
		return nil, nil, false
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		slog.Debug("Skipping unreadable file", "path", relPath, "error", err)
		return nil, nil, false
	}
	if ignore.IsBinary(content) {
		return nil, nil, false
	}
	return content, info, true
}

// relative normalizes a root-relative or absolute path to a slash-separated relative path.
func (i *Indexer) relative(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(i.root, path)
		if err != nil {
			return "", fmt.Errorf("path %q is outside the project: %w", path, err)
		}
		path = rel
	}
	path = filepath.ToSlash(filepath.Clean(path))
	if path == "." || strings.HasPrefix(path, "../") || path == ".." {
		return "", fmt.Errorf("path %q is outside the project", path)
	}
	return path, nil
}

// retire closes a replaced generation's text index unless the successor shares it.
func (i *Indexer) retire(old *snapshot) {
	if old == nil || old.text == nil {
		return
	}
	if cur := i.current.Load(); cur != nil && cur.text == old.text {
		return
	}
	i.textMu.Lock()
	defer i.textMu.Unlock()
	closeTextIndex(old.text)
}

func (s *snapshot) clone() *snapshot {
	return &snapshot{
		files:   maps.Clone(s.files),
		signals: maps.Clone(s.signals),
		edges:   s.edges,
		text:    s.text,
		builtAt: time.Now(),
	}
}

// LanguageOf maps a path to its language family.
func LanguageOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".tsx", ".mts", ".cts":
		return "typescript"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	default:
		return "unknown"
	}
}
