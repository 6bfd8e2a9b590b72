// Package contextbuilder assembles bounded context snapshots around source
// positions and caches them until the file changes.
package contextbuilder

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
	"github.com/sha1n/mcp-codeintel-server/internal/indexer"
)

const (
	// DefaultWindow is the number of lines kept on each side of the target line.
	DefaultWindow = 10

	// DefaultCapacity bounds the snapshot cache.
	DefaultCapacity = 100
)

// Context types.
const (
	TypeMinimal = "minimal"
	TypeFull    = "full"
)

var (
	// ErrUnknownContextType is returned for a context type other than minimal or full.
	ErrUnknownContextType = errors.New("unknown context type")

	// ErrInvalidLine is returned for a line number below 1.
	ErrInvalidLine = errors.New("line must be 1 or greater")

	// ErrEmptyPath is returned when no file is given.
	ErrEmptyPath = errors.New("file path is required")

	// ErrOutsideRoot is returned for a path that escapes the project root.
	ErrOutsideRoot = errors.New("path is outside the project root")
)

// IndexSource is the read side of the project index used for resolution and
// forward dependencies.
type IndexSource interface {
	Signals(path string) (domain.FileSignals, bool)
	Resolve(from, specifier string) string
}

// Options configures a Builder.
type Options struct {
	Window   int
	Capacity int
	// Fs is the filesystem files are read from. Defaults to the OS filesystem.
	Fs afero.Fs
}

// Surrounding is the window of lines around the target line.
type Surrounding struct {
	StartLine int      `json:"startLine"`
	EndLine   int      `json:"endLine"`
	Lines     []string `json:"lines"`
	Target    string   `json:"target"`
}

// ImportRef is one import of the target file and its resolution, if any.
type ImportRef struct {
	Specifier string `json:"specifier"`
	Resolved  string `json:"resolved,omitempty"`
}

// RelatedFile is a co-located file found next to the target.
type RelatedFile struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Dependency summarizes a resolved import target from the index.
type Dependency struct {
	Specifier string   `json:"specifier"`
	Path      string   `json:"path"`
	Exports   []string `json:"exports"`
	Functions []string `json:"functions"`
	Classes   []string `json:"classes"`
}

// Usage is a line of the target file that references an imported identifier.
type Usage struct {
	Identifier string `json:"identifier"`
	Line       int    `json:"line"`
	Text       string `json:"text"`
}

// Snapshot is an assembled context. Cached snapshots are shared and must not
// be modified by callers.
type Snapshot struct {
	File         string        `json:"file"`
	Line         int           `json:"line"`
	Type         string        `json:"type"`
	Surrounding  *Surrounding  `json:"surrounding"`
	Imports      []ImportRef   `json:"imports"`
	Exports      []string      `json:"exports"`
	Functions    []string      `json:"functions"`
	Classes      []string      `json:"classes"`
	RelatedFiles []RelatedFile `json:"relatedFiles"`
	Dependencies []Dependency  `json:"dependencies,omitempty"`
	Usages       []Usage       `json:"usages,omitempty"`
	BuiltAt      time.Time     `json:"builtAt"`
}

type cacheKey struct {
	file string
	line int
	typ  string
}

// Builder builds and caches context snapshots for one project root.
type Builder struct {
	root   string
	source IndexSource
	window int
	fs     afero.Fs

	cache *lru.Cache[cacheKey, *Snapshot]
	group singleflight.Group

	// gens counts invalidations so a build that raced one is not cached.
	genMu sync.Mutex
	gens  map[string]uint64
	epoch uint64
}

// New creates a builder. source may be nil, in which case imports stay unresolved.
func New(root string, source IndexSource, opts Options) (*Builder, error) {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	cache, err := lru.New[cacheKey, *Snapshot](opts.Capacity)
	if err != nil {
		return nil, fmt.Errorf("create context cache: %w", err)
	}

	return &Builder{
		root:   root,
		source: source,
		window: opts.Window,
		fs:     opts.Fs,
		cache:  cache,
		gens:   make(map[string]uint64),
	}, nil
}

// BuildContext returns the snapshot for (file, line, contextType), building it
// on a cache miss. Concurrent builds of the same key share one result.
func (b *Builder) BuildContext(file string, line int, contextType string) (*Snapshot, error) {
	file, err := b.rel(file)
	if err != nil {
		return nil, err
	}
	if line < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLine, line)
	}
	contextType = strings.ToLower(strings.TrimSpace(contextType))
	if contextType != TypeMinimal && contextType != TypeFull {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContextType, contextType)
	}

	key := cacheKey{file: file, line: line, typ: contextType}

	// Peek keeps insertion order as the eviction order.
	if snap, ok := b.cache.Peek(key); ok {
		return snap, nil
	}

	v, _, _ := b.group.Do(fmt.Sprintf("%s\x00%d\x00%s", file, line, contextType), func() (any, error) {
		if snap, ok := b.cache.Peek(key); ok {
			return snap, nil
		}
		gen := b.generation(file)
		snap := b.build(file, line, contextType)
		b.addIfCurrent(key, gen, snap)
		return snap, nil
	})
	return v.(*Snapshot), nil
}

// Invalidate drops every cached snapshot of file.
func (b *Builder) Invalidate(file string) {
	file, err := b.rel(file)
	if err != nil {
		return
	}
	b.genMu.Lock()
	b.gens[file]++
	b.genMu.Unlock()

	for _, key := range b.cache.Keys() {
		if key.file == file {
			b.cache.Remove(key)
		}
	}
}

// InvalidateDir drops every cached snapshot of files under dir.
func (b *Builder) InvalidateDir(dir string) {
	rel, err := b.rel(dir)
	if err != nil {
		return
	}
	prefix := rel + "/"
	b.genMu.Lock()
	b.epoch++
	b.genMu.Unlock()

	for _, key := range b.cache.Keys() {
		if strings.HasPrefix(key.file, prefix) {
			b.cache.Remove(key)
		}
	}
}

// Purge drops every cached snapshot.
func (b *Builder) Purge() {
	b.genMu.Lock()
	b.epoch++
	b.genMu.Unlock()
	b.cache.Purge()
}

func (b *Builder) generation(file string) uint64 {
	b.genMu.Lock()
	defer b.genMu.Unlock()
	return b.gens[file] + b.epoch
}

// addIfCurrent caches snap unless key.file was invalidated since gen was read.
// The check and the insert share genMu with the invalidation counters.
func (b *Builder) addIfCurrent(key cacheKey, gen uint64, snap *Snapshot) bool {
	b.genMu.Lock()
	defer b.genMu.Unlock()
	if b.gens[key.file]+b.epoch != gen {
		return false
	}
	b.cache.Add(key, snap)
	return true
}

// Len returns the number of cached snapshots.
func (b *Builder) Len() int {
	return b.cache.Len()
}

// build assembles a snapshot. A file that cannot be read yields a nil
// Surrounding and index-only imports and exports.
func (b *Builder) build(file string, line int, contextType string) *Snapshot {
	snap := &Snapshot{
		File:         file,
		Line:         line,
		Type:         contextType,
		Imports:      []ImportRef{},
		Exports:      []string{},
		Functions:    []string{},
		Classes:      []string{},
		RelatedFiles: []RelatedFile{},
	}

	content, err := afero.ReadFile(b.fs, b.abs(file))
	readable := err == nil
	if !readable {
		slog.Debug("Context target unreadable", "file", file, "error", err)
	}

	var sig domain.FileSignals
	switch {
	case readable:
		sig = indexer.ExtractSignals(string(content))
		snap.Surrounding = window(string(content), line, b.window)
	case b.source != nil:
		sig, _ = b.source.Signals(file)
	}

	for _, spec := range sig.Imports {
		ref := ImportRef{Specifier: spec}
		if b.source != nil && indexer.IsRelative(spec) {
			ref.Resolved = b.source.Resolve(file, spec)
		}
		snap.Imports = append(snap.Imports, ref)
	}
	snap.Exports = append(snap.Exports, sig.Exports...)
	snap.Functions = append(snap.Functions, sig.Functions...)
	snap.Classes = append(snap.Classes, sig.Classes...)
	snap.RelatedFiles = b.relatedFiles(file)

	if contextType == TypeFull {
		snap.Dependencies = b.dependencies(snap.Imports)
		snap.Usages = []Usage{}
		if readable {
			snap.Usages = usages(string(content))
		}
	}

	snap.BuiltAt = time.Now()
	return snap
}

func (b *Builder) dependencies(imports []ImportRef) []Dependency {
	deps := make([]Dependency, 0)
	if b.source == nil {
		return deps
	}
	for _, ref := range imports {
		if ref.Resolved == "" {
			continue
		}
		sig, ok := b.source.Signals(ref.Resolved)
		if !ok {
			continue
		}
		deps = append(deps, Dependency{
			Specifier: ref.Specifier,
			Path:      ref.Resolved,
			Exports:   sig.Exports,
			Functions: sig.Functions,
			Classes:   sig.Classes,
		})
	}
	return deps
}

func (b *Builder) abs(rel string) string {
	return filepath.Join(b.root, filepath.FromSlash(rel))
}

// window cuts the lines within n of line, clipped to the file.
func window(content string, line, n int) *Surrounding {
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	if content == "" {
		lines = []string{}
	}
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}

	start := max(line-n, 1)
	end := min(line+n, len(lines))

	s := &Surrounding{StartLine: start, EndLine: end, Lines: []string{}}
	if start <= end {
		s.Lines = append(s.Lines, lines[start-1:end]...)
	}
	if line <= len(lines) {
		s.Target = lines[line-1]
	}
	return s
}

// rel normalizes a root-relative or absolute path to slash form.
func (b *Builder) rel(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrEmptyPath
	}
	if filepath.IsAbs(p) {
		r, err := filepath.Rel(b.root, p)
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
