// Package engine owns every code-intelligence component for one project root
// and keeps them current with the filesystem.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sha1n/mcp-codeintel-server/internal/config"
	"github.com/sha1n/mcp-codeintel-server/internal/contextbuilder"
	"github.com/sha1n/mcp-codeintel-server/internal/domain"
	"github.com/sha1n/mcp-codeintel-server/internal/ignore"
	"github.com/sha1n/mcp-codeintel-server/internal/indexer"
	"github.com/sha1n/mcp-codeintel-server/internal/memory"
	"github.com/sha1n/mcp-codeintel-server/internal/patterns"
	"github.com/sha1n/mcp-codeintel-server/internal/watcher"
)

// PatternKeyPrefix prefixes the memory keys written by LearnPatterns.
const PatternKeyPrefix = "pattern:"

var (
	// ErrClosed is returned by operations on a closed service.
	ErrClosed = errors.New("engine is closed")

	// ErrOutsideRoot is returned for a path that resolves outside the project root.
	ErrOutsideRoot = errors.New("path is outside the project root")

	// ErrEmptyPath is returned when no path is given.
	ErrEmptyPath = errors.New("path is required")

	// ErrRootNotDir is returned when the project root is missing or not a directory.
	ErrRootNotDir = errors.New("project root is not a directory")
)

// Service coordinates indexing, analysis, context building and memory for a
// project root.
type Service struct {
	settings *config.Settings
	root     string

	resolver *ignore.Resolver
	indexer  *indexer.Indexer
	analyzer *patterns.Analyzer
	contexts *contextbuilder.Builder
	memory   *memory.Manager
	watcher  *watcher.Watcher
	lock     *FileLock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	unsubscribe []func()
	initialized bool
	closed      bool
}

// LearnResult summarizes a LearnPatterns run.
type LearnResult struct {
	Analyzed int              `json:"analyzed"`
	Stored   int              `json:"stored"`
	Keys     []string         `json:"keys"`
	Style    domain.CodeStyle `json:"style"`
}

// LearnedPattern is the memory value stored for each analyzed file.
type LearnedPattern struct {
	Context string               `json:"context"`
	Record  domain.PatternRecord `json:"record"`
}

// NewService creates all components for settings.Project.Root.
func NewService(settings *config.Settings) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}

	root, err := filepath.Abs(settings.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	resolver := ignore.Load(root)
	idx := indexer.New(root, resolver, indexer.Options{
		MaxFileSize: settings.Project.MaxFileSize,
		Extensions:  settings.Project.Extensions,
		MaxResults:  settings.Search.MaxResults,
	})

	contexts, err := contextbuilder.New(root, idx, contextbuilder.Options{
		Window:   settings.Context.Window,
		Capacity: settings.Context.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context builder: %w", err)
	}

	mem := memory.New(root, memory.Options{
		Dir:       settings.Memory.Dir,
		CacheTTL:  settings.Memory.CacheTTL,
		Retention: settings.Memory.Retention,
	})

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		settings: settings,
		root:     root,
		resolver: resolver,
		indexer:  idx,
		analyzer: patterns.New(root),
		contexts: contexts,
		memory:   mem,
		watcher:  watcher.New(root, resolver, settings.Project.DebounceWindow),
		lock:     NewFileLock(filepath.Join(root, ignore.DataDirName, LockFilename)),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Initialize indexes and analyzes the project, starts watching when enabled,
// and starts the memory maintenance loop.
func (s *Service) Initialize(ctx context.Context) error {
	// Checked before the lock, which would otherwise create the root.
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRootNotDir, s.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotDir, s.root)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.mu.Unlock()

	leader, err := s.lock.TryLock()
	if err != nil {
		slog.Warn("Failed to acquire engine lock, running without maintenance", "error", err)
	} else if leader {
		slog.Info("Acquired engine lock", "path", s.lock.Path())
	} else {
		slog.Info("Another instance holds the engine lock", "path", s.lock.Path())
	}

	if _, err := s.Reindex(ctx, true); err != nil {
		return fmt.Errorf("initial index failed: %w", err)
	}

	slog.Info("Ignore rules loaded", "source", s.resolver.Source())

	if s.settings.Project.Watch {
		s.mu.Lock()
		s.unsubscribe = append(s.unsubscribe,
			s.watcher.Subscribe(s.onIndexEvent),
			s.watcher.Subscribe(s.onAnalyzeEvent),
			s.watcher.Subscribe(s.onContextEvent),
		)
		s.mu.Unlock()

		if err := s.watcher.Start(nil); err != nil {
			slog.Error("Failed to start watcher", "root", s.root, "error", err)
		}
	}

	s.wg.Add(1)
	go s.maintain(s.settings.Memory.CleanupInterval)

	return nil
}

// Reindex rebuilds the index, re-analyzes every indexed file, drops patterns
// of files no longer indexed, and clears the context cache.
func (s *Service) Reindex(ctx context.Context, full bool) (*indexer.IndexStats, error) {
	stats, err := s.indexer.Index(ctx, full)
	if err != nil {
		return nil, err
	}

	files := s.indexer.Files()
	if _, err := s.analyzer.AnalyzeFiles(ctx, files); err != nil {
		return stats, fmt.Errorf("analysis interrupted: %w", err)
	}

	indexed := make(map[string]bool, len(files))
	for _, f := range files {
		indexed[f] = true
	}
	for _, rec := range s.analyzer.Patterns() {
		if !indexed[rec.Path] {
			s.analyzer.Forget(rec.Path)
		}
	}

	s.contexts.Purge()
	slog.Info("Project analyzed", "files", len(files), "patterns", s.analyzer.Len())
	return stats, nil
}

// LearnPatterns analyzes every indexed file and stores each non-empty record
// in memory under "pattern:<path>".
func (s *Service) LearnPatterns(ctx context.Context) (*LearnResult, error) {
	result := &LearnResult{Keys: []string{}}

	for _, path := range s.indexer.Files() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rec, err := s.analyzer.AnalyzeFile(ctx, path)
		if err != nil {
			return result, fmt.Errorf("failed to analyze %s: %w", path, err)
		}
		result.Analyzed++
		if rec.IsEmpty() {
			continue
		}

		key := PatternKeyPrefix + path
		if _, err := s.memory.Store(key, LearnedPattern{Context: Describe(rec), Record: rec}, string(domain.MemoryPattern)); err != nil {
			return result, fmt.Errorf("failed to store pattern %s: %w", key, err)
		}
		result.Stored++
		result.Keys = append(result.Keys, key)
	}

	result.Style = s.analyzer.ProjectStyle()
	slog.Info("Patterns learned", "analyzed", result.Analyzed, "stored", result.Stored)
	return result, nil
}

// Describe flattens a record into the word list GetRelevantPatterns compares.
func Describe(rec domain.PatternRecord) string {
	var words []string
	for _, c := range rec.Components {
		words = append(words, "component", c.Name)
	}
	for _, f := range rec.Functions {
		words = append(words, f.Name)
	}
	for _, c := range rec.Classes {
		words = append(words, "class", c.Name)
		if c.Extends != "" {
			words = append(words, c.Extends)
		}
	}
	for _, idiom := range rec.IdentifiedPatterns {
		words = append(words, idiom.Type)
	}
	words = append(words, rec.Imports...)
	words = append(words, rec.Exports...)
	return strings.Join(words, " ")
}

func (s *Service) onIndexEvent(ev watcher.Event) {
	switch ev.Kind {
	case watcher.EventAdd, watcher.EventChange, watcher.EventDelete:
		if err := s.indexer.UpdateFile(ev.RelPath); err != nil {
			slog.Warn("Failed to update index", "path", ev.RelPath, "error", err)
		}
	case watcher.EventDeleteDir:
		if err := s.indexer.RemoveDir(ev.RelPath); err != nil {
			slog.Warn("Failed to drop directory from index", "path", ev.RelPath, "error", err)
		}
	case watcher.EventAddDir:
		for _, rel := range s.sourcesUnder(ev.RelPath) {
			if err := s.indexer.UpdateFile(rel); err != nil {
				slog.Warn("Failed to update index", "path", rel, "error", err)
			}
		}
	}
}

func (s *Service) onAnalyzeEvent(ev watcher.Event) {
	switch ev.Kind {
	case watcher.EventAdd, watcher.EventChange:
		if s.indexer.Supported(ev.RelPath) {
			if _, err := s.analyzer.AnalyzeFile(s.ctx, ev.RelPath); err != nil {
				slog.Warn("Failed to analyze file", "path", ev.RelPath, "error", err)
			}
		}
	case watcher.EventDelete:
		s.analyzer.Forget(ev.RelPath)
	case watcher.EventDeleteDir:
		s.analyzer.ForgetDir(ev.RelPath)
	case watcher.EventAddDir:
		for _, rel := range s.sourcesUnder(ev.RelPath) {
			if _, err := s.analyzer.AnalyzeFile(s.ctx, rel); err != nil {
				slog.Warn("Failed to analyze file", "path", rel, "error", err)
			}
		}
	}
}

func (s *Service) onContextEvent(ev watcher.Event) {
	switch ev.Kind {
	case watcher.EventDeleteDir, watcher.EventAddDir:
		s.contexts.InvalidateDir(ev.RelPath)
	default:
		s.contexts.Invalidate(ev.RelPath)
	}
}

// sourcesUnder lists supported, non-ignored files below a root-relative directory.
func (s *Service) sourcesUnder(relDir string) []string {
	var out []string
	start := filepath.Join(s.root, filepath.FromSlash(relDir))
	_ = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if path != start && s.resolver.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.indexer.Supported(rel) && !s.resolver.Ignored(rel, false) {
			out = append(out, rel)
		}
		return nil
	})
	sort.Strings(out)
	return out
}

// maintain purges expired memory records while this instance holds the
// engine lock, and retries the lock on every tick otherwise.
func (s *Service) maintain(interval time.Duration) {
	defer s.wg.Done()
	if interval <= 0 {
		interval = time.Hour
	}

	s.cleanupIfLeader()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if !s.lock.IsLocked() {
				if ok, err := s.lock.TryLock(); err != nil || !ok {
					continue
				}
				slog.Info("Acquired engine lock", "path", s.lock.Path())
			}
			s.cleanupIfLeader()
		}
	}
}

func (s *Service) cleanupIfLeader() {
	if s.lock.IsLocked() {
		s.memory.Cleanup()
	}
}

// IsLeader reports whether this instance holds the engine lock.
func (s *Service) IsLeader() bool {
	return s.lock.IsLocked()
}

// RelPath converts an absolute or root-relative path to the slash-separated
// root-relative form every component keys files by.
func (s *Service) RelPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrEmptyPath
	}
	if filepath.IsAbs(p) {
		r, err := filepath.Rel(s.root, p)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
		}
		p = r
	}
	p = filepath.ToSlash(filepath.Clean(p))
	switch {
	case p == ".":
		return "", ErrEmptyPath
	case p == "..", strings.HasPrefix(p, "../"):
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return p, nil
}

// Root returns the absolute project root.
func (s *Service) Root() string {
	return s.root
}

// Indexer returns the codebase indexer.
func (s *Service) Indexer() *indexer.Indexer {
	return s.indexer
}

// Analyzer returns the pattern analyzer.
func (s *Service) Analyzer() *patterns.Analyzer {
	return s.analyzer
}

// Contexts returns the context builder.
func (s *Service) Contexts() *contextbuilder.Builder {
	return s.contexts
}

// Memory returns the memory manager.
func (s *Service) Memory() *memory.Manager {
	return s.memory
}

// Watcher returns the file watcher.
func (s *Service) Watcher() *watcher.Watcher {
	return s.watcher
}

// Close stops watching and maintenance, releases the lock, and closes the index.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	s.watcher.Stop()
	s.cancel()
	s.wg.Wait()

	var errs []error
	if err := s.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	if err := s.indexer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close index: %w", err))
	}
	return errors.Join(errs...)
}
