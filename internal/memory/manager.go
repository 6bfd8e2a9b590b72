// Package memory implements the persistent, type-partitioned memory store
// with exact and fuzzy recall.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/spf13/afero"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
	"github.com/sha1n/mcp-codeintel-server/internal/ignore"
)

const (
	// DefaultCacheTTL is how long a stored or recalled entry stays in the hot cache.
	DefaultCacheTTL = 10 * time.Minute

	// DefaultCacheSize bounds the hot cache.
	DefaultCacheSize = 1000

	// DefaultRetention is the age past which Cleanup purges durable records.
	DefaultRetention = 30 * 24 * time.Hour

	// MaxFuzzyResults caps RecallFuzzy.
	MaxFuzzyResults = 10

	// DirName is the records directory inside the data directory.
	DirName = "memory"
)

var (
	// ErrUnknownType is returned when storing into a partition that does not exist.
	ErrUnknownType = errors.New("unknown memory type")

	// ErrEmptyKey is returned when storing without a key.
	ErrEmptyKey = errors.New("memory key is required")
)

// Options configures a Manager.
type Options struct {
	// Fs holds the durable records. Defaults to the OS filesystem.
	Fs afero.Fs
	// Dir overrides <root>/.codeintel/memory.
	Dir       string
	CacheTTL  time.Duration
	CacheSize int
	Retention time.Duration
	// Now overrides the clock used for timestamps and retention.
	Now func() time.Time
}

// Manager owns the memory of one project root.
type Manager struct {
	root      string
	store     *store
	cache     *expirable.LRU[string, domain.MemoryEntry]
	retention time.Duration
	now       func() time.Time

	mu         sync.RWMutex
	partitions map[domain.MemoryType]map[string]domain.MemoryEntry
}

// New creates a manager for root and loads any durable records already on disk.
func New(root string, opts Options) *Manager {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Dir == "" {
		opts.Dir = filepath.Join(root, ignore.DataDirName, DirName)
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Manager{
		root:       root,
		store:      &store{fs: opts.Fs, dir: opts.Dir},
		cache:      expirable.NewLRU[string, domain.MemoryEntry](opts.CacheSize, nil, opts.CacheTTL),
		retention:  opts.Retention,
		now:        opts.Now,
		partitions: make(map[domain.MemoryType]map[string]domain.MemoryEntry),
	}
	for _, t := range domain.MemoryTypes {
		m.partitions[t] = make(map[string]domain.MemoryEntry)
	}

	loaded := m.store.loadAll()
	for _, e := range loaded {
		m.partitions[e.Type][e.Key] = e
	}
	slog.Debug("Memory loaded", "dir", opts.Dir, "entries", len(loaded))

	return m
}

// Store saves value under (key, type), replacing any earlier entry with the
// same identity. value is stored as JSON; json.RawMessage is kept as is.
// A failed durable write is logged and the entry stays in memory.
func (m *Manager) Store(key string, value any, typ string) (domain.MemoryEntry, error) {
	if strings.TrimSpace(key) == "" {
		return domain.MemoryEntry{}, ErrEmptyKey
	}
	t, ok := domain.ParseMemoryType(typ)
	if !ok {
		return domain.MemoryEntry{}, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}

	raw, err := toJSON(value)
	if err != nil {
		return domain.MemoryEntry{}, err
	}

	e := domain.MemoryEntry{
		ID:          EntryID(t, key),
		Key:         key,
		Value:       raw,
		Type:        t,
		Timestamp:   m.now(),
		ProjectRoot: m.root,
	}
	m.put(e)
	return e, nil
}

// put records e in memory, the hot cache, and the durable store.
func (m *Manager) put(e domain.MemoryEntry) {
	m.mu.Lock()
	m.partitions[e.Type][e.Key] = e
	m.mu.Unlock()

	m.cache.Add(e.ID, e)
	if err := m.store.save(e); err != nil {
		slog.Warn("Failed to persist memory entry", "key", e.Key, "type", e.Type, "error", err)
	}
}

// Recall returns the entry stored under key, probing the partitions in
// MemoryTypes order and each through cache, memory, then durable store.
func (m *Manager) Recall(key string) (domain.MemoryEntry, bool) {
	for _, t := range domain.MemoryTypes {
		id := EntryID(t, key)
		if e, ok := m.cache.Get(id); ok {
			return e, true
		}

		m.mu.RLock()
		e, ok := m.partitions[t][key]
		m.mu.RUnlock()
		if ok {
			m.cache.Add(id, e)
			return e, true
		}

		if e, ok := m.store.load(id); ok {
			m.mu.Lock()
			m.partitions[t][key] = e
			m.mu.Unlock()
			m.cache.Add(id, e)
			return e, true
		}
	}
	return domain.MemoryEntry{}, false
}

// RecallFuzzy returns entries whose key or serialized value contains query,
// case-insensitively, newest first, at most MaxFuzzyResults.
func (m *Manager) RecallFuzzy(query string) []domain.MemoryEntry {
	q := strings.ToLower(query)
	out := make([]domain.MemoryEntry, 0)

	m.mu.RLock()
	for _, part := range m.partitions {
		for _, e := range part {
			if strings.Contains(strings.ToLower(e.Key), q) || strings.Contains(strings.ToLower(string(e.Value)), q) {
				out = append(out, e)
			}
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Type < out[j].Type
	})
	if len(out) > MaxFuzzyResults {
		out = out[:MaxFuzzyResults]
	}
	return out
}

// Entries returns the entries of one partition sorted by key.
func (m *Manager) Entries(t domain.MemoryType) []domain.MemoryEntry {
	m.mu.RLock()
	out := make([]domain.MemoryEntry, 0, len(m.partitions[t]))
	for _, e := range m.partitions[t] {
		out = append(out, e)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Count returns the number of entries across all partitions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, part := range m.partitions {
		n += len(part)
	}
	return n
}

// Cleanup deletes durable records older than the retention window and
// returns how many were removed. Entries already in memory are kept.
func (m *Manager) Cleanup() int {
	cutoff := m.now().Add(-m.retention)
	removed := 0
	for _, id := range m.store.ids() {
		e, ok := m.store.load(id)
		if !ok || !e.Timestamp.Before(cutoff) {
			continue
		}
		if err := m.store.remove(id); err != nil {
			slog.Warn("Failed to purge memory record", "id", id, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Purged expired memory records", "count", removed, "retention", m.retention)
	}
	return removed
}

func toJSON(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, fmt.Errorf("memory value is not valid JSON")
		}
		return compactValue(v), nil
	case nil:
		return json.RawMessage("null"), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal memory value: %w", err)
	}
	return data, nil
}
