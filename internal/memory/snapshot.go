package memory

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
)

// Snapshot is the export document of a whole memory.
type Snapshot struct {
	Patterns    []domain.MemoryEntry `json:"patterns"`
	Contexts    []domain.MemoryEntry `json:"contexts"`
	Learnings   []domain.MemoryEntry `json:"learnings"`
	General     []domain.MemoryEntry `json:"general"`
	ExportedAt  time.Time            `json:"exportedAt"`
	ProjectRoot string               `json:"projectRoot"`
}

// Export returns every partition, each sorted by key.
func (m *Manager) Export() Snapshot {
	return Snapshot{
		Patterns:    m.Entries(domain.MemoryPattern),
		Contexts:    m.Entries(domain.MemoryContext),
		Learnings:   m.Entries(domain.MemoryLearning),
		General:     m.Entries(domain.MemoryGeneral),
		ExportedAt:  m.now(),
		ProjectRoot: m.root,
	}
}

// Import stores every entry of snap, keeping its timestamp, and returns the
// number imported. An entry's list decides its partition when its own type
// is missing or unknown. Entries without a key are skipped.
func (m *Manager) Import(snap Snapshot) int {
	lists := []struct {
		typ     domain.MemoryType
		entries []domain.MemoryEntry
	}{
		{domain.MemoryPattern, snap.Patterns},
		{domain.MemoryContext, snap.Contexts},
		{domain.MemoryLearning, snap.Learnings},
		{domain.MemoryGeneral, snap.General},
	}

	n := 0
	for _, list := range lists {
		for _, e := range list.entries {
			if e.Key == "" {
				continue
			}
			t, ok := domain.ParseMemoryType(string(e.Type))
			if !ok {
				t = list.typ
			}
			if len(e.Value) == 0 || !json.Valid(e.Value) {
				e.Value = json.RawMessage("null")
			}
			e.Value = compactValue(e.Value)
			if e.Timestamp.IsZero() {
				e.Timestamp = m.now()
			}
			e.Type = t
			e.ID = EntryID(t, e.Key)
			e.ProjectRoot = m.root
			m.put(e)
			n++
		}
	}
	slog.Info("Memory imported", "entries", n, "from", snap.ProjectRoot)
	return n
}

// ExportToFile writes the export document to path atomically.
func (m *Manager) ExportToFile(path string) error {
	data, err := json.MarshalIndent(m.Export(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal memory snapshot: %w", err)
	}
	if err := writeAtomic(m.store.fs, path, data); err != nil {
		return fmt.Errorf("failed to export memory: %w", err)
	}
	return nil
}

// ImportFromFile reads an export document from path and imports it.
func (m *Manager) ImportFromFile(path string) (int, error) {
	data, err := afero.ReadFile(m.store.fs, path)
	if err != nil {
		return 0, fmt.Errorf("failed to read memory snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("failed to parse memory snapshot: %w", err)
	}
	return m.Import(snap), nil
}
