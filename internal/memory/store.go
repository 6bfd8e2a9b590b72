package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
)

// RecordExt is the extension of durable memory records.
const RecordExt = ".json"

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/sha1n/mcp-codeintel-server/memory"))

// EntryID returns the stable identity of (type, key).
func EntryID(typ domain.MemoryType, key string) string {
	return uuid.NewSHA1(idNamespace, []byte(string(typ)+"\x00"+key)).String()
}

// record is the on-disk form of a MemoryEntry. The ID is the file name.
type record struct {
	Key         string            `json:"key"`
	Value       json.RawMessage   `json:"value"`
	Type        domain.MemoryType `json:"type"`
	Timestamp   time.Time         `json:"timestamp"`
	ProjectRoot string            `json:"projectRoot"`
}

// store keeps one JSON file per entry under dir.
type store struct {
	fs  afero.Fs
	dir string
}

func (s *store) path(id string) string {
	return filepath.Join(s.dir, id+RecordExt)
}

// save writes the entry atomically.
func (s *store) save(e domain.MemoryEntry) error {
	data, err := json.Marshal(record{
		Key:         e.Key,
		Value:       e.Value,
		Type:        e.Type,
		Timestamp:   e.Timestamp,
		ProjectRoot: e.ProjectRoot,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal memory record: %w", err)
	}
	return writeAtomic(s.fs, s.path(e.ID), data)
}

// load reads one record. Missing and corrupt records are misses.
func (s *store) load(id string) (domain.MemoryEntry, bool) {
	data, err := afero.ReadFile(s.fs, s.path(id))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read memory record", "id", id, "error", err)
		}
		return domain.MemoryEntry{}, false
	}
	return decode(id, data)
}

// loadAll reads every record in the directory, skipping corrupt ones.
func (s *store) loadAll() []domain.MemoryEntry {
	ids := s.ids()
	entries := make([]domain.MemoryEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.load(id); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func (s *store) ids() []string {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to list memory records", "dir", s.dir, "error", err)
		}
		return nil
	}

	var ids []string
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasSuffix(name, RecordExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, RecordExt))
	}
	sort.Strings(ids)
	return ids
}

func (s *store) remove(id string) error {
	if err := s.fs.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove memory record: %w", err)
	}
	return nil
}

func decode(id string, data []byte) (domain.MemoryEntry, bool) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		slog.Warn("Skipping corrupt memory record", "id", id, "error", err)
		return domain.MemoryEntry{}, false
	}
	typ, ok := domain.ParseMemoryType(string(r.Type))
	if !ok || r.Key == "" {
		slog.Warn("Skipping invalid memory record", "id", id, "type", r.Type)
		return domain.MemoryEntry{}, false
	}
	return domain.MemoryEntry{
		ID:          EntryID(typ, r.Key),
		Key:         r.Key,
		Value:       compactValue(r.Value),
		Type:        typ,
		Timestamp:   r.Timestamp,
		ProjectRoot: r.ProjectRoot,
	}, true
}

// compactValue strips insignificant whitespace so values read back from
// disk or snapshots match the form they were stored in.
func compactValue(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// writeAtomic writes to a temporary file in the target directory, then
// renames it into place.
func writeAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := afero.TempFile(fs, dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := fs.Rename(tempPath, path); err != nil {
		_ = fs.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
