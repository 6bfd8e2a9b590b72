package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// MemoryType partitions memory entries.
type MemoryType string

// Memory partitions.
const (
	MemoryPattern  MemoryType = "pattern"
	MemoryContext  MemoryType = "context"
	MemoryLearning MemoryType = "learning"
	MemoryGeneral  MemoryType = "general"
)

// MemoryTypes lists every partition in exact-recall probe order.
var MemoryTypes = []MemoryType{MemoryPattern, MemoryContext, MemoryLearning, MemoryGeneral}

// ParseMemoryType maps a case-insensitive name to a partition.
func ParseMemoryType(s string) (MemoryType, bool) {
	t := MemoryType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range MemoryTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// MemoryEntry is a durable, typed, key-addressed fact. ID is derived from
// (Type, Key) and does not change across restarts.
type MemoryEntry struct {
	ID          string          `json:"id"`
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	Type        MemoryType      `json:"type"`
	Timestamp   time.Time       `json:"timestamp"`
	ProjectRoot string          `json:"projectRoot"`
}
