package memory

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
)

const (
	// MinSimilarity is the Jaccard score a pattern needs to be relevant.
	MinSimilarity = 0.7

	// MaxRelevantPatterns caps GetRelevantPatterns.
	MaxRelevantPatterns = 5
)

// Relevant is a pattern entry with its similarity to the queried context.
type Relevant struct {
	Entry domain.MemoryEntry `json:"entry"`
	Score float64            `json:"score"`
}

// GetRelevantPatterns scores every pattern entry against context by Jaccard
// similarity of their word sets. Ties are ordered newest first, then by key.
func (m *Manager) GetRelevantPatterns(context string) []Relevant {
	query := wordSet(context)
	out := make([]Relevant, 0)

	m.mu.RLock()
	for _, e := range m.partitions[domain.MemoryPattern] {
		score := Jaccard(query, wordSet(patternContext(e.Value)))
		if score >= MinSimilarity {
			out = append(out, Relevant{Entry: e, Score: score})
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Entry.Timestamp.Equal(b.Entry.Timestamp) {
			return a.Entry.Timestamp.After(b.Entry.Timestamp)
		}
		return a.Entry.Key < b.Entry.Key
	})
	if len(out) > MaxRelevantPatterns {
		out = out[:MaxRelevantPatterns]
	}
	return out
}

// patternContext returns the "context" field of an object value, or the
// serialized value itself.
func patternContext(value json.RawMessage) string {
	var obj struct {
		Context *string `json:"context"`
	}
	if err := json.Unmarshal(value, &obj); err == nil && obj.Context != nil {
		return *obj.Context
	}
	return string(value)
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when both sets are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
