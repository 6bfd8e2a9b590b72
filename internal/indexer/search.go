package indexer

import (
	"path"
	"sort"
	"strings"
)

// Search score weights.
const (
	ScoreFilename = 10
	ScoreSymbol   = 5
	ScorePreview  = 1
)

// SearchResult is one ranked Search hit.
type SearchResult struct {
	Path      string   `json:"path"`
	Score     int      `json:"score"`
	Language  string   `json:"language"`
	Matches   []string `json:"matches"`
	Functions []string `json:"functions,omitempty"`
	Classes   []string `json:"classes,omitempty"`
}

// Search ranks indexed files against query. A filename match outranks a
// function or class name match, which outranks a content preview match.
// Matching is case-insensitive; files scoring zero are excluded.
func (i *Indexer) Search(query string) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []SearchResult{}
	}

	s := i.current.Load()
	results := make([]SearchResult, 0)

	for p, rec := range s.files {
		sig := s.signals[p]
		score := 0
		var matches []string

		if strings.Contains(strings.ToLower(path.Base(p)), q) {
			score += ScoreFilename
			matches = append(matches, "filename")
		}
		if containsFold(sig.Functions, q) || containsFold(sig.Classes, q) {
			score += ScoreSymbol
			matches = append(matches, "symbol")
		}
		if strings.Contains(strings.ToLower(sig.ContentPreview), q) {
			score += ScorePreview
			matches = append(matches, "content")
		}
		if score == 0 {
			continue
		}

		results = append(results, SearchResult{
			Path:      p,
			Score:     score,
			Language:  rec.Language,
			Matches:   matches,
			Functions: sig.Functions,
			Classes:   sig.Classes,
		})
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Path < results[b].Path
	})

	if len(results) > i.maxResults {
		results = results[:i.maxResults]
	}
	return results
}

func containsFold(names []string, lowerQuery string) bool {
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), lowerQuery) {
			return true
		}
	}
	return false
}
