package patterns

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
)

// Query modes accepted by SearchPatterns.
const (
	QueryComponent = "component"
	QueryFunction  = "function"
	QueryPattern   = "pattern"
	QueryText      = "text"
	QueryFullText  = "full-text"
)

// ErrUnknownQueryType is returned for an unsupported query mode.
var ErrUnknownQueryType = errors.New("unknown query type")

// Match is one SearchPatterns hit.
type Match struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
	Name string `json:"name"`
	Line int    `json:"line,omitempty"`
}

// SearchPatterns finds analyzed declarations or idioms whose name contains
// query, case-insensitively. Matches are returned in analysis order, unranked.
func (a *Analyzer) SearchPatterns(query, queryType string) ([]Match, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	matches := make([]Match, 0)

	var collect func(rec domain.PatternRecord) []Match
	switch strings.ToLower(queryType) {
	case QueryComponent:
		collect = func(rec domain.PatternRecord) []Match { return componentMatches(rec, q) }
	case QueryFunction:
		collect = func(rec domain.PatternRecord) []Match { return functionMatches(rec, q) }
	case QueryPattern:
		collect = func(rec domain.PatternRecord) []Match { return idiomMatches(rec, q) }
	case QueryText, QueryFullText:
		collect = func(rec domain.PatternRecord) []Match { return textMatches(rec, q) }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQueryType, queryType)
	}

	for _, rec := range a.Patterns() {
		matches = append(matches, collect(rec)...)
	}
	return matches, nil
}

func componentMatches(rec domain.PatternRecord, q string) []Match {
	var out []Match
	for _, c := range rec.Components {
		if contains(c.Name, q) {
			out = append(out, Match{Path: rec.Path, Kind: QueryComponent, Name: c.Name, Line: c.Line})
		}
	}
	return out
}

func functionMatches(rec domain.PatternRecord, q string) []Match {
	var out []Match
	for _, f := range rec.Functions {
		if contains(f.Name, q) {
			out = append(out, Match{Path: rec.Path, Kind: QueryFunction, Name: f.Name, Line: f.Line})
		}
	}
	return out
}

func idiomMatches(rec domain.PatternRecord, q string) []Match {
	var out []Match
	for _, p := range rec.IdentifiedPatterns {
		if contains(p.Type, q) {
			out = append(out, Match{Path: rec.Path, Kind: p.Type, Name: p.Name, Line: p.Line})
		}
	}
	return out
}

// textMatches searches every name the record carries.
func textMatches(rec domain.PatternRecord, q string) []Match {
	var out []Match
	add := func(kind, name string, line int) {
		if contains(name, q) {
			out = append(out, Match{Path: rec.Path, Kind: kind, Name: name, Line: line})
		}
	}

	for _, s := range rec.Imports {
		add("import", s, 0)
	}
	for _, s := range rec.Exports {
		add("export", s, 0)
	}
	for _, c := range rec.Components {
		add(QueryComponent, c.Name, c.Line)
	}
	for _, f := range rec.Functions {
		add(QueryFunction, f.Name, f.Line)
	}
	for _, c := range rec.Classes {
		add("class", c.Name, c.Line)
	}
	for _, p := range rec.IdentifiedPatterns {
		add(p.Type, p.Type, p.Line)
	}
	return out
}

func contains(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}
