package domain

import "time"

// PatternRecord is the structural analysis of one file. It is replaced, never
// merged, when the file is analyzed again.
type PatternRecord struct {
	Path               string         `json:"path"`
	Imports            []string       `json:"imports"`
	Exports            []string       `json:"exports"`
	Components         []ComponentDef `json:"components"`
	Functions          []FunctionDef  `json:"functions"`
	Classes            []ClassDef     `json:"classes"`
	IdentifiedPatterns []Idiom        `json:"identifiedPatterns"`
	CodeStyle          CodeStyle      `json:"codeStyle"`
	ComplexityScore    int            `json:"complexityScore"`
	AnalyzedAt         time.Time      `json:"analyzedAt"`
}

// IsEmpty reports whether the analysis found nothing structural.
func (r PatternRecord) IsEmpty() bool {
	return len(r.Imports) == 0 && len(r.Exports) == 0 && len(r.Components) == 0 &&
		len(r.Functions) == 0 && len(r.Classes) == 0 && len(r.IdentifiedPatterns) == 0
}

// ComponentDef is a UI component candidate: a capitalized top-level callable or
// a class extending a component base.
type ComponentDef struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // function, arrow, class
	Line int    `json:"line"`
}

// FunctionDef is a named function with its own complexity counter.
type FunctionDef struct {
	Name       string `json:"name"`
	Line       int    `json:"line"`
	Params     int    `json:"params"`
	Async      bool   `json:"async,omitempty"`
	Complexity int    `json:"complexity"`
}

// ClassDef is a declared class.
type ClassDef struct {
	Name    string   `json:"name"`
	Line    int      `json:"line"`
	Extends string   `json:"extends,omitempty"`
	Methods []string `json:"methods"`
}

// Idiom is a match against the known-idiom catalog.
type Idiom struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	Line int    `json:"line"`
}

// Indentation styles.
const (
	IndentSpaces = "spaces"
	IndentTabs   = "tabs"
)

// Quote styles.
const (
	QuotesSingle = "single"
	QuotesDouble = "double"
)

// CodeStyle is a per-file or project-wide formatting fingerprint.
type CodeStyle struct {
	Indentation string `json:"indentation"`
	IndentSize  int    `json:"indentSize"`
	Quotes      string `json:"quotes"`
	Semicolons  bool   `json:"semicolons"`
}

// DefaultCodeStyle is used when nothing has been observed.
var DefaultCodeStyle = CodeStyle{
	Indentation: IndentSpaces,
	IndentSize:  2,
	Quotes:      QuotesSingle,
	Semicolons:  true,
}
