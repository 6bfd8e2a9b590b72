package domain

import "time"

// CodeDocument represents an indexed source file in the full-text index.
// It is the document shape stored in the in-memory Bleve index.
type CodeDocument struct {
	// ID is the file path relative to the project root.
	ID string `json:"id"`

	// FilePath is the file path relative to the project root.
	// Example: "src/components/Button.tsx"
	FilePath string `json:"file_path"`

	// Extension is the file extension without the leading dot.
	Extension string `json:"extension"`

	// Language is the detected language name (javascript, typescript).
	Language string `json:"language"`

	// Symbols holds the function and class names extracted from the file.
	Symbols []string `json:"symbols"`

	// Content is the full file content used for indexing and search snippets.
	Content string `json:"content"`
}

// Bleve field name constants for consistent field references in queries and mappings.
const (
	CodeFieldID        = "id"
	CodeFieldFilePath  = "file_path"
	CodeFieldExtension = "extension"
	CodeFieldLanguage  = "language"
	CodeFieldSymbols   = "symbols"
	CodeFieldContent   = "content"
)

// FileRecord describes one indexed file. A record is replaced wholesale every
// time its path is re-indexed.
type FileRecord struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mtime"`
	Language    string    `json:"language"`
	ContentHash string    `json:"contentHash"`
	LineCount   int       `json:"lineCount"`
}

// FileSignals holds the lexical signals extracted from a file.
type FileSignals struct {
	Tokens         []string `json:"tokens"`
	Imports        []string `json:"imports"`
	Exports        []string `json:"exports"`
	Functions      []string `json:"functions"`
	Classes        []string `json:"classes"`
	ContentPreview string   `json:"contentPreview"`
}

// DependencyEdge is an import relationship between two files.
// Resolved is empty when the specifier does not map to an indexed file.
type DependencyEdge struct {
	From      string `json:"from"`
	Specifier string `json:"specifier"`
	Resolved  string `json:"resolvedPath,omitempty"`
}

// IsResolved reports whether the edge points at a file.
func (e DependencyEdge) IsResolved() bool {
	return e.Resolved != ""
}

// FileGraph is the exported dependency graph.
type FileGraph struct {
	Nodes []string         `json:"nodes"`
	Edges []DependencyEdge `json:"edges"`
}
