// Package ignore decides which project paths take part in indexing and watching.
package ignore

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFilename is the project-root ignore file, read with gitignore syntax.
const IgnoreFilename = ".gitignore"

// DataDirName is the engine's own state directory inside the project root.
const DataDirName = ".codeintel"

// Rule sources reported by Resolver.Source.
const (
	SourceGitignore = "gitignore"
	SourceDefaults  = "defaults"
)

// DefaultPatterns are used when the project has no ignore file.
// They cover build outputs, dependency directories and version control.
var DefaultPatterns = []string{
	// Version control
	".git/", ".svn/", ".hg/",

	// Dependencies
	"node_modules/", "vendor/", "bower_components/", "jspm_packages/",

	// Build outputs
	"dist/", "build/", "out/", "coverage/", ".next/", ".nuxt/", ".cache/",

	// Generated files
	"*.min.js", "*.map",
}

// alwaysExcluded are directory names skipped regardless of the active rules.
var alwaysExcluded = map[string]bool{
	".git":      true,
	DataDirName: true,
}

// Resolver answers inclusion questions for paths relative to the project root.
type Resolver struct {
	matcher *gitignore.GitIgnore
	source  string
}

// Load reads the project's ignore file, falling back to DefaultPatterns when
// it is missing or has no usable rules.
func Load(root string) *Resolver {
	path := filepath.Join(root, IgnoreFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read ignore file, using defaults", "path", path, "error", err)
		}
		return NewResolver(DefaultPatterns)
	}

	lines := ruleLines(string(data))
	if len(lines) == 0 {
		return NewResolver(DefaultPatterns)
	}

	return &Resolver{
		matcher: gitignore.CompileIgnoreLines(lines...),
		source:  SourceGitignore,
	}
}

// NewResolver creates a resolver from explicit gitignore-style patterns.
func NewResolver(patterns []string) *Resolver {
	return &Resolver{
		matcher: gitignore.CompileIgnoreLines(patterns...),
		source:  SourceDefaults,
	}
}

// Source reports where the active rules came from.
func (r *Resolver) Source() string {
	return r.source
}

// Ignored returns true if relPath should be skipped.
// The path should be relative to the project root.
func (r *Resolver) Ignored(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(filepath.Clean(relPath))
	if relPath == "." || relPath == "" {
		return false
	}

	for _, part := range strings.Split(relPath, "/") {
		if alwaysExcluded[part] {
			return true
		}
	}

	if r.matcher.MatchesPath(relPath) {
		return true
	}
	if isDir && r.matcher.MatchesPath(relPath+"/") {
		return true
	}
	return false
}

// ruleLines drops blank lines and comments from an ignore file.
func ruleLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// IsBinary checks if the content appears to be binary by looking for null bytes
// in the first 512 bytes. This is a heuristic used by git and other tools.
func IsBinary(content []byte) bool {
	checkLen := min(len(content), 512)

	for i := range checkLen {
		if content[i] == 0 {
			return true
		}
	}
	return false
}

// GetFileExtension returns the file extension without the leading dot.
// Returns empty string if no extension.
func GetFileExtension(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimPrefix(ext, ".")
}
