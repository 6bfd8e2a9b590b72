package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
)

const (
	// MaxTokens is the number of frequency-ranked tokens kept per file.
	MaxTokens = 100

	// MinTokenLength drops short words from the token ranking.
	MinTokenLength = 3

	// PreviewBytes is the size of the content preview kept in FileSignals.
	PreviewBytes = 500
)

const ident = `[A-Za-z_$][\w$]*`

var (
	tokenPattern = regexp.MustCompile(ident)

	// Static imports and re-exports: import x from './a', import './a', export * from './a'
	staticImportPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*import\s+(?:type\s+)?(?:[\w$*{}\s,]+?\s+from\s+)?['"]([^'"\n]+)['"]`),
		regexp.MustCompile(`(?m)^\s*export\s+(?:type\s+)?(?:\*(?:\s+as\s+` + ident + `)?|\{[^}]*\})\s+from\s+['"]([^'"\n]+)['"]`),
	}

	// Dynamic forms: require('./a'), import('./a')
	dynamicImportPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"\n]+)['"]\s*\)`),
		regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"\n]+)['"]\s*\)`),
	}

	exportDeclPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bexport\s+(?:default\s+)?(?:declare\s+)?(?:abstract\s+)?(?:async\s+)?(?:(?:const|let|var|class|interface|type|enum)\s+|function\s*\*?\s*)(` + ident + `)`),
		regexp.MustCompile(`\b(?:module\.)?exports\.(` + ident + `)\s*=`),
	}
	exportDefaultPattern = regexp.MustCompile(`\bexport\s+default\b`)
	exportListPattern    = regexp.MustCompile(`\bexport\s+(?:type\s+)?\{([^}]*)\}`)

	functionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bfunction\s*\*?\s*(` + ident + `)\s*(?:<[^>]*>)?\s*\(`),
		regexp.MustCompile(`\b(?:const|let|var)\s+(` + ident + `)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:function\b|\([^()]*\)\s*(?::\s*[^=>]+)?=>|` + ident + `\s*=>)`),
	}

	classPattern = regexp.MustCompile(`\bclass\s+(` + ident + `)`)
)

// ExtractSignals derives the lexical signals of a file. It never fails:
// content that matches nothing yields empty lists.
func ExtractSignals(content string) domain.FileSignals {
	return domain.FileSignals{
		Tokens:         ExtractTokens(content),
		Imports:        ExtractImports(content),
		Exports:        ExtractExports(content),
		Functions:      ExtractFunctions(content),
		Classes:        ExtractClasses(content),
		ContentPreview: preview(content),
	}
}

// ExtractTokens returns the most frequent words of the content, most frequent first.
func ExtractTokens(content string) []string {
	counts := make(map[string]int)
	for _, tok := range tokenPattern.FindAllString(content, -1) {
		if len(tok) < MinTokenLength {
			continue
		}
		counts[tok]++
	}

	tokens := make([]string, 0, len(counts))
	for tok := range counts {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})

	if len(tokens) > MaxTokens {
		tokens = tokens[:MaxTokens]
	}
	return tokens
}

// ExtractImports returns import specifiers from both static and dynamic forms,
// in order of first appearance within each family.
func ExtractImports(content string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, group := range [][]*regexp.Regexp{staticImportPatterns, dynamicImportPatterns} {
		for _, re := range group {
			out = appendMatches(out, seen, re, content)
		}
	}
	return nonNil(out)
}

// ExtractExports returns exported binding names.
func ExtractExports(content string) []string {
	var out []string
	seen := make(map[string]bool)

	for _, re := range exportDeclPatterns {
		out = appendMatches(out, seen, re, content)
	}

	for _, m := range exportListPattern.FindAllStringSubmatch(content, -1) {
		for _, part := range strings.Split(m[1], ",") {
			name := exportedName(part)
			if name != "" && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}

	if exportDefaultPattern.MatchString(content) && !seen["default"] {
		out = append(out, "default")
	}
	return nonNil(out)
}

// ExtractFunctions returns names from function declarations and bound callables.
func ExtractFunctions(content string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, re := range functionPatterns {
		out = appendMatches(out, seen, re, content)
	}
	return nonNil(out)
}

// ExtractClasses returns names of declared classes.
func ExtractClasses(content string) []string {
	var out []string
	seen := make(map[string]bool)
	return nonNil(appendMatches(out, seen, classPattern, content))
}

// ContentHash returns the hex-encoded SHA-256 of the content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CountLines returns the number of lines in content.
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// exportedName resolves one entry of an export list: "a", "a as b", "type T".
func exportedName(part string) string {
	part = strings.TrimSpace(part)
	part = strings.TrimPrefix(part, "type ")
	if idx := strings.LastIndex(part, " as "); idx >= 0 {
		part = part[idx+len(" as "):]
	}
	part = strings.TrimSpace(part)
	if !tokenPattern.MatchString(part) || tokenPattern.FindString(part) != part {
		return ""
	}
	return part
}

func appendMatches(out []string, seen map[string]bool, re *regexp.Regexp, content string) []string {
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		if len(m) < 2 {
			continue
		}
		v := strings.TrimSpace(m[1])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func preview(content string) string {
	if len(content) <= PreviewBytes {
		return content
	}
	return strings.ToValidUTF8(content[:PreviewBytes], "")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
