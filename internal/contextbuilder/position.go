package contextbuilder

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"unicode"
)

// Identifier kinds reported by GetContextForPosition.
const (
	KindClass     = "class"
	KindComponent = "component"
	KindFunction  = "function"
	KindVariable  = "variable"
	KindUnknown   = "unknown"
)

// ErrInvalidColumn is returned for a column below 1.
var ErrInvalidColumn = errors.New("column must be 1 or greater")

// Position is a full context plus the identifier under the cursor.
type Position struct {
	Context        *Snapshot `json:"context"`
	Column         int       `json:"column"`
	Identifier     string    `json:"identifier,omitempty"`
	IdentifierKind string    `json:"identifierKind"`
}

// GetContextForPosition builds the full context for (file, line) and extracts
// the identifier touching the 1-based column.
func (b *Builder) GetContextForPosition(file string, line, column int) (*Position, error) {
	if column < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidColumn, column)
	}

	snap, err := b.BuildContext(file, line, TypeFull)
	if err != nil {
		return nil, err
	}

	pos := &Position{Context: snap, Column: column, IdentifierKind: KindUnknown}
	if snap.Surrounding == nil {
		return pos, nil
	}

	pos.Identifier = IdentifierAt(snap.Surrounding.Target, column)
	if pos.Identifier != "" {
		pos.IdentifierKind = classify(pos.Identifier, snap.Surrounding.Target, snap)
	}
	return pos, nil
}

// IdentifierAt returns the longest run of word characters touching the
// 1-based column, or "" when the cursor is not on or next to a word.
func IdentifierAt(text string, column int) string {
	runes := []rune(text)
	c := column - 1
	if c < 0 || c > len(runes) {
		return ""
	}

	start := c
	if start == len(runes) || !isWordRune(runes[start]) {
		if start == 0 || !isWordRune(runes[start-1]) {
			return ""
		}
		start--
	}

	end := start
	for start > 0 && isWordRune(runes[start-1]) {
		start--
	}
	for end < len(runes) && isWordRune(runes[end]) {
		end++
	}

	word := string(runes[start:end])
	if unicode.IsDigit(runes[start]) {
		return ""
	}
	return word
}

func isWordRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// classify applies shallow textual rules to the identifier.
func classify(id, line string, snap *Snapshot) string {
	q := regexp.QuoteMeta(id)
	matches := func(pattern string) bool {
		return regexp.MustCompile(pattern).MatchString(line)
	}
	capitalized := unicode.IsUpper([]rune(id)[0])

	switch {
	case slices.Contains(snap.Classes, id) || matches(`\bclass\s+`+q+`\b`) || matches(`\bnew\s+`+q+`\b`):
		return KindClass
	case capitalized && (slices.Contains(snap.Functions, id) || matches(`<`+q+`\b`)):
		return KindComponent
	case slices.Contains(snap.Functions, id) || matches(`\bfunction\s*\*?\s*`+q+`\b`) || matches(`(^|[^\w$])`+q+`\s*\(`):
		return KindFunction
	case matches(`\b(const|let|var)\s+`+q+`\b`) || unicode.IsLower([]rune(id)[0]) || id[0] == '_':
		return KindVariable
	default:
		return KindUnknown
	}
}
