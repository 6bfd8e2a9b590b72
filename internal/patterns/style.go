package patterns

import (
	"strings"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
)

// styleVotes holds the raw counts behind a CodeStyle so that file-level
// fingerprints can be combined into a project-wide majority.
type styleVotes struct {
	spaces, tabs     int
	size2, size4     int
	single, double   int
	withSemi, noSemi int
}

// DetectStyle fingerprints the formatting of one file.
func DetectStyle(content string) domain.CodeStyle {
	return countStyle(content).style()
}

func countStyle(content string) styleVotes {
	var v styleVotes
	inBlockComment := false

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if inBlockComment {
			if strings.Contains(trimmed, "*/") {
				inBlockComment = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "/*") {
			inBlockComment = !strings.Contains(trimmed, "*/")
			continue
		}
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
			continue
		}

		switch line[0] {
		case '\t':
			v.tabs++
		case ' ':
			v.spaces++
			lead := len(line) - len(strings.TrimLeft(line, " "))
			if lead%4 == 0 {
				v.size4++
			} else if lead%2 == 0 {
				v.size2++
			}
		}

		v.single += strings.Count(line, "'")
		v.double += strings.Count(line, `"`)

		if isStatementLine(trimmed) {
			if strings.HasSuffix(trimmed, ";") {
				v.withSemi++
			} else {
				v.noSemi++
			}
		}
	}
	return v
}

// isStatementLine excludes lines that open or close a block, call or literal.
func isStatementLine(trimmed string) bool {
	switch trimmed[len(trimmed)-1] {
	case '{', '}', '(', ')', '[', ',':
		return false
	}
	return true
}

// style resolves the votes by majority. Ties keep the default.
func (v styleVotes) style() domain.CodeStyle {
	s := domain.DefaultCodeStyle

	if v.tabs > v.spaces {
		s.Indentation = domain.IndentTabs
		s.IndentSize = 1
	} else if v.size4 > 0 && v.size2 == 0 {
		// Every space-indented line is a multiple of four
		s.IndentSize = 4
	}

	if v.double > v.single {
		s.Quotes = domain.QuotesDouble
	}

	if v.noSemi > v.withSemi {
		s.Semicolons = false
	}
	return s
}

// majorityStyle combines file fingerprints, one vote per file per attribute.
// Ties keep the default.
func majorityStyle(styles []domain.CodeStyle) domain.CodeStyle {
	s := domain.DefaultCodeStyle
	var tabs, spaces, size4, size2, double, single, semi, noSemi int
	for _, st := range styles {
		if st.Indentation == domain.IndentTabs {
			tabs++
		} else {
			spaces++
			if st.IndentSize == 4 {
				size4++
			} else {
				size2++
			}
		}
		if st.Quotes == domain.QuotesDouble {
			double++
		} else {
			single++
		}
		if st.Semicolons {
			semi++
		} else {
			noSemi++
		}
	}

	if tabs > spaces {
		s.Indentation = domain.IndentTabs
		s.IndentSize = 1
	} else if size4 > size2 {
		s.IndentSize = 4
	}
	if double > single {
		s.Quotes = domain.QuotesDouble
	}
	if noSemi > semi {
		s.Semicolons = false
	}
	return s
}

// indentUnit returns the whitespace for one indentation level.
func indentUnit(s domain.CodeStyle) string {
	if s.Indentation == domain.IndentTabs {
		return "\t"
	}
	size := s.IndentSize
	if size <= 0 {
		size = 2
	}
	return strings.Repeat(" ", size)
}
