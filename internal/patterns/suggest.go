package patterns

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
)

// Suggestion kinds accepted by GenerateSuggestion.
const (
	SuggestComponent = "component"
	SuggestFunction  = "function"
	SuggestHook      = "hook"
	SuggestClass     = "class"
)

var (
	// ErrUnknownSuggestionKind is returned for an unsupported template kind.
	ErrUnknownSuggestionKind = errors.New("unknown suggestion kind")

	// ErrMissingName is returned when no name is supplied for the template.
	ErrMissingName = errors.New("name is required")
)

// Suggestion is a filled code template.
type Suggestion struct {
	Kind  string           `json:"kind"`
	Name  string           `json:"name"`
	Code  string           `json:"code"`
	Style domain.CodeStyle `json:"style"`
}

// tline is one template line: an indentation depth and text written with
// single quotes and semicolons, adjusted to the project style on render.
type tline struct {
	depth int
	text  string
}

// GenerateSuggestion fills the template for kind with name using the project's
// observed conventions.
func (a *Analyzer) GenerateSuggestion(kind, name string) (*Suggestion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingName
	}

	var lines []tline
	switch strings.ToLower(kind) {
	case SuggestComponent:
		name = upperFirst(name)
		lines = componentTemplate(name)
	case SuggestFunction:
		lines = functionTemplate(name)
	case SuggestHook:
		if !hookName.MatchString(name) {
			name = "use" + upperFirst(name)
		}
		lines = hookTemplate(name)
	case SuggestClass:
		name = upperFirst(name)
		lines = classTemplate(name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSuggestionKind, kind)
	}

	style := a.ProjectStyle()
	return &Suggestion{
		Kind:  strings.ToLower(kind),
		Name:  name,
		Code:  render(lines, style),
		Style: style,
	}, nil
}

func componentTemplate(name string) []tline {
	return []tline{
		{0, "import React from 'react';"},
		{0, ""},
		{0, "export function " + name + "(props) {"},
		{1, "return ("},
		{2, "<div className='" + kebab(name) + "'>"},
		{3, "{props.children}"},
		{2, "</div>"},
		{1, ");"},
		{0, "}"},
		{0, ""},
		{0, "export default " + name + ";"},
	}
}

func functionTemplate(name string) []tline {
	return []tline{
		{0, "export function " + name + "(input) {"},
		{1, "if (input == null) {"},
		{2, "throw new Error('" + name + ": input is required');"},
		{1, "}"},
		{1, "return input;"},
		{0, "}"},
	}
}

func hookTemplate(name string) []tline {
	return []tline{
		{0, "import { useEffect, useState } from 'react';"},
		{0, ""},
		{0, "export function " + name + "(initialValue) {"},
		{1, "const [value, setValue] = useState(initialValue);"},
		{0, ""},
		{1, "useEffect(() => {"},
		{2, "setValue(initialValue);"},
		{1, "}, [initialValue]);"},
		{0, ""},
		{1, "return [value, setValue];"},
		{0, "}"},
	}
}

func classTemplate(name string) []tline {
	return []tline{
		{0, "export class " + name + " {"},
		{1, "constructor(options = {}) {"},
		{2, "this.options = options;"},
		{1, "}"},
		{0, "}"},
	}
}

func render(lines []tline, style domain.CodeStyle) string {
	quote := "'"
	if style.Quotes == domain.QuotesDouble {
		quote = `"`
	}
	unit := indentUnit(style)

	var sb strings.Builder
	for _, l := range lines {
		text := strings.ReplaceAll(l.text, "'", quote)
		if !style.Semicolons {
			text = strings.TrimSuffix(text, ";")
		}
		if text != "" {
			sb.WriteString(strings.Repeat(unit, l.depth))
			sb.WriteString(text)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func upperFirst(s string) string {
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// kebab converts PascalCase to kebab-case for class names.
func kebab(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
