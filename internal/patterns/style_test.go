package patterns

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
)

func TestDetectStyle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    domain.CodeStyle
	}{
		{
			name:    "tabs double quotes semicolons",
			content: "function a() {\n\treturn \"x\";\n}\n",
			want:    domain.CodeStyle{Indentation: domain.IndentTabs, IndentSize: 1, Quotes: domain.QuotesDouble, Semicolons: true},
		},
		{
			name:    "four spaces single quotes no semicolons",
			content: "function a() {\n    const x = 'y'\n    return x\n}\n",
			want:    domain.CodeStyle{Indentation: domain.IndentSpaces, IndentSize: 4, Quotes: domain.QuotesSingle, Semicolons: false},
		},
		{
			name:    "two spaces nested",
			content: "if (a) {\n  if (b) {\n    go();\n  }\n}\n",
			want:    domain.CodeStyle{Indentation: domain.IndentSpaces, IndentSize: 2, Quotes: domain.QuotesSingle, Semicolons: true},
		},
		{
			name:    "comments are ignored",
			content: "// don't \"count\" me\n/*\n * \"block\"\n */\nconst a = 'b';\n",
			want:    domain.CodeStyle{Indentation: domain.IndentSpaces, IndentSize: 2, Quotes: domain.QuotesSingle, Semicolons: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectStyle(tt.content); got != tt.want {
				t.Errorf("DetectStyle() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestProjectStyle_Majority(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.js", "const a = \"x\"\n")
	writeSource(t, root, "b.js", "const b = \"y\"\n")
	writeSource(t, root, "c.js", "const c = 'z';\n")

	a := New(root)
	if _, err := a.AnalyzeFiles(context.Background(), []string{"a.js", "b.js", "c.js"}); err != nil {
		t.Fatalf("AnalyzeFiles failed: %v", err)
	}

	style := a.ProjectStyle()
	if style.Quotes != domain.QuotesDouble {
		t.Errorf("Quotes = %q, want double", style.Quotes)
	}
	if style.Semicolons {
		t.Error("Expected semicolons = false")
	}
}

func TestProjectStyle_DefaultWhenEmpty(t *testing.T) {
	if got := New(t.TempDir()).ProjectStyle(); got != domain.DefaultCodeStyle {
		t.Errorf("ProjectStyle() = %+v, want default", got)
	}
}

func TestGenerateSuggestion_DefaultStyle(t *testing.T) {
	a := New(t.TempDir())

	s, err := a.GenerateSuggestion("component", "button")
	if err != nil {
		t.Fatalf("GenerateSuggestion failed: %v", err)
	}
	if s.Name != "Button" {
		t.Errorf("Name = %q, want Button", s.Name)
	}
	for _, want := range []string{
		"import React from 'react';\n",
		"export function Button(props) {\n",
		"\n  return (\n",
		"<div className='button'>",
	} {
		if !strings.Contains(s.Code, want) {
			t.Errorf("Code missing %q:\n%s", want, s.Code)
		}
	}

	hook, err := a.GenerateSuggestion("hook", "counter")
	if err != nil {
		t.Fatalf("GenerateSuggestion failed: %v", err)
	}
	if hook.Name != "useCounter" {
		t.Errorf("Name = %q, want useCounter", hook.Name)
	}

	class, err := a.GenerateSuggestion("class", "cache")
	if err != nil {
		t.Fatalf("GenerateSuggestion failed: %v", err)
	}
	if !strings.HasPrefix(class.Code, "export class Cache {\n") {
		t.Errorf("Code = %q", class.Code)
	}
}

func TestGenerateSuggestion_FollowsProjectStyle(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.js", "function a() {\n    return \"x\"\n}\n")

	a := New(root)
	if _, err := a.AnalyzeFile(context.Background(), "a.js"); err != nil {
		t.Fatalf("AnalyzeFile failed: %v", err)
	}

	s, err := a.GenerateSuggestion("function", "format")
	if err != nil {
		t.Fatalf("GenerateSuggestion failed: %v", err)
	}
	want := "        throw new Error(\"format: input is required\")\n"
	if !strings.Contains(s.Code, want) {
		t.Errorf("Code missing %q:\n%s", want, s.Code)
	}
}

func TestGenerateSuggestion_Contract(t *testing.T) {
	a := New(t.TempDir())

	if _, err := a.GenerateSuggestion("widget", "x"); !errors.Is(err, ErrUnknownSuggestionKind) {
		t.Errorf("err = %v, want ErrUnknownSuggestionKind", err)
	}
	if _, err := a.GenerateSuggestion("function", " "); !errors.Is(err, ErrMissingName) {
		t.Errorf("err = %v, want ErrMissingName", err)
	}
}
