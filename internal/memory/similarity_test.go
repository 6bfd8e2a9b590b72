package memory

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"a b c", "a b c", 1},
		{"A B", "a, b!", 1},
		{"a b", "b c", 1.0 / 3},
		{"a b", "c d", 0},
		{"", "", 0},
		{"a", "", 0},
	}

	for _, tt := range tests {
		got := Jaccard(wordSet(tt.a), wordSet(tt.b))
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Jaccard(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPatternContext(t *testing.T) {
	tests := map[string]string{
		`{"context":"react hook","path":"a.js"}`: "react hook",
		`"plain string"`:                         `"plain string"`,
		`{"path":"a.js"}`:                        `{"path":"a.js"}`,
	}
	for raw, want := range tests {
		if got := patternContext([]byte(raw)); got != want {
			t.Errorf("patternContext(%s) = %q, want %q", raw, got, want)
		}
	}
}

func TestGetRelevantPatterns(t *testing.T) {
	c := newClock()
	m := newManager(afero.NewMemMapFs(), c)
	query := "react component hook state"

	store := func(key, ctx, typ string) {
		mustStore(t, m, key, map[string]string{"context": ctx}, typ)
		c.advance(time.Minute)
	}
	store("exact-old", query, "pattern")
	store("exact-new", query, "pattern")
	store("close", "react component hook state effect", "pattern")
	store("far", "react component hook props", "pattern")
	store("other-partition", query, "context")
	mustStore(t, m, "raw", query, "pattern")

	got := m.GetRelevantPatterns(query)

	want := []struct {
		key   string
		score float64
	}{
		{"raw", 1},
		{"exact-new", 1},
		{"exact-old", 1},
		{"close", 0.8},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Entry.Key != w.key || math.Abs(got[i].Score-w.score) > 1e-9 {
			t.Errorf("[%d] = (%s, %v), want (%s, %v)", i, got[i].Entry.Key, got[i].Score, w.key, w.score)
		}
	}
}

func TestGetRelevantPatterns_Cap(t *testing.T) {
	m := newManager(afero.NewMemMapFs(), newClock())

	// Identical timestamps fall back to key order
	for i := range 7 {
		mustStore(t, m, fmt.Sprintf("p%d", i), map[string]string{"context": "same words"}, "pattern")
	}

	got := m.GetRelevantPatterns("same words")
	if len(got) != MaxRelevantPatterns {
		t.Fatalf("len = %d, want %d", len(got), MaxRelevantPatterns)
	}
	for i, r := range got {
		if want := fmt.Sprintf("p%d", i); r.Entry.Key != want {
			t.Errorf("[%d] = %s, want %s", i, r.Entry.Key, want)
		}
	}

	if none := m.GetRelevantPatterns("nothing similar"); len(none) != 0 {
		t.Errorf("GetRelevantPatterns() = %v, want empty", none)
	}
}
