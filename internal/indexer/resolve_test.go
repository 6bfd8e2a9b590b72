package indexer

import (
	"testing"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
)

func TestIsRelative(t *testing.T) {
	tests := map[string]bool{
		"./b":       true,
		"../lib/x":  true,
		".":         true,
		"react":     false,
		"@scope/ui": false,
		"/abs/path": false,
	}
	for spec, want := range tests {
		if got := IsRelative(spec); got != want {
			t.Errorf("IsRelative(%q) = %v, want %v", spec, got, want)
		}
	}
}

func TestCandidates_Order(t *testing.T) {
	got := Candidates("src/a.js", "./b")
	if len(got) == 0 {
		t.Fatal("Expected candidates")
	}
	if got[0] != "src/b" {
		t.Errorf("first candidate = %q, want src/b", got[0])
	}
	if got[1] != "src/b.js" {
		t.Errorf("second candidate = %q, want src/b.js", got[1])
	}
	if last := got[len(got)-1]; last != "src/b/index.tsx" {
		t.Errorf("last candidate = %q, want src/b/index.tsx", last)
	}
}

func TestCandidates_EscapingRoot(t *testing.T) {
	if got := Candidates("a.js", "../../x"); got != nil {
		t.Errorf("Candidates() = %v, want nil", got)
	}
}

func TestResolveIn(t *testing.T) {
	files := map[string]domain.FileRecord{
		"src/a.js":           {Path: "src/a.js"},
		"src/b.ts":           {Path: "src/b.ts"},
		"src/lib/index.js":   {Path: "src/lib/index.js"},
		"src/data.json":      {Path: "src/data.json"},
		"src/exact.js":       {Path: "src/exact.js"},
		"src/exact.js.ts":    {Path: "src/exact.js.ts"},
		"shared/util.jsx":    {Path: "shared/util.jsx"},
		"src/nested/deep.js": {Path: "src/nested/deep.js"},
	}

	tests := []struct {
		from, spec, want string
	}{
		{"src/a.js", "./b", "src/b.ts"},
		{"src/a.js", "./lib", "src/lib/index.js"},
		{"src/a.js", "./data", "src/data.json"},
		{"src/a.js", "./exact.js", "src/exact.js"},
		{"src/a.js", "../shared/util", "shared/util.jsx"},
		{"src/nested/deep.js", "../b", "src/b.ts"},
		{"src/a.js", "./missing", ""},
		{"src/a.js", "react", ""},
		{"src/a.js", "lodash/fp", ""},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.spec, func(t *testing.T) {
			if got := resolveIn(files, tt.from, tt.spec); got != tt.want {
				t.Errorf("resolveIn(%q, %q) = %q, want %q", tt.from, tt.spec, got, tt.want)
			}
		})
	}
}

func TestComputeEdges_SkipsNonRelativeAndKeepsUnresolved(t *testing.T) {
	files := map[string]domain.FileRecord{
		"a.js": {Path: "a.js"},
		"b.js": {Path: "b.js"},
	}
	signals := map[string]domain.FileSignals{
		"a.js": {Imports: []string{"react", "./b", "./gone"}},
		"b.js": {Imports: []string{}},
	}

	edges := computeEdges(files, signals)
	if len(edges) != 2 {
		t.Fatalf("len(edges) = %d, want 2: %v", len(edges), edges)
	}
	if edges[0].Specifier != "./b" || edges[0].Resolved != "b.js" {
		t.Errorf("edges[0] = %+v, want ./b -> b.js", edges[0])
	}
	if edges[1].Specifier != "./gone" || edges[1].IsResolved() {
		t.Errorf("edges[1] = %+v, want unresolved ./gone", edges[1])
	}
}
