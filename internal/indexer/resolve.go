package indexer

import (
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
)

// ResolveExtensions are appended to a specifier when the literal path is not indexed.
var ResolveExtensions = []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".json"}

// IndexFiles are probed inside a directory specifier.
var IndexFiles = []string{"index.js", "index.jsx", "index.ts", "index.tsx"}

// IsRelative reports whether an import specifier refers to a project file.
func IsRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// Candidates lists the project-relative paths tried, in order, when resolving
// specifier from the file at from. Non-relative specifiers have no candidates.
func Candidates(from, specifier string) []string {
	if !IsRelative(specifier) {
		return nil
	}

	base := path.Clean(path.Join(path.Dir(from), specifier))
	if base == ".." || strings.HasPrefix(base, "../") {
		return nil
	}

	out := make([]string, 0, 1+len(ResolveExtensions)+len(IndexFiles))
	out = append(out, base)
	for _, ext := range ResolveExtensions {
		out = append(out, base+ext)
	}
	for _, idx := range IndexFiles {
		out = append(out, path.Join(base, idx))
	}
	return out
}

// resolveIn returns the first candidate present in files, or "".
func resolveIn(files map[string]domain.FileRecord, from, specifier string) string {
	for _, c := range Candidates(from, specifier) {
		if _, ok := files[c]; ok {
			return c
		}
	}
	return ""
}

// Resolve resolves a specifier against the current index.
func (i *Indexer) Resolve(from, specifier string) string {
	return resolveIn(i.current.Load().files, from, specifier)
}

// computeEdges derives one edge per relative import. Unresolved specifiers keep
// an empty Resolved field. The result is ordered by (From, Specifier).
func computeEdges(files map[string]domain.FileRecord, signals map[string]domain.FileSignals) []domain.DependencyEdge {
	paths := make([]string, 0, len(signals))
	for p := range signals {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	edges := make([]domain.DependencyEdge, 0)
	for _, from := range paths {
		specs := slices.Clone(signals[from].Imports)
		sort.Strings(specs)
		for _, spec := range specs {
			if !IsRelative(spec) {
				continue
			}
			edges = append(edges, domain.DependencyEdge{
				From:      from,
				Specifier: spec,
				Resolved:  resolveIn(files, from, spec),
			})
		}
	}
	return edges
}

// GetFileGraph returns the dependency graph of the current generation. Only
// edges whose target is an indexed path are included.
func (i *Indexer) GetFileGraph() domain.FileGraph {
	s := i.current.Load()

	nodes := make([]string, 0, len(s.files))
	for p := range s.files {
		nodes = append(nodes, p)
	}
	sort.Strings(nodes)

	edges := make([]domain.DependencyEdge, 0, len(s.edges))
	for _, e := range s.edges {
		if !e.IsResolved() {
			continue
		}
		if _, ok := s.files[e.Resolved]; !ok {
			continue
		}
		edges = append(edges, e)
	}

	return domain.FileGraph{Nodes: nodes, Edges: edges}
}
