package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mcp-codeintel-server/internal/engine"
	"github.com/sha1n/mcp-codeintel-server/internal/indexer"
)

// Search modes.
const (
	SearchText = "text"
	SearchName = "name"
)

// IndexCodebaseArgument defines index_codebase parameters.
type IndexCodebaseArgument struct {
	Incremental bool `json:"incremental,omitempty" jsonschema:"Only re-read files whose size or modification time changed"`
}

// SearchArgument defines search_code parameters.
type SearchArgument struct {
	Query     string `json:"query" validate:"notblank" jsonschema:"Search query (supports wildcards and phrases in text mode)"`
	Extension string `json:"extension,omitempty" jsonschema:"Filter by file extension (e.g., ts, jsx)"`
	Mode      string `json:"mode,omitempty" validate:"omitempty,oneof=text name" jsonschema:"text (default) searches file content; name ranks files by path, function and class names"`
	Limit     int    `json:"limit,omitempty" validate:"omitempty,min=1,max=100" jsonschema:"Maximum number of results"`
}

// SearchHandler handles the index_codebase and search_code MCP tools.
type SearchHandler struct {
	service *engine.Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service *engine.Service) *SearchHandler {
	return &SearchHandler{service: service}
}

// HandleIndex re-indexes the project.
func (h *SearchHandler) HandleIndex(ctx context.Context, req *mcp.CallToolRequest, args IndexCodebaseArgument) (*mcp.CallToolResult, any, error) {
	stats, err := h.service.Reindex(ctx, !args.Incremental)
	if err != nil {
		return errorResult("Indexing failed: %s", err), nil, nil
	}
	return textResult(FormatStats(stats)), nil, nil
}

// HandleSearch executes the search and returns formatted results.
func (h *SearchHandler) HandleSearch(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	args.Mode = strings.ToLower(strings.TrimSpace(args.Mode))
	if err := validateArgs(args); err != nil {
		return errorResult("%s", err), nil, nil
	}

	if args.Mode == SearchName {
		results := h.service.Indexer().Search(args.Query)
		if args.Extension != "" {
			results = filterByExtension(results, args.Extension)
		}
		if args.Limit > 0 && len(results) > args.Limit {
			results = results[:args.Limit]
		}
		return formatNameResults(results, args.Query), nil, nil
	}

	hits := h.service.Indexer().SearchContent(args.Query, args.Extension, args.Limit)
	return formatContentResults(hits, args.Query), nil, nil
}

func filterByExtension(results []indexer.SearchResult, ext string) []indexer.SearchResult {
	suffix := "." + strings.TrimPrefix(strings.ToLower(ext), ".")
	out := results[:0:0]
	for _, r := range results {
		if strings.HasSuffix(strings.ToLower(r.Path), suffix) {
			out = append(out, r)
		}
	}
	return out
}

// formatContentResults formats full-text hits for MCP response.
func formatContentResults(hits []indexer.ContentHit, queryStr string) *mcp.CallToolResult {
	if len(hits) == 0 {
		return textResult(fmt.Sprintf("No results found for query: %s", queryStr))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results for '%s':\n\n", len(hits), queryStr))

	for i, hit := range hits {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, hit.Path))
		sb.WriteString(fmt.Sprintf("**Score**: %.4f\n\n", hit.Score))

		if len(hit.Fragments) > 0 {
			sb.WriteString("```" + hit.Language + "\n")
			for _, fragment := range hit.Fragments {
				sb.WriteString(fragment)
				sb.WriteString("\n")
			}
			sb.WriteString("```\n")
		}

		sb.WriteString("\n")
	}

	return textResult(sb.String())
}

// formatNameResults formats ranked name matches for MCP response.
func formatNameResults(results []indexer.SearchResult, queryStr string) *mcp.CallToolResult {
	if len(results) == 0 {
		return textResult(fmt.Sprintf("No results found for query: %s", queryStr))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results for '%s':\n\n", len(results), queryStr))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, r.Path))
		sb.WriteString(fmt.Sprintf("**Score**: %d (%s)\n", r.Score, strings.Join(r.Matches, ", ")))
		if len(r.Functions) > 0 {
			sb.WriteString(fmt.Sprintf("**Functions**: %s\n", strings.Join(r.Functions, ", ")))
		}
		if len(r.Classes) > 0 {
			sb.WriteString(fmt.Sprintf("**Classes**: %s\n", strings.Join(r.Classes, ", ")))
		}
		sb.WriteString("\n")
	}

	return textResult(sb.String())
}

// FormatStats renders index statistics as a one-line summary.
func FormatStats(stats *indexer.IndexStats) string {
	mode := "incremental"
	if stats.Full {
		mode = "full"
	}
	return fmt.Sprintf("Indexed %d files (%s): %d imports, %d resolved, %d reused, %d skipped in %s",
		stats.FileCount, mode, stats.EdgeCount, stats.ResolvedEdges, stats.Reused, stats.Skipped, stats.Duration.Round(time.Millisecond))
}

// RegisterSearchTools registers index_codebase and search_code with an MCP server.
func RegisterSearchTools(server *mcp.Server, service *engine.Service) {
	handler := NewSearchHandler(service)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_codebase",
		Description: "Re-index the project: file records, import graph and the full-text index",
	}, handler.HandleIndex)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_code",
		Description: "Search the project using full-text search over file content, or rank files by name and declared symbols",
	}, handler.HandleSearch)
}
