package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mcp-codeintel-server/internal/engine"
	"github.com/sha1n/mcp-codeintel-server/internal/patterns"
)

// LearnPatternsArgument takes no parameters.
type LearnPatternsArgument struct{}

// AnalyzeFileArgument defines analyze_file parameters.
type AnalyzeFileArgument struct {
	File string `json:"file" validate:"notblank" jsonschema:"File path, absolute or relative to the project root"`
}

// SuggestCodeArgument defines suggest_code parameters.
type SuggestCodeArgument struct {
	Kind string `json:"kind" validate:"oneof=component function hook class" jsonschema:"What to generate: component, function, hook or class"`
	Name string `json:"name" validate:"notblank" jsonschema:"Name of the generated declaration"`
}

// SearchPatternsArgument defines search_patterns parameters.
type SearchPatternsArgument struct {
	Query string `json:"query" validate:"notblank" jsonschema:"Case-insensitive substring to look for"`
	Type  string `json:"type,omitempty" validate:"omitempty,oneof=component function pattern text full-text" jsonschema:"What to match: component, function, pattern (idioms) or text (default)"`
}

// PatternHandler handles the pattern analysis MCP tools.
type PatternHandler struct {
	service *engine.Service
}

// NewPatternHandler creates a new pattern handler.
func NewPatternHandler(service *engine.Service) *PatternHandler {
	return &PatternHandler{service: service}
}

// HandleLearn analyzes the project and stores the findings in memory.
func (h *PatternHandler) HandleLearn(ctx context.Context, req *mcp.CallToolRequest, args LearnPatternsArgument) (*mcp.CallToolResult, any, error) {
	result, err := h.service.LearnPatterns(ctx)
	if err != nil {
		return errorResult("Failed to learn patterns: %s", err), nil, nil
	}
	return jsonResult(result), nil, nil
}

// HandleAnalyze analyzes one file and returns its pattern record.
func (h *PatternHandler) HandleAnalyze(ctx context.Context, req *mcp.CallToolRequest, args AnalyzeFileArgument) (*mcp.CallToolResult, any, error) {
	if err := validateArgs(args); err != nil {
		return errorResult("%s", err), nil, nil
	}

	file, err := h.service.RelPath(args.File)
	if err != nil {
		return errorResult("Invalid file: %s", err), nil, nil
	}

	rec, err := h.service.Analyzer().AnalyzeFile(ctx, file)
	if err != nil {
		return errorResult("Failed to analyze %s: %s", file, err), nil, nil
	}
	return jsonResult(rec), nil, nil
}

// HandleSuggest generates code in the project's observed style.
func (h *PatternHandler) HandleSuggest(ctx context.Context, req *mcp.CallToolRequest, args SuggestCodeArgument) (*mcp.CallToolResult, any, error) {
	args.Kind = strings.ToLower(strings.TrimSpace(args.Kind))
	if err := validateArgs(args); err != nil {
		return errorResult("%s", err), nil, nil
	}

	suggestion, err := h.service.Analyzer().GenerateSuggestion(args.Kind, args.Name)
	if err != nil {
		return errorResult("Failed to generate suggestion: %s", err), nil, nil
	}
	return jsonResult(suggestion), nil, nil
}

// HandleSearch finds analyzed declarations and idioms.
func (h *PatternHandler) HandleSearch(ctx context.Context, req *mcp.CallToolRequest, args SearchPatternsArgument) (*mcp.CallToolResult, any, error) {
	args.Type = strings.ToLower(strings.TrimSpace(args.Type))
	if err := validateArgs(args); err != nil {
		return errorResult("%s", err), nil, nil
	}

	queryType := args.Type
	if queryType == "" {
		queryType = patterns.QueryText
	}
	matches, err := h.service.Analyzer().SearchPatterns(args.Query, queryType)
	if err != nil {
		return errorResult("Search failed: %s", err), nil, nil
	}
	return jsonResult(matches), nil, nil
}

// RegisterPatternTools registers the pattern tools with an MCP server.
func RegisterPatternTools(server *mcp.Server, service *engine.Service) {
	handler := NewPatternHandler(service)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "learn_patterns",
		Description: "Analyze every indexed file and remember its structure (components, functions, classes, idioms) as pattern memories",
	}, handler.HandleLearn)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_file",
		Description: "Analyze one file: imports, exports, components, functions, classes, idioms, code style and complexity",
	}, handler.HandleAnalyze)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "suggest_code",
		Description: "Generate a component, function, hook or class skeleton that follows the project's indentation, quote and semicolon conventions",
	}, handler.HandleSuggest)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_patterns",
		Description: "Search analyzed files for components, functions, idioms or any declared name",
	}, handler.HandleSearch)
}
