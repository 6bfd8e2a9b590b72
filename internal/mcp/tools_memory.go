package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
	"github.com/sha1n/mcp-codeintel-server/internal/engine"
)

// Recall modes.
const (
	RecallExact    = "exact"
	RecallFuzzy    = "fuzzy"
	RecallRelevant = "relevant"
)

// RememberArgument defines remember parameters.
type RememberArgument struct {
	Key   string `json:"key" validate:"notblank" jsonschema:"Memory key"`
	Value any    `json:"value" jsonschema:"Any JSON value to remember"`
	Type  string `json:"type,omitempty" jsonschema:"Memory type: pattern, context, learning or general (default)"`
}

// RecallArgument defines recall parameters.
type RecallArgument struct {
	Key  string `json:"key" validate:"notblank" jsonschema:"Exact key, substring query, or free text to compare against learned patterns"`
	Mode string `json:"mode,omitempty" validate:"omitempty,oneof=exact fuzzy relevant" jsonschema:"exact (default), fuzzy (substring match on keys and values), or relevant (word similarity against learned patterns)"`
}

// MemoryHandler handles the remember and recall MCP tools.
type MemoryHandler struct {
	service *engine.Service
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(service *engine.Service) *MemoryHandler {
	return &MemoryHandler{service: service}
}

// HandleRemember stores a value under key.
func (h *MemoryHandler) HandleRemember(ctx context.Context, req *mcp.CallToolRequest, args RememberArgument) (*mcp.CallToolResult, any, error) {
	if err := validateArgs(args); err != nil {
		return errorResult("%s", err), nil, nil
	}

	typ := strings.TrimSpace(args.Type)
	if typ == "" {
		typ = string(domain.MemoryGeneral)
	}

	entry, err := h.service.Memory().Store(args.Key, args.Value, typ)
	if err != nil {
		return errorResult("Failed to remember %q: %s", args.Key, err), nil, nil
	}
	return jsonResult(entry), nil, nil
}

// HandleRecall looks up memories by key, substring or similarity.
func (h *MemoryHandler) HandleRecall(ctx context.Context, req *mcp.CallToolRequest, args RecallArgument) (*mcp.CallToolResult, any, error) {
	args.Mode = strings.ToLower(strings.TrimSpace(args.Mode))
	if err := validateArgs(args); err != nil {
		return errorResult("%s", err), nil, nil
	}

	mem := h.service.Memory()
	switch args.Mode {
	case RecallFuzzy:
		return jsonResult(mem.RecallFuzzy(args.Key)), nil, nil
	case RecallRelevant:
		return jsonResult(mem.GetRelevantPatterns(args.Key)), nil, nil
	default:
		entry, ok := mem.Recall(args.Key)
		if !ok {
			return textResult(fmt.Sprintf("No memory found for key: %s", args.Key)), nil, nil
		}
		return jsonResult(entry), nil, nil
	}
}

// RegisterMemoryTools registers remember and recall with an MCP server.
func RegisterMemoryTools(server *mcp.Server, service *engine.Service) {
	handler := NewMemoryHandler(service)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "remember",
		Description: "Store a value in project memory. Values persist across restarts under the project's data directory",
	}, handler.HandleRemember)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "recall",
		Description: "Recall project memory by exact key, by substring, or by similarity to learned code patterns",
	}, handler.HandleRecall)
}
