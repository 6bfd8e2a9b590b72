package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mcp-codeintel-server/internal/contextbuilder"
	"github.com/sha1n/mcp-codeintel-server/internal/engine"
)

// GetContextArgument defines get_context parameters.
type GetContextArgument struct {
	File   string `json:"file" validate:"notblank" jsonschema:"File path, absolute or relative to the project root"`
	Line   int    `json:"line" validate:"min=1" jsonschema:"1-based line number"`
	Column int    `json:"column,omitempty" validate:"omitempty,min=1" jsonschema:"1-based column; when set, the identifier under the cursor is resolved"`
	Type   string `json:"type,omitempty" validate:"omitempty,oneof=minimal full" jsonschema:"Context type: minimal (default) or full"`
}

// ContextHandler handles the get_context MCP tool.
type ContextHandler struct {
	service *engine.Service
}

// NewContextHandler creates a new context handler.
func NewContextHandler(service *engine.Service) *ContextHandler {
	return &ContextHandler{service: service}
}

// Handle builds the context snapshot for a file position.
func (h *ContextHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args GetContextArgument) (*mcp.CallToolResult, any, error) {
	args.Type = strings.ToLower(strings.TrimSpace(args.Type))
	if err := validateArgs(args); err != nil {
		return errorResult("%s", err), nil, nil
	}

	file, err := h.service.RelPath(args.File)
	if err != nil {
		return errorResult("Invalid file: %s", err), nil, nil
	}

	if args.Column > 0 {
		pos, err := h.service.Contexts().GetContextForPosition(file, args.Line, args.Column)
		if err != nil {
			return errorResult("Failed to build context: %s", err), nil, nil
		}
		return jsonResult(pos), nil, nil
	}

	contextType := args.Type
	if contextType == "" {
		contextType = contextbuilder.TypeMinimal
	}
	snap, err := h.service.Contexts().BuildContext(file, args.Line, contextType)
	if err != nil {
		return errorResult("Failed to build context: %s", err), nil, nil
	}
	return jsonResult(snap), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ContextHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_context",
		Description: "Get the code context around a line: surrounding lines, imports, exports, declarations and related files. Type full adds resolved dependencies and usages of imported names",
	}
}

// RegisterContextTools registers get_context with an MCP server.
func RegisterContextTools(server *mcp.Server, service *engine.Service) {
	handler := NewContextHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
