package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mcp-codeintel-server/internal/engine"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
	Engine  *engine.Service
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Engine != nil {
		RegisterContextTools(s, cfg.Engine)
		RegisterMemoryTools(s, cfg.Engine)
		RegisterPatternTools(s, cfg.Engine)
		RegisterSearchTools(s, cfg.Engine)
	}

	return s
}
