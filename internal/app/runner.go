package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	"github.com/sha1n/mcp-codeintel-server/internal/config"
	"github.com/sha1n/mcp-codeintel-server/internal/engine"
	mcputil "github.com/sha1n/mcp-codeintel-server/internal/mcp"
)

// ServerName is the MCP implementation name.
const ServerName = "codeintel-mcp"

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*mcp.Server, *config.Settings) error
	CreateServer      func(*config.Settings, string) (*mcp.Server, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// RunWithDeps loads settings, builds the engine-backed server and serves it
// on the configured transport until the transport ends.
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ConfigureLogging(settings.LogLevel)
	slog.Info("Starting code intelligence MCP server", "version", version, "root", settings.Project.Root)
	config.Log(settings)

	mcpServer, cleanup, err := params.CreateServer(settings, version)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	return serve(ctx, params, mcpServer, settings)
}

// serve blocks on the transport named by settings.
func serve(ctx context.Context, params RunParams, server *mcp.Server, settings *config.Settings) error {
	switch settings.Transport {
	case config.TransportStdio:
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return server.Run(ctx, transport)
	case config.TransportSSE:
		slog.Info("Serving over SSE", "host", settings.Host, "port", settings.Port)
		return params.StartSSEServer(server, settings)
	default:
		return fmt.Errorf("unsupported transport: %q", settings.Transport)
	}
}

// ConfigureLogging installs a text handler on stderr at the named level.
// stdout is reserved for the stdio transport.
func ConfigureLogging(level string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLevel(level)})
	slog.SetDefault(slog.New(handler))
}

// CreateMCPServer indexes the project and creates the MCP server with all
// tools registered. The returned cleanup closes the engine.
func CreateMCPServer(settings *config.Settings, version string) (*mcp.Server, func(), error) {
	svc, err := engine.NewService(settings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}

	if err := svc.Initialize(context.Background()); err != nil {
		closeEngine(svc)
		return nil, nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	logEngineReady(svc)

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    ServerName,
		Version: version,
		Engine:  svc,
	})
	return server, func() { closeEngine(svc) }, nil
}

func logEngineReady(svc *engine.Service) {
	files, edges, builtAt := svc.Indexer().Stats()
	slog.Info("Engine ready",
		"root", svc.Root(),
		"files", files,
		"edges", edges,
		"memories", svc.Memory().Count(),
		"leader", svc.IsLeader(),
		"watching", svc.Watcher().State(),
		"indexedAt", builtAt.Format("15:04:05"),
	)
}

func closeEngine(svc *engine.Service) {
	if err := svc.Close(); err != nil {
		slog.Error("Failed to close engine", "error", err)
	}
}
