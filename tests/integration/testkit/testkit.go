package testkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	"github.com/sha1n/mcp-codeintel-server/internal/app"
	"github.com/sha1n/mcp-codeintel-server/internal/config"
)

// Service represents a test service that can be started and stopped
type Service interface {
	Start() (map[string]any, error)
	Stop() error
	GetName() string
}

// TestEnvContext provides access to properties collected during environment startup
type TestEnvContext interface {
	GetProperties() map[string]any
	GetProperty(name string) (any, bool)
}

// TestEnv manages the lifecycle of test services
type TestEnv interface {
	Start() (map[string]any, error)
	Stop() error
	GetContext() TestEnvContext
}

type testEnvContextImpl struct {
	properties map[string]any
}

func (c *testEnvContextImpl) GetProperties() map[string]any {
	return c.properties
}

func (c *testEnvContextImpl) GetProperty(name string) (any, bool) {
	val, ok := c.properties[name]
	return val, ok
}

type testEnvImpl struct {
	services []Service
	context  *testEnvContextImpl
}

// NewTestEnv creates a new test environment with the given services
func NewTestEnv(services ...Service) TestEnv {
	return &testEnvImpl{
		services: services,
		context:  &testEnvContextImpl{properties: make(map[string]any)},
	}
}

func (e *testEnvImpl) Start() (map[string]any, error) {
	for _, s := range e.services {
		props, err := s.Start()
		if err != nil {
			return nil, err
		}
		for k, v := range props {
			e.context.properties[k] = v
		}
	}
	return e.context.properties, nil
}

func (e *testEnvImpl) Stop() error {
	var lastErr error
	// Stop in reverse order
	for i := len(e.services) - 1; i >= 0; i-- {
		if err := e.services[i].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (e *testEnvImpl) GetContext() TestEnvContext {
	return e.context
}

// GetFreePort returns a free port from the kernel
func GetFreePort() (int, error) {
	return getFreePortWithAddr("localhost:0")
}

// MustGetFreePort returns a free port or fails the test
func MustGetFreePort(t testing.TB) int {
	t.Helper()
	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	return port
}

func getFreePortWithAddr(addrStr string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", addrStr)
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	Port      int    // Uses free port if 0
	Transport string // Defaults to "sse"
	Host      string // Defaults to "localhost"
	Root      string // Project root, left unset if empty
	NoWatch   bool   // Disables the file watcher
}

// NewTestFlags creates a configured pflag.FlagSet for testing
func NewTestFlags(t testing.TB, opts *FlagOptions) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)

	port := 0
	transport := "sse"
	host := "localhost"

	if opts == nil {
		opts = &FlagOptions{}
	}
	if opts.Port != 0 {
		port = opts.Port
	}
	if opts.Transport != "" {
		transport = opts.Transport
	}
	if opts.Host != "" {
		host = opts.Host
	}

	if port == 0 {
		port = MustGetFreePort(t)
	}

	_ = flags.Set("port", fmt.Sprintf("%d", port))
	_ = flags.Set("transport", transport)
	_ = flags.Set("host", host)
	if opts.Root != "" {
		_ = flags.Set("root", opts.Root)
	}
	if opts.NoWatch {
		_ = flags.Set("watch", "false")
	}

	return flags
}

// WriteProject creates a project tree from relative paths to contents and
// returns its root.
func WriteProject(t testing.TB, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}
	return root
}

// WriteFile writes content to a root-relative path, creating parent directories.
func WriteFile(t testing.TB, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", rel, err)
	}
}

// ServerService runs the full application over SSE in-process.
type ServerService struct {
	flags *pflag.FlagSet
	srv   *http.Server
	done  chan error
}

// NewServerService creates a service that runs the application with flags.
func NewServerService(flags *pflag.FlagSet) *ServerService {
	return &ServerService{flags: flags, done: make(chan error, 1)}
}

// GetName returns the service name
func (s *ServerService) GetName() string {
	return "codeintel-mcp"
}

// Start runs the application and waits for the health endpoint. It exposes
// the "base_url" and "sse_url" properties.
func (s *ServerService) Start() (map[string]any, error) {
	ready := make(chan *http.Server, 1)

	params := app.DefaultRunParams()
	params.StartSSEServer = func(m *mcp.Server, settings *config.Settings) error {
		srv := app.NewSSEServer(m, settings)
		ready <- srv
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	go func() {
		s.done <- app.RunWithDeps(context.Background(), params, s.flags, "test")
	}()

	select {
	case s.srv = <-ready:
	case err := <-s.done:
		return nil, fmt.Errorf("server exited before listening: %w", err)
	case <-time.After(30 * time.Second):
		return nil, errors.New("timed out waiting for server to start")
	}

	baseURL := "http://" + s.srv.Addr
	if err := waitForHealth(baseURL+"/health", 10*time.Second); err != nil {
		return nil, err
	}

	return map[string]any{
		"base_url": baseURL,
		"sse_url":  baseURL + "/sse",
	}, nil
}

// Stop shuts the HTTP server down and waits for the application to release
// the engine.
func (s *ServerService) Stop() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		// Open SSE streams keep connections active
		_ = s.srv.Close()
	}
	select {
	case err := <-s.done:
		return err
	case <-time.After(10 * time.Second):
		return errors.New("timed out waiting for server to exit")
	}
}

func waitForHealth(url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("health check %s did not succeed within %s", url, timeout)
}
