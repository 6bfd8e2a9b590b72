package testkit

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sha1n/mcp-codeintel-server/internal/config"
)

// recordingService appends its lifecycle calls to a shared log.
type recordingService struct {
	name     string
	props    map[string]any
	startErr error
	stopErr  error
	log      *[]string
}

func (r *recordingService) Start() (map[string]any, error) {
	*r.log = append(*r.log, "start "+r.name)
	return r.props, r.startErr
}

func (r *recordingService) Stop() error {
	*r.log = append(*r.log, "stop "+r.name)
	return r.stopErr
}

func (r *recordingService) GetName() string {
	return r.name
}

func TestTestEnv_Lifecycle(t *testing.T) {
	var log []string
	engine := &recordingService{name: "engine", props: map[string]any{"root": "/p"}, stopErr: errors.New("engine busy"), log: &log}
	server := &recordingService{name: "server", props: map[string]any{"sse_url": "http://x/sse"}, log: &log}
	env := NewTestEnv(engine, server)

	props, err := env.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if props["root"] != "/p" || props["sse_url"] != "http://x/sse" {
		t.Errorf("Expected merged properties, got %v", props)
	}
	if v, ok := env.GetContext().GetProperty("sse_url"); !ok || v != "http://x/sse" {
		t.Errorf("GetProperty(sse_url) = (%v, %v)", v, ok)
	}
	if _, ok := env.GetContext().GetProperty("missing"); ok {
		t.Error("Expected missing property to be absent")
	}

	err = env.Stop()
	if err == nil || err.Error() != "engine busy" {
		t.Errorf("Stop() error = %v, want engine busy", err)
	}
	want := []string{"start engine", "start server", "stop server", "stop engine"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("lifecycle = %v, want %v", log, want)
	}
}

func TestTestEnv_StartError(t *testing.T) {
	var log []string
	env := NewTestEnv(&recordingService{name: "engine", startErr: errors.New("no root"), log: &log})

	if _, err := env.Start(); err == nil || err.Error() != "no root" {
		t.Errorf("Start() error = %v, want no root", err)
	}
	if len(env.GetContext().GetProperties()) != 0 {
		t.Error("Expected no properties after a failed start")
	}
}

func TestGetFreePort(t *testing.T) {
	if port := MustGetFreePort(t); port <= 0 {
		t.Errorf("Expected positive port, got %d", port)
	}
	if _, err := getFreePortWithAddr("invalid:address:format"); err == nil {
		t.Error("Expected error for invalid address")
	}
}

func TestNewTestFlags_LoadProjectSettings(t *testing.T) {
	root := WriteProject(t, map[string]string{"src/a.js": "export const a = 1;\n"})

	settings, err := config.LoadSettingsWithFlags(NewTestFlags(t, &FlagOptions{Root: root, NoWatch: true}))
	if err != nil {
		t.Fatalf("LoadSettingsWithFlags failed: %v", err)
	}
	if err := config.ValidateSettings(settings); err != nil {
		t.Fatalf("Expected valid settings, got: %v", err)
	}
	if settings.Transport != config.TransportSSE || settings.Host != "localhost" || settings.Port <= 0 {
		t.Errorf("Unexpected transport settings: %s %s:%d", settings.Transport, settings.Host, settings.Port)
	}
	if settings.Project.Root != root {
		t.Errorf("Root = %q, want %q", settings.Project.Root, root)
	}
	if settings.Project.Watch {
		t.Error("Expected watching to be disabled")
	}
}

func TestNewTestFlags_Overrides(t *testing.T) {
	flags := NewTestFlags(t, &FlagOptions{Port: 9999, Transport: "stdio", Host: "127.0.0.1"})

	port, _ := flags.GetInt("port")
	transport, _ := flags.GetString("transport")
	host, _ := flags.GetString("host")
	if port != 9999 || transport != "stdio" || host != "127.0.0.1" {
		t.Errorf("flags = (%d, %s, %s), want (9999, stdio, 127.0.0.1)", port, transport, host)
	}
	if flags.Changed("root") || flags.Changed("watch") {
		t.Error("Expected root and watch to keep their defaults")
	}
}

func TestWriteProject(t *testing.T) {
	root := WriteProject(t, map[string]string{
		"src/a.js":     "export const a = 1;\n",
		"src/lib/b.js": "export const b = 2;\n",
	})
	WriteFile(t, root, "src/lib/b.js", "export const b = 3;\n")

	data, err := os.ReadFile(filepath.Join(root, "src", "lib", "b.js"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "export const b = 3;\n" {
		t.Errorf("Unexpected content: %q", data)
	}
}

func TestServerService_StartAndStop(t *testing.T) {
	root := WriteProject(t, map[string]string{"src/a.js": "export const a = 1;\n"})
	svc := NewServerService(NewTestFlags(t, &FlagOptions{Root: root, NoWatch: true}))

	props, err := svc.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sseURL, _ := props["sse_url"].(string)
	if !strings.HasSuffix(sseURL, "/sse") {
		t.Errorf("sse_url = %q", sseURL)
	}

	resp, err := http.Get(props["base_url"].(string) + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
	if _, err := os.Stat(filepath.Join(root, ".codeintel", "engine.lock")); err != nil {
		t.Errorf("Expected engine lock while running: %v", err)
	}

	if err := svc.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestServerService_StartFailsForMissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	svc := NewServerService(NewTestFlags(t, &FlagOptions{Root: missing, NoWatch: true}))

	if _, err := svc.Start(); err == nil {
		t.Fatal("Expected Start to fail for a missing root")
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Errorf("Expected missing root to stay absent, Stat() error = %v", err)
	}
}

func TestServerService_StopBeforeStart(t *testing.T) {
	svc := NewServerService(NewTestFlags(t, nil))
	if err := svc.Stop(); err != nil {
		t.Errorf("Expected Stop before Start to be a no-op, got: %v", err)
	}
	if svc.GetName() != "codeintel-mcp" {
		t.Errorf("Unexpected name: %s", svc.GetName())
	}
}
