package app

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestRegisterFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	// Verify all flags are registered
	expectedFlags := []string{
		"transport",
		"host",
		"port",
		"log-level",
		"root",
		"extensions",
		"max-file-size",
		"watch",
		"debounce-window",
		"context-window",
		"context-cache-size",
		"memory-dir",
		"memory-cache-ttl",
		"memory-retention",
		"memory-cleanup-interval",
		"max-results",
	}

	for _, name := range expectedFlags {
		if flags.Lookup(name) == nil {
			t.Errorf("Expected flag %q to be registered", name)
		}
	}
}

func TestRegisterFlags_Shorthand(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	shorthandFlags := map[string]string{
		"transport":   "t",
		"host":        "H",
		"port":        "p",
		"log-level":   "l",
		"root":        "r",
		"extensions":  "e",
		"watch":       "w",
		"max-results": "m",
	}

	for name, shorthand := range shorthandFlags {
		flag := flags.Lookup(name)
		if flag == nil {
			t.Errorf("Flag %q not found", name)
			continue
		}
		if flag.Shorthand != shorthand {
			t.Errorf("Flag %q expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
		}
	}
}

func TestRegisterFlags_SetValues(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	err := flags.Parse([]string{
		"--transport", "sse",
		"--host", "localhost",
		"--port", "9090",
		"--root", "/srv/app",
		"--extensions", ".ts,.tsx",
		"--watch=false",
		"--debounce-window", "250ms",
		"--memory-retention", "48h",
	})
	if err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	transport, _ := flags.GetString("transport")
	if transport != "sse" {
		t.Errorf("Expected transport 'sse', got '%s'", transport)
	}

	host, _ := flags.GetString("host")
	if host != "localhost" {
		t.Errorf("Expected host 'localhost', got '%s'", host)
	}

	port, _ := flags.GetInt("port")
	if port != 9090 {
		t.Errorf("Expected port 9090, got %d", port)
	}

	root, _ := flags.GetString("root")
	if root != "/srv/app" {
		t.Errorf("Expected root '/srv/app', got '%s'", root)
	}

	extensions, _ := flags.GetStringSlice("extensions")
	if len(extensions) != 2 || extensions[0] != ".ts" || extensions[1] != ".tsx" {
		t.Errorf("Expected extensions [.ts .tsx], got %v", extensions)
	}

	watch, _ := flags.GetBool("watch")
	if watch {
		t.Error("Expected watch to be false")
	}

	debounce, _ := flags.GetDuration("debounce-window")
	if debounce != 250*time.Millisecond {
		t.Errorf("Expected debounce-window 250ms, got %s", debounce)
	}

	retention, _ := flags.GetDuration("memory-retention")
	if retention != 48*time.Hour {
		t.Errorf("Expected memory-retention 48h, got %s", retention)
	}
}
