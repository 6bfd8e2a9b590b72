package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by LoadSettings.
const EnvPrefix = "CODEINTEL_MCP"

// Transport names
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// ProjectSettings configures the indexed project and its watcher
type ProjectSettings struct {
	Root           string        `mapstructure:"root"`
	Extensions     []string      `mapstructure:"extensions"`
	MaxFileSize    int64         `mapstructure:"max_file_size"`
	Watch          bool          `mapstructure:"watch"`
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
}

// ContextSettings configures the context builder
type ContextSettings struct {
	Window    int `mapstructure:"window"`
	CacheSize int `mapstructure:"cache_size"`
}

// MemorySettings configures the persistent memory
type MemorySettings struct {
	Dir             string        `mapstructure:"dir"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// SearchSettings configures search result limits
type SearchSettings struct {
	MaxResults int `mapstructure:"max_results"`
}

// Settings application settings
type Settings struct {
	Transport string          `mapstructure:"transport"`
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	Project   ProjectSettings `mapstructure:"project"`
	Context   ContextSettings `mapstructure:"context"`
	Memory    MemorySettings  `mapstructure:"memory"`
	Search    SearchSettings  `mapstructure:"search"`
}

// DefaultExtensions are the source extensions indexed when none are configured.
var DefaultExtensions = []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// flagBindings maps settings keys to CLI flag names.
var flagBindings = map[string]string{
	"transport":               "transport",
	"host":                    "host",
	"port":                    "port",
	"log_level":               "log-level",
	"project.root":            "root",
	"project.extensions":      "extensions",
	"project.max_file_size":   "max-file-size",
	"project.watch":           "watch",
	"project.debounce_window": "debounce-window",
	"context.window":          "context-window",
	"context.cache_size":      "context-cache-size",
	"memory.dir":              "memory-dir",
	"memory.cache_ttl":        "memory-cache-ttl",
	"memory.retention":        "memory-retention",
	"memory.cleanup_interval": "memory-cleanup-interval",
	"search.max_results":      "max-results",
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("transport", TransportStdio)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("project.root", ".")
	v.SetDefault("project.extensions", DefaultExtensions)
	v.SetDefault("project.max_file_size", int64(1024*1024)) // 1MB
	v.SetDefault("project.watch", true)
	v.SetDefault("project.debounce_window", 100*time.Millisecond)

	v.SetDefault("context.window", 10)
	v.SetDefault("context.cache_size", 100)

	v.SetDefault("memory.dir", "")
	v.SetDefault("memory.cache_ttl", 10*time.Minute)
	v.SetDefault("memory.retention", 30*24*time.Hour)
	v.SetDefault("memory.cleanup_interval", time.Hour)

	v.SetDefault("search.max_results", 20)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Nested keys need explicit bindings for Unmarshal to see them
	for key := range flagBindings {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}

	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Comma-separated env values arrive as a single element
	if env := os.Getenv(EnvPrefix + "_PROJECT_EXTENSIONS"); env != "" {
		if len(settings.Project.Extensions) <= 1 {
			settings.Project.Extensions = strings.Split(env, ",")
		}
	}
	settings.Project.Extensions = normalizeExtensions(settings.Project.Extensions)

	settings.Project.Root = expandHomeDir(settings.Project.Root)
	if abs, err := filepath.Abs(settings.Project.Root); err == nil {
		settings.Project.Root = abs
	}
	settings.Memory.Dir = expandHomeDir(settings.Memory.Dir)
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))

	return &settings, nil
}

// normalizeExtensions trims, lowercases and dot-prefixes extensions, dropping empties.
func normalizeExtensions(exts []string) []string {
	var result []string
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		result = append(result, ext)
	}
	return result
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// ValidateSettings checks for invalid or out-of-range configuration.
func ValidateSettings(s *Settings) error {
	switch s.Transport {
	case TransportStdio, TransportSSE:
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	if s.Transport == TransportSSE && (s.Port <= 0 || s.Port > 65535) {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", s.Port)
	}

	switch s.LogLevel {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return errors.New("log-level must be one of debug, info, warn, error, got: " + s.LogLevel)
	}

	if err := validateProjectSettings(&s.Project); err != nil {
		return err
	}

	if s.Context.Window <= 0 {
		return errors.New("context-window must be positive")
	}
	if s.Context.CacheSize <= 0 {
		return errors.New("context-cache-size must be positive")
	}

	if s.Memory.CacheTTL <= 0 {
		return errors.New("memory-cache-ttl must be positive")
	}
	if s.Memory.Retention <= 0 {
		return errors.New("memory-retention must be positive")
	}
	if s.Memory.CleanupInterval <= 0 {
		return errors.New("memory-cleanup-interval must be positive")
	}

	if s.Search.MaxResults <= 0 {
		return errors.New("max-results must be positive")
	}

	return nil
}

// validateProjectSettings validates the project configuration
func validateProjectSettings(p *ProjectSettings) error {
	if p.Root == "" {
		return errors.New("root cannot be empty")
	}

	info, err := os.Stat(p.Root)
	if err != nil {
		return fmt.Errorf("root is not accessible: %w", err)
	}
	if !info.IsDir() {
		return errors.New("root must be a directory: " + p.Root)
	}

	if len(p.Extensions) == 0 {
		return errors.New("extensions requires at least one file extension")
	}

	if p.MaxFileSize <= 0 {
		return errors.New("max-file-size must be positive")
	}

	if p.Watch && p.DebounceWindow <= 0 {
		return errors.New("debounce-window must be positive when watching")
	}

	return nil
}
