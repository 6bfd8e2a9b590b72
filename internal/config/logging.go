package config

import (
	"context"
	"log/slog"
	"strings"
)

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == TransportSSE {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
	}

	logger.InfoContext(ctx, "Config: project.root", "value", s.Project.Root)
	logger.InfoContext(ctx, "Config: project.extensions", "value", strings.Join(s.Project.Extensions, ","))
	logger.InfoContext(ctx, "Config: project.watch", "value", s.Project.Watch)
	if s.Project.Watch {
		logger.InfoContext(ctx, "Config: project.debounce_window", "value", s.Project.DebounceWindow)
	}
	logger.InfoContext(ctx, "Config: context.cache_size", "value", s.Context.CacheSize)
	logger.InfoContext(ctx, "Config: memory.retention", "value", s.Memory.Retention)
	if s.Memory.Dir != "" {
		logger.InfoContext(ctx, "Config: memory.dir", "value", s.Memory.Dir)
	}
}

// ParseLevel maps a log level name to a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SettingsLogValue returns a slog.Value for Settings
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Group("project",
			slog.String("root", s.Project.Root),
			slog.Any("extensions", s.Project.Extensions),
			slog.Int64("max_file_size", s.Project.MaxFileSize),
			slog.Bool("watch", s.Project.Watch),
		),
		slog.Group("memory",
			slog.Duration("cache_ttl", s.Memory.CacheTTL),
			slog.Duration("retention", s.Memory.Retention),
		),
	)
}
