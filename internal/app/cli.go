package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn or error")

	flags.StringP("root", "r", "", "Project root directory")
	flags.StringSliceP("extensions", "e", nil, "Source file extensions to index (comma-separated)")
	flags.Int64("max-file-size", 0, "Skip files larger than this many bytes")
	flags.BoolP("watch", "w", true, "Watch the project and keep the index current")
	flags.Duration("debounce-window", 0, "Quiet period before a file change is processed")

	flags.Int("context-window", 0, "Lines kept on each side of the target line")
	flags.Int("context-cache-size", 0, "Maximum number of cached context snapshots")

	flags.String("memory-dir", "", "Directory for durable memory records")
	flags.Duration("memory-cache-ttl", 0, "Time-to-live of the memory read cache")
	flags.Duration("memory-retention", 0, "Age after which memory records are purged")
	flags.Duration("memory-cleanup-interval", 0, "Interval between memory cleanup runs")

	flags.IntP("max-results", "m", 0, "Maximum number of search results")
}
