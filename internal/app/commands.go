package app

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/sha1n/mcp-codeintel-server/internal/config"
	"github.com/sha1n/mcp-codeintel-server/internal/engine"
	"github.com/sha1n/mcp-codeintel-server/internal/memory"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	valueColor  = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
)

// loadValidSettings loads and validates settings for a one-shot command.
func loadValidSettings(flags *pflag.FlagSet) (*config.Settings, error) {
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := config.ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

// RunIndex indexes and analyzes the project once and prints a summary.
func RunIndex(ctx context.Context, flags *pflag.FlagSet, out io.Writer) error {
	settings, err := loadValidSettings(flags)
	if err != nil {
		return err
	}
	settings.Project.Watch = false
	ConfigureLogging(settings.LogLevel)

	svc, err := engine.NewService(settings)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer func() { _ = svc.Close() }()

	stats, err := svc.Reindex(ctx, true)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	graph := svc.Indexer().GetFileGraph()
	unresolved := 0
	for _, e := range graph.Edges {
		if !e.IsResolved() {
			unresolved++
		}
	}
	style := svc.Analyzer().ProjectStyle()

	_, _ = headerColor.Fprintf(out, "%s\n", svc.Root())
	printRow(out, "files", fmt.Sprint(stats.FileCount))
	printRow(out, "imports", fmt.Sprintf("%d (%d resolved)", stats.EdgeCount, stats.ResolvedEdges))
	printRow(out, "patterns", fmt.Sprint(svc.Analyzer().Len()))
	printRow(out, "style", fmt.Sprintf("%s/%d, %s quotes, semicolons=%t", style.Indentation, style.IndentSize, style.Quotes, style.Semicolons))
	printRow(out, "duration", stats.Duration.String())
	if stats.Skipped > 0 {
		_, _ = warnColor.Fprintf(out, "%d files skipped\n", stats.Skipped)
	}
	if unresolved > 0 {
		_, _ = warnColor.Fprintf(out, "%d imports point outside the project\n", unresolved)
	}
	return nil
}

func printRow(out io.Writer, label, value string) {
	_, _ = fmt.Fprintf(out, "  %-9s ", label+":")
	_, _ = valueColor.Fprintln(out, value)
}

func openMemory(flags *pflag.FlagSet) (*memory.Manager, error) {
	settings, err := loadValidSettings(flags)
	if err != nil {
		return nil, err
	}
	ConfigureLogging(settings.LogLevel)
	return memory.New(settings.Project.Root, memory.Options{
		Dir:       settings.Memory.Dir,
		CacheTTL:  settings.Memory.CacheTTL,
		Retention: settings.Memory.Retention,
	}), nil
}

// ExportMemory writes every memory entry of the project to path.
func ExportMemory(flags *pflag.FlagSet, path string, out io.Writer) error {
	mem, err := openMemory(flags)
	if err != nil {
		return err
	}
	if err := mem.ExportToFile(path); err != nil {
		return err
	}
	_, _ = fmt.Fprint(out, "Exported ")
	_, _ = valueColor.Fprintf(out, "%d", mem.Count())
	_, _ = fmt.Fprintf(out, " memories to %s\n", path)
	return nil
}

// ImportMemory loads the entries of a snapshot file into the project memory.
func ImportMemory(flags *pflag.FlagSet, path string, out io.Writer) error {
	mem, err := openMemory(flags)
	if err != nil {
		return err
	}
	n, err := mem.ImportFromFile(path)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprint(out, "Imported ")
	_, _ = valueColor.Fprintf(out, "%d", n)
	_, _ = fmt.Fprintf(out, " memories from %s\n", path)
	return nil
}
