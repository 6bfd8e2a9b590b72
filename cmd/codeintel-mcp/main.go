package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sha1n/mcp-codeintel-server/internal/app"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "codeintel-mcp"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Code intelligence MCP server",
		Long:    "Indexes a JavaScript/TypeScript project, learns its patterns and serves code context and project memory over MCP",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithFlags(cmd.Flags(), version)
		},
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	app.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(newIndexCommand(), newMemoryCommand())
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

func newIndexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Index and analyze the project once, then print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunIndex(cmd.Context(), cmd.Flags(), cmd.OutOrStdout())
		},
	}
}

func newMemoryCommand() *cobra.Command {
	memoryCmd := &cobra.Command{
		Use:   "memory",
		Short: "Export or import project memory",
	}

	memoryCmd.AddCommand(
		&cobra.Command{
			Use:   "export <file>",
			Short: "Write all project memories to a snapshot file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.ExportMemory(cmd.Flags(), args[0], cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Load memories from a snapshot file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.ImportMemory(cmd.Flags(), args[0], cmd.OutOrStdout())
			},
		},
	)

	return memoryCmd
}

func runWithFlags(flags *pflag.FlagSet, version string) error {
	return app.RunWithDeps(context.Background(), app.DefaultRunParams(), flags, version)
}
