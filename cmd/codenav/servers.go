package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"codenav/internal/lsp"
)

var serversFormat string

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List configured analysis servers",
	Long: `List every file extension with a configured analysis server,
whether its command is installed, and whether the mapping comes from the
workspace override file.`,
	Run: runServers,
}

func init() {
	serversCmd.Flags().StringVar(&serversFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(serversCmd)
}

// ServerCLI is one extension-to-server mapping with its install status.
type ServerCLI struct {
	Extension string   `json:"extension"`
	Command   string   `json:"command"`
	Args      []string `json:"args,omitempty"`
	Available bool     `json:"available"`
	Override  bool     `json:"override"`
}

// ServersResponseCLI contains the server listing for CLI output
type ServersResponseCLI struct {
	Servers []ServerCLI `json:"servers"`
}

func runServers(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	logger := newLogger(cfg)

	registry := lsp.NewRegistry(logger)
	if err := registry.LoadOverrides(cfg.WorkspaceRoot, cfg.Lsp.ServersFile); err != nil {
		logger.Warn("Server override file not loaded", map[string]interface{}{
			"file":  cfg.Lsp.ServersFile,
			"error": err.Error(),
		})
	}
	prober := lsp.NewProber(lsp.RealRunner{},
		time.Duration(cfg.Lsp.ProbeTimeoutMs)*time.Millisecond, logger)

	ctx, cancel := newContext()
	defer cancel()

	exts := registry.Extensions()
	sort.Strings(exts)

	resp := &ServersResponseCLI{Servers: make([]ServerCLI, 0, len(exts))}
	for _, ext := range exts {
		spec, ok := registry.Resolve(ext)
		if !ok {
			continue
		}
		resp.Servers = append(resp.Servers, ServerCLI{
			Extension: spec.Extension,
			Command:   spec.Command,
			Args:      spec.Args,
			Available: prober.Available(ctx, spec.Command),
			Override:  registry.Overridden(ext),
		})
	}

	output, err := FormatResponse(resp, OutputFormat(serversFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}
