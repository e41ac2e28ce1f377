package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codenav/internal/config"
	"codenav/internal/fallback"
	"codenav/internal/logging"
	"codenav/internal/lsp"
	"codenav/internal/nav"
	"codenav/internal/version"
)

var (
	configFlag    string
	workspaceFlag string
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "codenav",
	Short: "codenav - semantic code navigation",
	Long: `codenav answers go-to-definition, find-references, and call-hierarchy
queries by orchestrating per-language analysis servers, degrading to a
lexical search when no server is available for a file.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("codenav version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&workspaceFlag, "workspace", "",
		"Workspace root directory (default: configured root or cwd)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "",
		"Log format: json, human")
}

// mustLoadConfig loads configuration and applies CLI flag overrides.
// Precedence: CLI flag > config file > default.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load(configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if workspaceFlag != "" {
		cfg.WorkspaceRoot = workspaceFlag
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	if logFormatFlag != "" {
		cfg.Logging.Format = logFormatFlag
	}
	return cfg
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})
}

// newOperations builds the full navigation stack: registry with workspace
// overrides, prober, client manager, and the lexical matcher.
func newOperations(cfg *config.Config, logger *logging.Logger) *nav.Operations {
	registry := lsp.NewRegistry(logger)
	if err := registry.LoadOverrides(cfg.WorkspaceRoot, cfg.Lsp.ServersFile); err != nil {
		logger.Warn("Server override file not loaded", map[string]interface{}{
			"file":  cfg.Lsp.ServersFile,
			"error": err.Error(),
		})
	}

	prober := lsp.NewProber(lsp.RealRunner{},
		time.Duration(cfg.Lsp.ProbeTimeoutMs)*time.Millisecond, logger)

	opts := lsp.ClientOptions{
		HandshakeTimeout: time.Duration(cfg.Lsp.HandshakeTimeoutMs) * time.Millisecond,
		RequestTimeout:   time.Duration(cfg.Lsp.RequestTimeoutMs) * time.Millisecond,
		ShutdownGrace:    time.Duration(cfg.Lsp.ShutdownGraceMs) * time.Millisecond,
	}
	manager := lsp.NewManager(registry, prober, opts, cfg.Lsp.MaxClients, logger)

	matcher := fallback.NewMatcher(fallback.NewFileSearcher(), fallback.BraceScopeExtractor{},
		cfg.Fallback.ContextLines, cfg.Fallback.MaxMatches, logger)

	return nav.NewOperations(cfg, manager, matcher, logger)
}

// newContext returns a context cancelled on SIGINT/SIGTERM so in-flight
// server subprocesses are torn down on interrupt.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
