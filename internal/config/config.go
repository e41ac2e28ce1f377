package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete codenav configuration
type Config struct {
	Version       int    `json:"version" mapstructure:"version"`
	WorkspaceRoot string `json:"workspaceRoot" mapstructure:"workspaceRoot"`

	Lsp      LspConfig      `json:"lsp" mapstructure:"lsp"`
	Fallback FallbackConfig `json:"fallback" mapstructure:"fallback"`
	Paging   PagingConfig   `json:"paging" mapstructure:"paging"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// LspConfig contains protocol client configuration
type LspConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// ServersFile is the workspace-relative path of the user server
	// override document
	ServersFile string `json:"serversFile" mapstructure:"serversFile"`

	HandshakeTimeoutMs int `json:"handshakeTimeoutMs" mapstructure:"handshakeTimeoutMs"`
	RequestTimeoutMs   int `json:"requestTimeoutMs" mapstructure:"requestTimeoutMs"`
	ProbeTimeoutMs     int `json:"probeTimeoutMs" mapstructure:"probeTimeoutMs"`
	ShutdownGraceMs    int `json:"shutdownGraceMs" mapstructure:"shutdownGraceMs"`
	MaxClients         int `json:"maxClients" mapstructure:"maxClients"`
}

// FallbackConfig contains lexical fallback configuration
type FallbackConfig struct {
	ContextLines int `json:"contextLines" mapstructure:"contextLines"`
	MaxMatches   int `json:"maxMatches" mapstructure:"maxMatches"`
}

// PagingConfig contains reference pagination defaults
type PagingConfig struct {
	DefaultPageSize int `json:"defaultPageSize" mapstructure:"defaultPageSize"`
	MaxPageSize     int `json:"maxPageSize" mapstructure:"maxPageSize"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:       1,
		WorkspaceRoot: ".",
		Lsp: LspConfig{
			Enabled:            true,
			ServersFile:        filepath.Join(".codenav", "servers.yaml"),
			HandshakeTimeoutMs: 10000,
			RequestTimeoutMs:   15000,
			ProbeTimeoutMs:     5000,
			ShutdownGraceMs:    2000,
			MaxClients:         4,
		},
		Fallback: FallbackConfig{
			ContextLines: 2,
			MaxMatches:   200,
		},
		Paging: PagingConfig{
			DefaultPageSize: 20,
			MaxPageSize:     50,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Load reads configuration from the given file, falling back to defaults
// for missing keys. A missing file is not an error; the defaults apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults backfills zero values left by a partial config file
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.WorkspaceRoot == "" {
		c.WorkspaceRoot = def.WorkspaceRoot
	}
	if c.Lsp.ServersFile == "" {
		c.Lsp.ServersFile = def.Lsp.ServersFile
	}
	if c.Lsp.HandshakeTimeoutMs == 0 {
		c.Lsp.HandshakeTimeoutMs = def.Lsp.HandshakeTimeoutMs
	}
	if c.Lsp.RequestTimeoutMs == 0 {
		c.Lsp.RequestTimeoutMs = def.Lsp.RequestTimeoutMs
	}
	if c.Lsp.ProbeTimeoutMs == 0 {
		c.Lsp.ProbeTimeoutMs = def.Lsp.ProbeTimeoutMs
	}
	if c.Lsp.ShutdownGraceMs == 0 {
		c.Lsp.ShutdownGraceMs = def.Lsp.ShutdownGraceMs
	}
	if c.Lsp.MaxClients == 0 {
		c.Lsp.MaxClients = def.Lsp.MaxClients
	}
	if c.Fallback.ContextLines == 0 {
		c.Fallback.ContextLines = def.Fallback.ContextLines
	}
	if c.Fallback.MaxMatches == 0 {
		c.Fallback.MaxMatches = def.Fallback.MaxMatches
	}
	if c.Paging.DefaultPageSize == 0 {
		c.Paging.DefaultPageSize = def.Paging.DefaultPageSize
	}
	if c.Paging.MaxPageSize == 0 {
		c.Paging.MaxPageSize = def.Paging.MaxPageSize
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// Save writes the configuration to the given file as JSON
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
