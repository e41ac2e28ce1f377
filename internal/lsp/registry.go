package lsp

import (
	_ "embed"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"codenav/internal/logging"
)

// Validation limits for user-supplied server entries
const (
	maxCommandLen = 512
	maxArgLen     = 1024
	maxArgCount   = 64
)

var extensionKeyPattern = regexp.MustCompile(`^(?i)\.[a-z0-9._+-]+$`)

// ServerLaunchSpec describes how to launch an analysis server for one
// file extension. Immutable once resolved for a request.
type ServerLaunchSpec struct {
	Extension             string                 `json:"extension"`
	Command               string                 `json:"command"`
	Args                  []string               `json:"args,omitempty"`
	InitializationOptions map[string]interface{} `json:"initializationOptions,omitempty"`
}

// serverEntry is the on-disk shape of a single server mapping, shared by
// the embedded TOML defaults and the workspace YAML overrides.
type serverEntry struct {
	Command               string                 `toml:"command" yaml:"command"`
	Args                  []string               `toml:"args" yaml:"args"`
	InitializationOptions map[string]interface{} `toml:"initializationOptions" yaml:"initializationOptions"`
}

type serverTable struct {
	Servers map[string]serverEntry `toml:"servers" yaml:"servers"`
}

//go:embed defaults.toml
var builtinServerTable []byte

// Registry maps file extensions to analysis-server launch specs. Built-in
// defaults are compiled in; user overrides are loaded per workspace and
// take precedence per extension.
type Registry struct {
	logger    *logging.Logger
	builtins  map[string]ServerLaunchSpec
	overrides map[string]ServerLaunchSpec
}

// NewRegistry creates a registry holding only the built-in default table.
func NewRegistry(logger *logging.Logger) *Registry {
	r := &Registry{
		logger:    logger.With(map[string]interface{}{"component": "registry"}),
		builtins:  make(map[string]ServerLaunchSpec),
		overrides: make(map[string]ServerLaunchSpec),
	}

	var table serverTable
	if err := toml.Unmarshal(builtinServerTable, &table); err != nil {
		// The embedded table is compiled in; a decode failure is a build
		// defect, not a runtime condition.
		panic(fmt.Sprintf("builtin server table invalid: %v", err))
	}
	for ext, entry := range table.Servers {
		r.builtins[strings.ToLower(ext)] = ServerLaunchSpec{
			Extension:             strings.ToLower(ext),
			Command:               entry.Command,
			Args:                  entry.Args,
			InitializationOptions: entry.InitializationOptions,
		}
	}

	return r
}

// LoadOverrides reads the workspace server override file. Malformed entries
// are rejected individually; the rest of the file still loads. A missing
// file is not an error.
func (r *Registry) LoadOverrides(workspaceRoot, serversFile string) error {
	path := serversFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspaceRoot, serversFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var table serverTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		// A type mismatch still decodes the well-formed entries; only a
		// syntactically broken document aborts the whole load.
		var typeErr *yaml.TypeError
		if !stderrors.As(err, &typeErr) {
			return fmt.Errorf("server override file unreadable: %w", err)
		}
		r.logger.Warn("Server override file has type errors", map[string]interface{}{
			"error": err.Error(),
		})
	}

	for ext, entry := range table.Servers {
		if err := validateServerEntry(ext, entry); err != nil {
			r.logger.Warn("Rejected server override entry", map[string]interface{}{
				"extension": ext,
				"error":     err.Error(),
			})
			continue
		}
		key := strings.ToLower(ext)
		r.overrides[key] = ServerLaunchSpec{
			Extension:             key,
			Command:               entry.Command,
			Args:                  entry.Args,
			InitializationOptions: entry.InitializationOptions,
		}
	}

	return nil
}

// Resolve returns the launch spec for a file extension, or false if no
// server is configured. User overrides win over built-in defaults.
func (r *Registry) Resolve(extension string) (ServerLaunchSpec, bool) {
	key := strings.ToLower(extension)
	user, hasUser := r.overrides[key]
	builtin, hasBuiltin := r.builtins[key]
	return resolveSpec(user, hasUser, builtin, hasBuiltin)
}

// ResolveForFile returns the launch spec for a file path's extension.
func (r *Registry) ResolveForFile(path string) (ServerLaunchSpec, bool) {
	return r.Resolve(filepath.Ext(path))
}

// Extensions returns every extension with a resolvable spec, overrides
// included.
func (r *Registry) Extensions() []string {
	seen := make(map[string]bool)
	exts := make([]string, 0, len(r.builtins)+len(r.overrides))
	for ext := range r.builtins {
		if !seen[ext] {
			seen[ext] = true
			exts = append(exts, ext)
		}
	}
	for ext := range r.overrides {
		if !seen[ext] {
			seen[ext] = true
			exts = append(exts, ext)
		}
	}
	return exts
}

// Overridden reports whether the extension's spec comes from the workspace
// override file rather than the built-in table.
func (r *Registry) Overridden(extension string) bool {
	_, ok := r.overrides[strings.ToLower(extension)]
	return ok
}

// resolveSpec applies the two-layer precedence: user entry, then builtin,
// then none. Pure so precedence is testable without file I/O.
func resolveSpec(user ServerLaunchSpec, hasUser bool, builtin ServerLaunchSpec, hasBuiltin bool) (ServerLaunchSpec, bool) {
	if hasUser {
		return user, true
	}
	if hasBuiltin {
		return builtin, true
	}
	return ServerLaunchSpec{}, false
}

// validateServerEntry checks one user-supplied mapping against the schema
// constraints. A failure rejects only this entry.
func validateServerEntry(extension string, entry serverEntry) error {
	if !extensionKeyPattern.MatchString(extension) {
		return fmt.Errorf("extension key %q does not match %s", extension, extensionKeyPattern.String())
	}
	if entry.Command == "" {
		return fmt.Errorf("command is required")
	}
	if len(entry.Command) > maxCommandLen {
		return fmt.Errorf("command exceeds %d characters", maxCommandLen)
	}
	if containsControlChars(entry.Command) {
		return fmt.Errorf("command contains control characters")
	}
	if len(entry.Args) > maxArgCount {
		return fmt.Errorf("more than %d arguments", maxArgCount)
	}
	for i, arg := range entry.Args {
		if len(arg) > maxArgLen {
			return fmt.Errorf("argument %d exceeds %d characters", i, maxArgLen)
		}
		if containsControlChars(arg) {
			return fmt.Errorf("argument %d contains control characters", i)
		}
	}
	return nil
}

func containsControlChars(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}
