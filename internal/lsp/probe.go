package lsp

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"codenav/internal/logging"
)

// DefaultProbeTimeout bounds a single PATH probe.
const DefaultProbeTimeout = 5 * time.Second

// Prober determines whether a server launch command is invocable on this
// host. Results are cached per command until ClearCache.
type Prober struct {
	runner  ExecRunner
	timeout time.Duration
	logger  *logging.Logger

	// selfExe is this process's own executable path; a command equal to
	// it is a bundled server and always available.
	selfExe string

	// statFn is injectable for tests
	statFn func(string) (os.FileInfo, error)

	mu    sync.Mutex
	cache map[string]bool
}

// NewProber creates a prober with the given runner and timeout.
func NewProber(runner ExecRunner, timeout time.Duration, logger *logging.Logger) *Prober {
	if timeout == 0 {
		timeout = DefaultProbeTimeout
	}
	selfExe, err := os.Executable()
	if err != nil {
		selfExe = ""
	}
	return &Prober{
		runner:  runner,
		timeout: timeout,
		logger:  logger.With(map[string]interface{}{"component": "prober"}),
		selfExe: selfExe,
		statFn:  os.Stat,
		cache:   make(map[string]bool),
	}
}

// Available reports whether the command can be invoked. Three cases: the
// host's own executable (bundled server), an absolute path checked on
// disk, or a bounded PATH probe. The probe never blocks past the timeout;
// on expiry the probe process is killed and the command reported
// unavailable.
func (p *Prober) Available(ctx context.Context, command string) bool {
	if command == "" {
		return false
	}

	p.mu.Lock()
	if cached, ok := p.cache[command]; ok {
		p.mu.Unlock()
		return cached
	}
	p.mu.Unlock()

	available := p.probe(ctx, command)

	p.mu.Lock()
	p.cache[command] = available
	p.mu.Unlock()

	if !available {
		p.logger.Debug("Command unavailable", map[string]interface{}{
			"command": command,
		})
	}
	return available
}

func (p *Prober) probe(ctx context.Context, command string) bool {
	if p.selfExe != "" && command == p.selfExe {
		return true
	}

	if filepath.IsAbs(command) {
		info, err := p.statFn(command)
		return err == nil && !info.IsDir()
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	locator := "which"
	if runtime.GOOS == "windows" {
		locator = "where"
	}

	stdout, _, err := p.runner.Run(ctx, locator, command)
	if err != nil {
		return false
	}
	return strings.TrimSpace(stdout) != ""
}

// ClearCache drops cached probe results.
func (p *Prober) ClearCache() {
	p.mu.Lock()
	p.cache = make(map[string]bool)
	p.mu.Unlock()
}
