package lsp

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"codenav/internal/errors"
	"codenav/internal/logging"
)

// cacheEntry pairs a cached client with its last-use time for eviction.
type cacheEntry struct {
	client   *Client
	lastUsed time.Time
}

// Manager caches protocol clients per (command, workspace) pair. It is the
// sole owner of every client; other components hold only a borrowed
// reference while a request is outstanding.
type Manager struct {
	registry *Registry
	prober   *Prober
	opts     ClientOptions
	logger   *logging.Logger

	maxClients int

	mu      sync.Mutex
	clients map[string]*cacheEntry

	// group memoizes in-flight creations so concurrent GetOrCreate calls
	// for the same key converge on a single subprocess spawn.
	group singleflight.Group

	// createFn builds clients; the default spawns and starts a real one.
	createFn ClientFactory
}

// ClientFactory builds a Ready client for a launch spec. The default
// factory spawns the server subprocess and runs the handshake; callers
// that connect to externally launched servers substitute their own.
type ClientFactory func(ctx context.Context, spec ServerLaunchSpec, workspaceRoot string) (*Client, error)

// NewManager creates a manager over the given registry and prober.
func NewManager(registry *Registry, prober *Prober, opts ClientOptions, maxClients int, logger *logging.Logger) *Manager {
	if maxClients <= 0 {
		maxClients = 4
	}
	m := &Manager{
		registry:   registry,
		prober:     prober,
		opts:       opts,
		logger:     logger.With(map[string]interface{}{"component": "manager"}),
		maxClients: maxClients,
		clients:    make(map[string]*cacheEntry),
	}
	m.createFn = func(ctx context.Context, spec ServerLaunchSpec, workspaceRoot string) (*Client, error) {
		client := NewClient(spec, workspaceRoot, m.opts, logger)
		if err := client.Start(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
	return m
}

// SetClientFactory replaces how the manager builds clients.
func (m *Manager) SetClientFactory(fn ClientFactory) {
	if fn != nil {
		m.createFn = fn
	}
}

// CacheKey computes the cache key for a launch spec within a workspace.
func CacheKey(command, workspaceRoot string) string {
	return command + ":" + workspaceRoot
}

// GetOrCreate returns a Ready client for the file's extension, creating
// one if needed. A ServerUnavailable, SpawnFailure, or HandshakeTimeout
// error means the caller must degrade to the lexical fallback; a start
// failure does not poison the cache for future attempts.
func (m *Manager) GetOrCreate(ctx context.Context, workspaceRoot, filePath string) (*Client, error) {
	spec, ok := m.registry.ResolveForFile(filePath)
	if !ok {
		return nil, errors.New(errors.ServerUnavailable,
			fmt.Sprintf("no analysis server configured for %s files", filepath.Ext(filePath)), nil)
	}

	if !m.prober.Available(ctx, spec.Command) {
		return nil, errors.New(errors.ServerUnavailable,
			fmt.Sprintf("%s is not installed", spec.Command), nil)
	}

	key := CacheKey(spec.Command, workspaceRoot)

	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		m.mu.Lock()
		if entry, exists := m.clients[key]; exists {
			if entry.client.Ready() {
				entry.lastUsed = time.Now()
				m.mu.Unlock()
				return entry.client, nil
			}
			// Stopped or broken; drop it and create a fresh one
			delete(m.clients, key)
		}
		victim := m.evictIfFullLocked()
		m.mu.Unlock()

		// Stopping can block for the shutdown grace period, so it runs
		// outside m.mu where it cannot stall other manager calls.
		if victim != nil {
			victim.client.Documents().CloseAll()
			_ = victim.client.Stop()
		}

		client, err := m.createFn(ctx, spec, workspaceRoot)
		if err != nil {
			m.logger.Warn("Client start failed", map[string]interface{}{
				"command": spec.Command,
				"error":   err.Error(),
			})
			return nil, err
		}

		m.mu.Lock()
		m.clients[key] = &cacheEntry{client: client, lastUsed: time.Now()}
		m.mu.Unlock()

		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

// evictIfFullLocked removes the least-recently-used entry when the cache
// is at capacity and hands it back for the caller to stop after releasing
// m.mu. Caller holds m.mu.
func (m *Manager) evictIfFullLocked() *cacheEntry {
	if len(m.clients) < m.maxClients {
		return nil
	}

	var oldestKey string
	var oldest time.Time
	for key, entry := range m.clients {
		if oldestKey == "" || entry.lastUsed.Before(oldest) {
			oldestKey = key
			oldest = entry.lastUsed
		}
	}
	if oldestKey == "" {
		return nil
	}

	entry := m.clients[oldestKey]
	delete(m.clients, oldestKey)
	m.logger.Info("Evicting idle client", map[string]interface{}{
		"key": oldestKey,
	})
	return entry
}

// Get returns the cached client for a key without creating one.
func (m *Manager) Get(command, workspaceRoot string) (*Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.clients[CacheKey(command, workspaceRoot)]
	if !ok {
		return nil, false
	}
	return entry.client, true
}

// ClientCount returns the number of cached clients.
func (m *Manager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// ShutdownAll closes all open documents, stops every client, and clears
// the cache. Used at process teardown; after it returns no request may be
// issued without a new GetOrCreate.
func (m *Manager) ShutdownAll() {
	m.mu.Lock()
	entries := make([]*cacheEntry, 0, len(m.clients))
	for _, entry := range m.clients {
		entries = append(entries, entry)
	}
	m.clients = make(map[string]*cacheEntry)
	m.mu.Unlock()

	for _, entry := range entries {
		entry.client.Documents().CloseAll()
		if err := entry.client.Stop(); err != nil {
			m.logger.Warn("Client stop failed", map[string]interface{}{
				"command": entry.client.spec.Command,
				"error":   err.Error(),
			})
		}
	}
}
