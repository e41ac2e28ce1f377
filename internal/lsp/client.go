package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"codenav/internal/errors"
	"codenav/internal/logging"
)

// ClientState represents the lifecycle state of a protocol client
type ClientState string

const (
	// StateUninitialized indicates the client has not been started
	StateUninitialized ClientState = "uninitialized"
	// StateStarting indicates the subprocess is spawned and the handshake
	// is in flight
	StateStarting ClientState = "starting"
	// StateReady indicates the handshake completed and requests are accepted
	StateReady ClientState = "ready"
	// StateShuttingDown indicates a graceful shutdown is in progress
	StateShuttingDown ClientState = "shuttingDown"
	// StateStopped indicates the subprocess has terminated
	StateStopped ClientState = "stopped"
)

// ClientOptions bound the client's protocol round-trips.
type ClientOptions struct {
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	ShutdownGrace    time.Duration
}

func (o *ClientOptions) applyDefaults() {
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 15 * time.Second
	}
	if o.ShutdownGrace == 0 {
		o.ShutdownGrace = 2 * time.Second
	}
}

// Client owns one analysis-server subprocess and one handshake-negotiated
// session with it. A client is never garbage-collected implicitly; it is
// destroyed only by Stop or manager teardown because it owns an OS process.
type Client struct {
	spec          ServerLaunchSpec
	workspaceRoot string
	opts          ClientOptions
	logger        *logging.Logger

	docs *DocumentSet

	mu           sync.RWMutex
	state        ClientState
	capabilities map[string]interface{}

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	writeMu   sync.Mutex
	pendingMu sync.Mutex
	pending   map[int64]chan *rpcMessage
	nextID    int64

	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client for one (command, workspace) pair without
// starting it.
func NewClient(spec ServerLaunchSpec, workspaceRoot string, opts ClientOptions, logger *logging.Logger) *Client {
	opts.applyDefaults()
	c := &Client{
		spec:          spec,
		workspaceRoot: workspaceRoot,
		opts:          opts,
		logger: logger.With(map[string]interface{}{
			"component": "client",
			"command":   spec.Command,
		}),
		state:        StateUninitialized,
		capabilities: make(map[string]interface{}),
		pending:      make(map[int64]chan *rpcMessage),
		done:         make(chan struct{}),
		exited:       make(chan struct{}),
	}
	c.docs = newDocumentSet(c)
	return c
}

// NewConnectedClient wires a client over an established stream pair, for
// servers that are launched and supervised externally (socket mode, test
// harnesses). The session is assumed to be initialized: the client starts
// Ready, and Stop winds down the protocol and closes the streams without
// signaling a process.
func NewConnectedClient(spec ServerLaunchSpec, workspaceRoot string, stdin io.WriteCloser, stdout io.ReadCloser, opts ClientOptions, logger *logging.Logger) *Client {
	c := NewClient(spec, workspaceRoot, opts, logger)
	c.stdin = stdin
	c.stdout = stdout
	c.setState(StateReady)
	go c.readLoop()
	return c
}

// WorkspaceRoot returns the directory boundary this client is confined to.
func (c *Client) WorkspaceRoot() string {
	return c.workspaceRoot
}

// Documents returns the open-document tracker for this client.
func (c *Client) Documents() *DocumentSet {
	return c.docs
}

// State returns the current lifecycle state (thread-safe)
func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(state ClientState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// Ready reports whether the client accepts requests
func (c *Client) Ready() bool {
	return c.State() == StateReady
}

// Capabilities returns the capability map negotiated at handshake time.
func (c *Client) Capabilities() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

// Start spawns the subprocess and performs the initialize handshake. A
// spawn error or handshake failure transitions directly to Stopped and is
// surfaced to the caller; there is no automatic retry.
func (c *Client) Start(ctx context.Context) error {
	if c.State() != StateUninitialized {
		return errors.New(errors.InternalError,
			fmt.Sprintf("cannot start client in state %s", c.State()), nil)
	}
	c.setState(StateStarting)

	cmd := exec.Command(c.spec.Command, c.spec.Args...)
	cmd.Dir = c.workspaceRoot

	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.setState(StateStopped)
		return errors.New(errors.SpawnFailure, "failed to create stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.setState(StateStopped)
		return errors.New(errors.SpawnFailure, "failed to create stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		c.setState(StateStopped)
		return errors.New(errors.SpawnFailure, "failed to create stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		c.setState(StateStopped)
		return errors.New(errors.SpawnFailure,
			fmt.Sprintf("failed to start %s", c.spec.Command), err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = stdout
	c.stderr = stderr

	go c.readLoop()
	go c.stderrLoop()
	go func() {
		_ = cmd.Wait()
		close(c.exited)
	}()

	if err := c.handshake(ctx); err != nil {
		c.terminate()
		c.setState(StateStopped)
		return err
	}

	c.setState(StateReady)
	c.logger.Info("Client ready", map[string]interface{}{
		"workspaceRoot": c.workspaceRoot,
	})
	return nil
}

// handshake sends the initialize request and initialized notification.
func (c *Client) handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancel()

	params := map[string]interface{}{
		"processId": nil,
		"rootUri":   PathToURI(c.workspaceRoot),
		"capabilities": map[string]interface{}{
			"textDocument": map[string]interface{}{
				"definition": map[string]interface{}{
					"linkSupport": true,
				},
				"references":    map[string]interface{}{},
				"callHierarchy": map[string]interface{}{},
			},
			"workspace": map[string]interface{}{},
		},
	}
	if len(c.spec.InitializationOptions) > 0 {
		params["initializationOptions"] = c.spec.InitializationOptions
	}

	result, err := c.sendRequest(ctx, "initialize", params)
	if err != nil {
		if errors.IsCode(err, errors.RequestTimeout) {
			return errors.New(errors.HandshakeTimeout,
				fmt.Sprintf("%s did not answer the initialize request", c.spec.Command), err)
		}
		return errors.New(errors.SpawnFailure, "initialize request failed", err)
	}

	var initResult struct {
		Capabilities map[string]interface{} `json:"capabilities"`
	}
	if err := json.Unmarshal(result, &initResult); err == nil && initResult.Capabilities != nil {
		c.mu.Lock()
		c.capabilities = initResult.Capabilities
		c.mu.Unlock()
	}

	return c.sendNotification("initialized", map[string]interface{}{})
}

// Stop performs a graceful shutdown: shutdown request, exit notification,
// then a forced kill if the subprocess outlives the grace period.
func (c *Client) Stop() error {
	state := c.State()
	if state == StateStopped || state == StateUninitialized {
		c.setState(StateStopped)
		return nil
	}
	c.setState(StateShuttingDown)

	if c.stdin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.ShutdownGrace)
		_, _ = c.sendRequest(ctx, "shutdown", nil)
		cancel()
		_ = c.sendNotification("exit", nil)
	}

	c.closeOnce.Do(func() { close(c.done) })

	if c.cmd != nil && c.cmd.Process != nil {
		select {
		case <-c.exited:
		case <-time.After(c.opts.ShutdownGrace):
			c.logger.Warn("Server did not exit in time, killing", map[string]interface{}{
				"pid": c.cmd.Process.Pid,
			})
			_ = c.cmd.Process.Kill()
		}
	}

	c.closeStreams()
	c.setState(StateStopped)
	return nil
}

// terminate kills the subprocess without protocol ceremony. Used when the
// handshake fails and there is no session to wind down.
func (c *Client) terminate() {
	c.closeOnce.Do(func() { close(c.done) })
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	c.closeStreams()
}

func (c *Client) closeStreams() {
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.stdout != nil {
		_ = c.stdout.Close()
	}
	if c.stderr != nil {
		_ = c.stderr.Close()
	}
}

// requireOpen enforces the open-before-query invariant.
func (c *Client) requireOpen(uri string) error {
	if !c.Ready() {
		return errors.New(errors.InternalError,
			fmt.Sprintf("client not ready (state %s)", c.State()), nil)
	}
	if !c.docs.IsOpen(uri) {
		return errors.New(errors.DocumentNotOpen,
			fmt.Sprintf("document %s must be opened before querying it", uri), nil)
	}
	return nil
}

// Definition requests the definition locations for a position.
func (c *Client) Definition(ctx context.Context, uri string, pos Position) ([]Location, error) {
	if err := c.requireOpen(uri); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	raw, err := c.sendRequest(ctx, "textDocument/definition", positionParams(uri, pos))
	if err != nil {
		return nil, err
	}
	return decodeLocations(raw), nil
}

// References requests all reference locations for a position.
func (c *Client) References(ctx context.Context, uri string, pos Position, includeDeclaration bool) ([]Location, error) {
	if err := c.requireOpen(uri); err != nil {
		return nil, err
	}

	params := positionParams(uri, pos)
	params["context"] = map[string]interface{}{
		"includeDeclaration": includeDeclaration,
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	raw, err := c.sendRequest(ctx, "textDocument/references", params)
	if err != nil {
		return nil, err
	}

	var locs []Location
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &locs); err != nil {
			return nil, fmt.Errorf("unexpected references result: %w", err)
		}
	}
	return locs, nil
}

// PrepareCallHierarchy resolves the symbol at a position to hierarchy items.
func (c *Client) PrepareCallHierarchy(ctx context.Context, uri string, pos Position) ([]CallHierarchyItem, error) {
	if err := c.requireOpen(uri); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	raw, err := c.sendRequest(ctx, "textDocument/prepareCallHierarchy", positionParams(uri, pos))
	if err != nil {
		return nil, err
	}

	var items []CallHierarchyItem
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("unexpected call hierarchy result: %w", err)
		}
	}
	return items, nil
}

// IncomingCalls requests the callers of a hierarchy item.
func (c *Client) IncomingCalls(ctx context.Context, item CallHierarchyItem) ([]IncomingCall, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	raw, err := c.sendRequest(ctx, "callHierarchy/incomingCalls", map[string]interface{}{"item": item})
	if err != nil {
		return nil, err
	}

	var calls []IncomingCall
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &calls); err != nil {
			return nil, fmt.Errorf("unexpected incoming calls result: %w", err)
		}
	}
	return calls, nil
}

// OutgoingCalls requests the callees of a hierarchy item.
func (c *Client) OutgoingCalls(ctx context.Context, item CallHierarchyItem) ([]OutgoingCall, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	raw, err := c.sendRequest(ctx, "callHierarchy/outgoingCalls", map[string]interface{}{"item": item})
	if err != nil {
		return nil, err
	}

	var calls []OutgoingCall
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &calls); err != nil {
			return nil, fmt.Errorf("unexpected outgoing calls result: %w", err)
		}
	}
	return calls, nil
}

func positionParams(uri string, pos Position) map[string]interface{} {
	return map[string]interface{}{
		"textDocument": map[string]interface{}{
			"uri": uri,
		},
		"position": map[string]interface{}{
			"line":      pos.Line,
			"character": pos.Character,
		},
	}
}
