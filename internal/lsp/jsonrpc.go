package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"codenav/internal/errors"
)

// rpcMessage represents a JSON-RPC 2.0 message
type rpcMessage struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  interface{}     `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC error
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// sendRequest sends a request tagged with a fresh correlation ID and waits
// for the matching response, bounded by ctx.
func (c *Client) sendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	c.pendingMu.Lock()
	c.nextID++
	id := c.nextID
	respChan := make(chan *rpcMessage, 1)
	c.pending[id] = respChan
	c.pendingMu.Unlock()

	msg := rpcMessage{
		Jsonrpc: "2.0",
		ID:      &id,
		Method:  method,
		Params:  params,
	}

	if err := c.writeMessage(&msg); err != nil {
		c.dropPending(id)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case resp, ok := <-respChan:
		if !ok {
			return nil, errors.New(errors.SpawnFailure, "server exited before responding", nil)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("server error [%d]: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.dropPending(id)
		return nil, errors.New(errors.RequestTimeout,
			fmt.Sprintf("%s request did not complete", method), ctx.Err())
	case <-c.done:
		c.dropPending(id)
		return nil, errors.New(errors.SpawnFailure, "client shutting down", nil)
	}
}

func (c *Client) dropPending(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// sendNotification sends a JSON-RPC notification (no response expected)
func (c *Client) sendNotification(method string, params interface{}) error {
	msg := rpcMessage{
		Jsonrpc: "2.0",
		Method:  method,
		Params:  params,
	}
	return c.writeMessage(&msg)
}

// writeMessage frames a message with a Content-Length header and writes it
// to the server's standard input.
func (c *Client) writeMessage(msg *rpcMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.stdin == nil {
		return fmt.Errorf("stdin not available")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := c.stdin.Write([]byte(header)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := c.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}

	return nil
}

// readLoop continuously reads messages from the server's standard output
// until the stream closes or the client shuts down.
func (c *Client) readLoop() {
	defer func() {
		// Wake every in-flight caller; the subprocess is gone.
		c.pendingMu.Lock()
		for _, ch := range c.pending {
			close(ch)
		}
		c.pending = make(map[int64]chan *rpcMessage)
		c.pendingMu.Unlock()

		if c.State() != StateShuttingDown {
			c.setState(StateStopped)
		}
	}()

	reader := bufio.NewReader(c.stdout)

	for {
		select {
		case <-c.done:
			return
		default:
		}

		msg, err := c.readMessage(reader)
		if err != nil {
			if err == io.EOF {
				return
			}
			// Malformed frame; skip it rather than killing the session
			continue
		}

		c.handleMessage(msg)
	}
}

// readMessage reads a single framed message (headers + content)
func (c *Client) readMessage(reader *bufio.Reader) (*rpcMessage, error) {
	headers := make(map[string]string)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	contentLengthStr, ok := headers["Content-Length"]
	if !ok {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	contentLength, err := strconv.Atoi(contentLengthStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Content-Length: %w", err)
	}

	content := make([]byte, contentLength)
	if _, err := io.ReadFull(reader, content); err != nil {
		return nil, err
	}

	var msg rpcMessage
	if err := json.Unmarshal(content, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	return &msg, nil
}

// handleMessage routes an incoming message: responses go to the pending
// caller by correlation ID; unmatched responses are logged and dropped.
func (c *Client) handleMessage(msg *rpcMessage) {
	if msg.ID != nil && msg.Method == "" {
		c.pendingMu.Lock()
		respChan, ok := c.pending[*msg.ID]
		if ok {
			delete(c.pending, *msg.ID)
		}
		c.pendingMu.Unlock()

		if !ok {
			c.logger.Debug("Discarding unmatched response", map[string]interface{}{
				"id": *msg.ID,
			})
			return
		}

		select {
		case respChan <- msg:
		default:
		}
		return
	}

	if msg.Method != "" {
		c.handleServerMessage(msg)
	}
}

// handleServerMessage handles server-initiated notifications and requests.
// Diagnostics, progress, and log notifications are ignored; requests get
// an empty response so the server does not stall.
func (c *Client) handleServerMessage(msg *rpcMessage) {
	switch msg.Method {
	case "window/logMessage", "textDocument/publishDiagnostics", "$/progress":
	default:
		c.logger.Debug("Ignoring server message", map[string]interface{}{
			"method": msg.Method,
		})
	}

	if msg.ID != nil {
		resp := rpcMessage{
			Jsonrpc: "2.0",
			ID:      msg.ID,
		}
		_ = c.writeMessage(&resp)
	}
}

// stderrLoop drains the server's standard error into debug logs.
func (c *Client) stderrLoop() {
	if c.stderr == nil {
		return
	}

	scanner := bufio.NewScanner(c.stderr)
	for scanner.Scan() {
		select {
		case <-c.done:
			return
		default:
		}
		c.logger.Debug("Server stderr", map[string]interface{}{
			"line": scanner.Text(),
		})
	}
}
