package nav

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"codenav/internal/config"
	"codenav/internal/fallback"
	"codenav/internal/logging"
	"codenav/internal/lsp"
)

// installedRunner reports every probed command as installed.
type installedRunner struct{}

func (installedRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	return "/usr/local/bin/server", "", nil
}

// wireMessage mirrors the framed protocol shape for the scripted server.
type wireMessage struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
}

func readWireMessage(r *bufio.Reader) (*wireMessage, error) {
	length := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			length, _ = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:")))
		}
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	var msg wireMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func writeWireMessage(w io.Writer, msg *wireMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "Content-Length: %d\r\n\r\n%s", len(data), data)
}

// newSemanticOperations builds an Operations whose manager hands out
// clients connected to a scripted server. The script maps a request method
// to its result; methods missing from the script are never answered, so
// those requests run into the request timeout.
func newSemanticOperations(t *testing.T, script func(root string) map[string]interface{}) (*Operations, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "demo.go"), []byte(opsSource), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	answers := map[string]interface{}{}
	if script != nil {
		answers = script(root)
	}

	cfg := config.DefaultConfig()
	cfg.WorkspaceRoot = root

	logger := logging.NewLogger(logging.Config{
		Format: logging.JSONFormat,
		Level:  logging.ErrorLevel,
		Output: io.Discard,
	})
	opts := lsp.ClientOptions{
		HandshakeTimeout: time.Second,
		RequestTimeout:   100 * time.Millisecond,
		ShutdownGrace:    50 * time.Millisecond,
	}

	registry := lsp.NewRegistry(logger)
	prober := lsp.NewProber(installedRunner{}, time.Second, logger)
	manager := lsp.NewManager(registry, prober, opts, 4, logger)
	manager.SetClientFactory(func(ctx context.Context, spec lsp.ServerLaunchSpec, workspaceRoot string) (*lsp.Client, error) {
		stdinR, stdinW := io.Pipe()
		stdoutR, stdoutW := io.Pipe()
		go func() {
			reader := bufio.NewReader(stdinR)
			for {
				msg, err := readWireMessage(reader)
				if err != nil {
					return
				}
				if msg.ID == nil {
					continue
				}
				result, scripted := answers[msg.Method]
				if !scripted {
					continue
				}
				writeWireMessage(stdoutW, &wireMessage{Jsonrpc: "2.0", ID: msg.ID, Result: result})
			}
		}()
		t.Cleanup(func() {
			_ = stdinW.Close()
			_ = stdoutW.Close()
		})
		return lsp.NewConnectedClient(spec, workspaceRoot, stdinW, stdoutR, opts, logger), nil
	})

	matcher := fallback.NewMatcher(fallback.NewFileSearcher(), fallback.BraceScopeExtractor{},
		cfg.Fallback.ContextLines, cfg.Fallback.MaxMatches, logger)

	ops := NewOperations(cfg, manager, matcher, logger)
	t.Cleanup(ops.Shutdown)
	return ops, root
}

func TestDefinitionSemanticAnswerWins(t *testing.T) {
	ops, root := newSemanticOperations(t, func(root string) map[string]interface{} {
		return map[string]interface{}{
			"shutdown": nil,
			"textDocument/definition": []lsp.Location{{
				URI:   lsp.PathToURI(filepath.Join(root, "demo.go")),
				Range: lsp.Range{Start: lsp.Position{Line: 6, Character: 5}},
			}},
		}
	})

	res := ops.Definition(context.Background(), SymbolLocator{
		Path:     filepath.Join(root, "demo.go"),
		Symbol:   "Greet",
		LineHint: 3,
	})

	if res.Status != StatusOK {
		t.Fatalf("status = %s, want ok (err: %v)", res.Status, res.Err)
	}
	if res.Source != SourceSemantic {
		t.Errorf("source = %s, want semantic", res.Source)
	}
	if res.Location == nil || res.Location.Line != 7 {
		t.Errorf("location = %+v, want 1-indexed line 7", res.Location)
	}
}

func TestDefinitionDegradesOnEmptySemanticAnswer(t *testing.T) {
	ops, root := newSemanticOperations(t, func(root string) map[string]interface{} {
		return map[string]interface{}{
			"shutdown":                nil,
			"textDocument/definition": []lsp.Location{},
		}
	})

	res := ops.Definition(context.Background(), SymbolLocator{
		Path:     filepath.Join(root, "demo.go"),
		Symbol:   "Greet",
		LineHint: 3,
	})

	if res.Status != StatusOK {
		t.Fatalf("status = %s, want ok (err: %v)", res.Status, res.Err)
	}
	if res.Source != SourceLexical {
		t.Errorf("source = %s, want lexical after empty protocol answer", res.Source)
	}
	if res.Location == nil || res.Location.Line != 3 {
		t.Errorf("location = %+v, want line 3", res.Location)
	}
}

func TestDefinitionDegradesOnRequestTimeout(t *testing.T) {
	// Nothing is scripted, so the definition request times out.
	ops, root := newSemanticOperations(t, nil)

	res := ops.Definition(context.Background(), SymbolLocator{
		Path:     filepath.Join(root, "demo.go"),
		Symbol:   "Greet",
		LineHint: 3,
	})

	if res.Status != StatusOK {
		t.Fatalf("status = %s, want ok (err: %v)", res.Status, res.Err)
	}
	if res.Source != SourceLexical {
		t.Errorf("source = %s, want lexical after request timeout", res.Source)
	}
}

func TestReferencesDegradeOnEmptySemanticAnswer(t *testing.T) {
	ops, root := newSemanticOperations(t, func(root string) map[string]interface{} {
		return map[string]interface{}{
			"shutdown":                nil,
			"textDocument/references": []lsp.Location{},
		}
	})

	res := ops.References(context.Background(), SymbolLocator{
		Path:     filepath.Join(root, "demo.go"),
		Symbol:   "Greet",
		LineHint: 3,
	}, ReferenceOptions{Page: 1, PageSize: 10})

	if res.Status != StatusOK {
		t.Fatalf("status = %s, want ok (err: %v)", res.Status, res.Err)
	}
	if res.Source != SourceLexical {
		t.Errorf("source = %s, want lexical after empty protocol answer", res.Source)
	}
	if len(res.References) != 1 || res.References[0].Location.Line != 12 {
		t.Errorf("references = %+v, want the line 12 call site", res.References)
	}
}

func TestCallHierarchyDegradesWhenEdgeRequestsTimeOut(t *testing.T) {
	ops, root := newSemanticOperations(t, func(root string) map[string]interface{} {
		return map[string]interface{}{
			"shutdown": nil,
			// Preparation succeeds, but neither edge request is ever
			// answered.
			"textDocument/prepareCallHierarchy": []lsp.CallHierarchyItem{{
				Name:           "Greet",
				URI:            lsp.PathToURI(filepath.Join(root, "demo.go")),
				SelectionRange: lsp.Range{Start: lsp.Position{Line: 2, Character: 5}},
			}},
		}
	})

	res := ops.CallHierarchy(context.Background(), SymbolLocator{
		Path:     filepath.Join(root, "demo.go"),
		Symbol:   "Greet",
		LineHint: 3,
	})

	if res.Status != StatusOK {
		t.Fatalf("status = %s, want ok (err: %v)", res.Status, res.Err)
	}
	if res.Source != SourceLexical {
		t.Errorf("source = %s, want lexical when both directions time out", res.Source)
	}
	if res.Root == nil || res.Root.Line != 3 {
		t.Errorf("root = %+v, want line 3", res.Root)
	}
	if len(res.Incoming) != 1 || res.Incoming[0].Symbol != "main" {
		t.Errorf("incoming = %+v, want one edge from main", res.Incoming)
	}
	if len(res.Outgoing) != 1 || res.Outgoing[0].Symbol != "format" {
		t.Errorf("outgoing = %+v, want one edge to format", res.Outgoing)
	}
}

func TestCallHierarchyToleratesOneFailedDirection(t *testing.T) {
	ops, root := newSemanticOperations(t, func(root string) map[string]interface{} {
		caller := lsp.CallHierarchyItem{
			Name:           "main",
			URI:            lsp.PathToURI(filepath.Join(root, "demo.go")),
			SelectionRange: lsp.Range{Start: lsp.Position{Line: 10, Character: 5}},
		}
		return map[string]interface{}{
			"shutdown": nil,
			"textDocument/prepareCallHierarchy": []lsp.CallHierarchyItem{{
				Name:           "Greet",
				URI:            lsp.PathToURI(filepath.Join(root, "demo.go")),
				SelectionRange: lsp.Range{Start: lsp.Position{Line: 2, Character: 5}},
			}},
			"callHierarchy/incomingCalls": []lsp.IncomingCall{{
				From:       caller,
				FromRanges: []lsp.Range{{Start: lsp.Position{Line: 11, Character: 8}}},
			}},
			// outgoingCalls is unanswered; that direction degrades to empty.
		}
	})

	res := ops.CallHierarchy(context.Background(), SymbolLocator{
		Path:     filepath.Join(root, "demo.go"),
		Symbol:   "Greet",
		LineHint: 3,
	})

	if res.Status != StatusOK {
		t.Fatalf("status = %s, want ok (err: %v)", res.Status, res.Err)
	}
	if res.Source != SourceSemantic {
		t.Errorf("source = %s, want semantic with a partial answer", res.Source)
	}
	if len(res.Incoming) != 1 || res.Incoming[0].Symbol != "main" || res.Incoming[0].Site.Line != 12 {
		t.Errorf("incoming = %+v, want one edge from main at line 12", res.Incoming)
	}
	if len(res.Outgoing) != 0 {
		t.Errorf("outgoing = %+v, want the failed direction empty", res.Outgoing)
	}
}
