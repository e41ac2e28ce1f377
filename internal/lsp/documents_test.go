package lsp

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// collectNotifications returns a handler that records notification methods.
func collectNotifications(mu *sync.Mutex, methods *[]string) func(*rpcMessage) *rpcMessage {
	return func(msg *rpcMessage) *rpcMessage {
		if msg.ID == nil && msg.Method != "" {
			mu.Lock()
			*methods = append(*methods, msg.Method)
			mu.Unlock()
		}
		return nil
	}
}

func countMethod(mu *sync.Mutex, methods *[]string, want string) int {
	mu.Lock()
	defer mu.Unlock()
	n := 0
	for _, m := range *methods {
		if m == want {
			n++
		}
	}
	return n
}

func waitForMethod(t *testing.T, mu *sync.Mutex, methods *[]string, want string, count int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if countMethod(mu, methods, want) >= count {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("did not observe %d %s notifications", count, want)
}

func TestOpenIsIdempotent(t *testing.T) {
	var mu sync.Mutex
	var methods []string
	c, _ := newTestClient(t, collectNotifications(&mu, &methods))

	path := filepath.Join(t.TempDir(), "main.go")
	if err := os.WriteFile(path, []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := c.Documents().Open(path); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}

	waitForMethod(t, &mu, &methods, "textDocument/didOpen", 1)
	if n := countMethod(&mu, &methods, "textDocument/didOpen"); n != 1 {
		t.Errorf("expected 1 didOpen, got %d", n)
	}
	if c.Documents().Count() != 1 {
		t.Errorf("expected 1 open document, got %d", c.Documents().Count())
	}
}

func TestConcurrentOpenSendsOneNotification(t *testing.T) {
	var mu sync.Mutex
	var methods []string
	c, _ := newTestClient(t, collectNotifications(&mu, &methods))

	path := filepath.Join(t.TempDir(), "main.go")
	if err := os.WriteFile(path, []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Documents().Open(path); err != nil {
				t.Errorf("concurrent open: %v", err)
			}
		}()
	}
	wg.Wait()

	waitForMethod(t, &mu, &methods, "textDocument/didOpen", 1)
	if n := countMethod(&mu, &methods, "textDocument/didOpen"); n != 1 {
		t.Errorf("expected 1 didOpen across concurrent opens, got %d", n)
	}
	if c.Documents().Count() != 1 {
		t.Errorf("expected 1 open document, got %d", c.Documents().Count())
	}
}

func TestOpenMissingFile(t *testing.T) {
	c, _ := newTestClient(t, nil)

	if err := c.Documents().Open(filepath.Join(t.TempDir(), "absent.go")); err == nil {
		t.Error("opening a missing file should fail")
	}
	if c.Documents().Count() != 0 {
		t.Error("failed open must not leave a record")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	var mu sync.Mutex
	var methods []string
	c, _ := newTestClient(t, collectNotifications(&mu, &methods))

	path := openTestDocument(t, c, "main.go", "package main\n")

	if err := c.Documents().Close(path); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Documents().Close(path); err != nil {
		t.Fatalf("second close: %v", err)
	}

	waitForMethod(t, &mu, &methods, "textDocument/didClose", 1)
	if n := countMethod(&mu, &methods, "textDocument/didClose"); n != 1 {
		t.Errorf("expected 1 didClose, got %d", n)
	}
}

func TestTextReturnsSnapshot(t *testing.T) {
	c, _ := newTestClient(t, nil)
	content := "package main\n\nfunc main() {}\n"
	path := openTestDocument(t, c, "main.go", content)

	text, ok := c.Documents().Text(path)
	if !ok || text != content {
		t.Errorf("snapshot mismatch: ok=%v", ok)
	}
	if _, ok := c.Documents().Text("/never/opened.go"); ok {
		t.Error("unopened document must have no snapshot")
	}
}

func TestCloseAllClearsRecords(t *testing.T) {
	c, _ := newTestClient(t, nil)
	openTestDocument(t, c, "a.go", "package a\n")
	openTestDocument(t, c, "b.go", "package b\n")

	c.Documents().CloseAll()
	if c.Documents().Count() != 0 {
		t.Errorf("expected 0 documents after CloseAll, got %d", c.Documents().Count())
	}
}

func TestPathURIRoundTrip(t *testing.T) {
	path := "/work/internal/server/server.go"
	uri := PathToURI(path)
	if uri != "file:///work/internal/server/server.go" {
		t.Errorf("PathToURI = %q", uri)
	}
	if got := URIToPath(uri); got != path {
		t.Errorf("URIToPath = %q, want %q", got, path)
	}
	// Already a URI: unchanged.
	if got := PathToURI(uri); got != uri {
		t.Errorf("PathToURI(uri) = %q", got)
	}
}

func TestLanguageID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"app.ts", "typescript"},
		{"component.TSX", "typescriptreact"},
		{"script.py", "python"},
		{"lib.rs", "rust"},
		{"unknown.xyz", "xyz"},
	}
	for _, tt := range tests {
		if got := LanguageID(tt.path); got != tt.want {
			t.Errorf("LanguageID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
