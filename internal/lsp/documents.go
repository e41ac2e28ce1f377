package lsp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"codenav/internal/errors"
)

// OpenDocument tracks one document the server has been told about.
// Version is pinned at 1: a file is read once at open time and not
// re-synchronized on later edits (single-snapshot semantics).
type OpenDocument struct {
	URI     string
	Version int
	Text    string
}

// DocumentSet tracks which files are open with one client and enforces
// the open-before-query contract.
type DocumentSet struct {
	client *Client

	mu      sync.Mutex
	docs    map[string]*OpenDocument
	opening map[string]*openCall
}

// openCall holds one in-flight open so concurrent opens of the same URI
// collapse onto a single didOpen notification.
type openCall struct {
	done chan struct{}
	err  error
}

func newDocumentSet(client *Client) *DocumentSet {
	return &DocumentSet{
		client:  client,
		docs:    make(map[string]*OpenDocument),
		opening: make(map[string]*openCall),
	}
}

// Open reads the file and sends a didOpen notification. Opening an
// already-open document is a no-op and does not re-send the notification;
// concurrent opens of the same URI share one notification.
func (d *DocumentSet) Open(path string) error {
	if !d.client.Ready() {
		return errors.New(errors.InternalError,
			fmt.Sprintf("cannot open document, client state %s", d.client.State()), nil)
	}

	uri := PathToURI(path)

	d.mu.Lock()
	if _, open := d.docs[uri]; open {
		d.mu.Unlock()
		return nil
	}
	if call, inflight := d.opening[uri]; inflight {
		d.mu.Unlock()
		<-call.done
		return call.err
	}
	call := &openCall{done: make(chan struct{})}
	d.opening[uri] = call
	d.mu.Unlock()

	call.err = d.open(path, uri)

	d.mu.Lock()
	delete(d.opening, uri)
	d.mu.Unlock()
	close(call.done)

	return call.err
}

// open reads the snapshot and notifies the server. The caller holds the
// in-flight slot for the URI, so exactly one notification goes out.
func (d *DocumentSet) open(path, uri string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc := &OpenDocument{URI: uri, Version: 1, Text: string(data)}

	err = d.client.sendNotification("textDocument/didOpen", map[string]interface{}{
		"textDocument": map[string]interface{}{
			"uri":        uri,
			"languageId": LanguageID(path),
			"version":    doc.Version,
			"text":       doc.Text,
		},
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.docs[uri] = doc
	d.mu.Unlock()

	return nil
}

// Close sends a didClose notification and removes the record. Closing a
// document that is not open is a no-op.
func (d *DocumentSet) Close(path string) error {
	uri := PathToURI(path)

	d.mu.Lock()
	_, open := d.docs[uri]
	if open {
		delete(d.docs, uri)
	}
	d.mu.Unlock()

	if !open {
		return nil
	}

	return d.client.sendNotification("textDocument/didClose", map[string]interface{}{
		"textDocument": map[string]interface{}{
			"uri": uri,
		},
	})
}

// CloseAll closes every tracked document, used at teardown so no dangling
// open-document notifications are sent to a terminated process.
func (d *DocumentSet) CloseAll() {
	d.mu.Lock()
	uris := make([]string, 0, len(d.docs))
	for uri := range d.docs {
		uris = append(uris, uri)
	}
	d.docs = make(map[string]*OpenDocument)
	d.mu.Unlock()

	if !d.client.Ready() {
		return
	}
	for _, uri := range uris {
		_ = d.client.sendNotification("textDocument/didClose", map[string]interface{}{
			"textDocument": map[string]interface{}{
				"uri": uri,
			},
		})
	}
}

// IsOpen reports whether the URI has an open record.
func (d *DocumentSet) IsOpen(uri string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, open := d.docs[uri]
	return open
}

// Text returns the snapshot text read when the document was opened.
func (d *DocumentSet) Text(path string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, open := d.docs[PathToURI(path)]
	if !open {
		return "", false
	}
	return doc.Text, true
}

// Count returns the number of open documents.
func (d *DocumentSet) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.docs)
}

// PathToURI converts a filesystem path to a file:// URI.
func PathToURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs)
}

// URIToPath converts a file:// URI back to a filesystem path.
func URIToPath(uri string) string {
	path := strings.TrimPrefix(uri, "file://")
	return filepath.FromSlash(path)
}

// languageIDs maps file extensions to the language identifiers analysis
// servers expect in didOpen notifications.
var languageIDs = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescriptreact",
	".js":   "javascript",
	".jsx":  "javascriptreact",
	".py":   "python",
	".rs":   "rust",
	".dart": "dart",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".rb":   "ruby",
}

// LanguageID determines a document's language identifier from its
// extension, defaulting to the bare extension name.
func LanguageID(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if id, ok := languageIDs[ext]; ok {
		return id
	}
	return strings.TrimPrefix(ext, ".")
}
