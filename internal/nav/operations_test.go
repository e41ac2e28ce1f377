package nav

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"codenav/internal/config"
	"codenav/internal/errors"
	"codenav/internal/fallback"
	"codenav/internal/logging"
)

const opsSource = `package demo

func Greet(name string) string {
	return format(name)
}

func format(name string) string {
	return "hi " + name
}

func main() {
	msg := Greet("world")
	print(msg)
}
`

// newLexicalOperations builds an Operations with no protocol manager, so
// every query exercises the degradation path.
func newLexicalOperations(t *testing.T) (*Operations, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "demo.go"), []byte(opsSource), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.WorkspaceRoot = root
	cfg.Lsp.Enabled = false

	logger := logging.NewLogger(logging.Config{
		Format: logging.JSONFormat,
		Level:  logging.ErrorLevel,
		Output: io.Discard,
	})
	matcher := fallback.NewMatcher(fallback.NewFileSearcher(), fallback.BraceScopeExtractor{},
		cfg.Fallback.ContextLines, cfg.Fallback.MaxMatches, logger)

	return NewOperations(cfg, nil, matcher, logger), root
}

func TestDefinitionLexicalFallback(t *testing.T) {
	ops, root := newLexicalOperations(t)

	res := ops.Definition(context.Background(), SymbolLocator{
		Path:     filepath.Join(root, "demo.go"),
		Symbol:   "Greet",
		LineHint: 3,
	})

	if res.Status != StatusOK {
		t.Fatalf("status = %s, want ok (err: %v)", res.Status, res.Err)
	}
	if res.Source != SourceLexical {
		t.Errorf("source = %s, want lexical", res.Source)
	}
	if res.Location == nil || res.Location.Line != 3 {
		t.Errorf("location = %+v, want line 3", res.Location)
	}
	if res.TraceID == "" {
		t.Error("expected a trace ID")
	}
	if res.Context == "" {
		t.Error("expected a context snippet")
	}
}

func TestDefinitionUnknownSymbolIsEmpty(t *testing.T) {
	ops, root := newLexicalOperations(t)

	res := ops.Definition(context.Background(), SymbolLocator{
		Path:     filepath.Join(root, "demo.go"),
		Symbol:   "phantom",
		LineHint: 3,
	})

	if res.Status != StatusEmpty {
		t.Fatalf("status = %s, want empty", res.Status)
	}
	if len(res.Hints) == 0 {
		t.Error("empty result should carry hints")
	}
	if res.Err != nil {
		t.Errorf("empty is not an error, got %v", res.Err)
	}
}

func TestReferencesLexicalWithPaging(t *testing.T) {
	ops, root := newLexicalOperations(t)

	res := ops.References(context.Background(), SymbolLocator{
		Path:     filepath.Join(root, "demo.go"),
		Symbol:   "Greet",
		LineHint: 3,
	}, ReferenceOptions{Page: 1, PageSize: 10})

	if res.Status != StatusOK {
		t.Fatalf("status = %s, want ok (err: %v)", res.Status, res.Err)
	}
	if res.Source != SourceLexical {
		t.Errorf("source = %s, want lexical", res.Source)
	}
	// Only the call site; the declaration is excluded by default.
	if len(res.References) != 1 || res.References[0].Location.Line != 12 {
		t.Errorf("references = %+v, want the line 12 call site", res.References)
	}
	if res.Page.TotalPages != 1 {
		t.Errorf("totalPages = %d, want 1", res.Page.TotalPages)
	}
}

func TestReferencesMultiPageCarriesPagingHint(t *testing.T) {
	ops, root := newLexicalOperations(t)
	extra := `package demo

func fanOut() {
	Greet("a")
	Greet("b")
}
`
	if err := os.WriteFile(filepath.Join(root, "extra.go"), []byte(extra), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	res := ops.References(context.Background(), SymbolLocator{
		Path:     filepath.Join(root, "demo.go"),
		Symbol:   "Greet",
		LineHint: 3,
	}, ReferenceOptions{Page: 1, PageSize: 1})

	if res.Status != StatusOK {
		t.Fatalf("status = %s, want ok (err: %v)", res.Status, res.Err)
	}
	if res.Page.TotalPages < 2 {
		t.Fatalf("totalPages = %d, want several", res.Page.TotalPages)
	}
	if len(res.Hints) == 0 || res.Hints[0].Action != "page-through" {
		t.Errorf("hints = %+v, want the page-through hint", res.Hints)
	}
}

func TestReferencesExcludeGlob(t *testing.T) {
	ops, root := newLexicalOperations(t)

	res := ops.References(context.Background(), SymbolLocator{
		Path:     filepath.Join(root, "demo.go"),
		Symbol:   "Greet",
		LineHint: 3,
	}, ReferenceOptions{Exclude: []string{"**/*.go"}})

	if res.Status != StatusEmpty {
		t.Fatalf("status = %s, want empty after filtering", res.Status)
	}
	if res.Filter.MatchedCount != 0 || res.Filter.TotalCount == 0 {
		t.Errorf("filter = %+v, want all candidates filtered out", res.Filter)
	}
}

func TestCallHierarchyLexical(t *testing.T) {
	ops, root := newLexicalOperations(t)

	res := ops.CallHierarchy(context.Background(), SymbolLocator{
		Path:     filepath.Join(root, "demo.go"),
		Symbol:   "Greet",
		LineHint: 3,
	})

	if res.Status != StatusOK {
		t.Fatalf("status = %s, want ok (err: %v)", res.Status, res.Err)
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

func TestPaginate(t *testing.T) {
	ops, _ := newLexicalOperations(t)

	tests := []struct {
		name           string
		total          int
		page, pageSize int
		wantStart      int
		wantEnd        int
		wantPages      int
		wantSize       int
	}{
		{"middle page", 10, 2, 3, 3, 6, 4, 3},
		{"last partial page", 10, 4, 3, 9, 10, 4, 3},
		{"past the end", 10, 5, 3, 0, 0, 4, 3},
		{"zero size uses default", 30, 1, 0, 0, 20, 2, 20},
		{"oversized clamped to max", 100, 1, 500, 0, 50, 2, 50},
		{"page zero treated as one", 5, 0, 5, 0, 5, 1, 5},
		{"no items", 0, 1, 10, 0, 0, 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span, info := ops.paginate(tt.total, tt.page, tt.pageSize)
			if span.start != tt.wantStart || span.end != tt.wantEnd {
				t.Errorf("span = [%d, %d), want [%d, %d)",
					span.start, span.end, tt.wantStart, tt.wantEnd)
			}
			if info.TotalPages != tt.wantPages {
				t.Errorf("totalPages = %d, want %d", info.TotalPages, tt.wantPages)
			}
			if info.PageSize != tt.wantSize {
				t.Errorf("pageSize = %d, want %d", info.PageSize, tt.wantSize)
			}
		})
	}
}

func TestFilterReferencesGlobs(t *testing.T) {
	ops, root := newLexicalOperations(t)
	logger := ops.logger

	refs := []Reference{
		{Location: Location{Path: filepath.Join(root, "src", "app.go"), Line: 1}},
		{Location: Location{Path: filepath.Join(root, "src", "app_test.go"), Line: 2}},
		{Location: Location{Path: filepath.Join(root, "docs", "guide.md"), Line: 3}},
	}

	kept := ops.filterReferences(refs, ReferenceOptions{Include: []string{"src/**"}}, logger)
	if len(kept) != 2 {
		t.Errorf("include filter kept %d, want 2", len(kept))
	}

	kept = ops.filterReferences(refs, ReferenceOptions{
		Include: []string{"src/**"},
		Exclude: []string{"**/*_test.go"},
	}, logger)
	if len(kept) != 1 || kept[0].Location.Line != 1 {
		t.Errorf("combined filter kept %+v, want only app.go", kept)
	}

	// Malformed pattern is skipped, not fatal.
	kept = ops.filterReferences(refs, ReferenceOptions{Exclude: []string{"[bad"}}, logger)
	if len(kept) != 3 {
		t.Errorf("malformed exclude dropped rows: kept %d, want 3", len(kept))
	}
}

func TestBatchSizeLimits(t *testing.T) {
	ops, root := newLexicalOperations(t)
	loc := SymbolLocator{Path: filepath.Join(root, "demo.go"), Symbol: "Greet", LineHint: 3}

	if _, err := ops.DefinitionBatch(context.Background(), nil); !errors.IsCode(err, errors.ConfigInvalid) {
		t.Errorf("empty batch: expected CONFIG_INVALID, got %v", err)
	}

	tooMany := make([]SymbolLocator, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = loc
	}
	if _, err := ops.DefinitionBatch(context.Background(), tooMany); !errors.IsCode(err, errors.ConfigInvalid) {
		t.Errorf("oversized batch: expected CONFIG_INVALID, got %v", err)
	}
}

func TestDefinitionBatchIsolatesFailures(t *testing.T) {
	ops, root := newLexicalOperations(t)

	results, err := ops.DefinitionBatch(context.Background(), []SymbolLocator{
		{Path: filepath.Join(root, "demo.go"), Symbol: "Greet", LineHint: 3},
		{Path: filepath.Join(root, "demo.go"), Symbol: "phantom", LineHint: 3},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Status != StatusOK {
		t.Errorf("first result = %s, want ok", results[0].Status)
	}
	if results[1].Status != StatusEmpty {
		t.Errorf("second result = %s, want empty", results[1].Status)
	}
	if results[0].TraceID == results[1].TraceID {
		t.Error("each batch entry must get its own trace ID")
	}
}

func TestCallHierarchyBatch(t *testing.T) {
	ops, root := newLexicalOperations(t)

	results, err := ops.CallHierarchyBatch(context.Background(), []SymbolLocator{
		{Path: filepath.Join(root, "demo.go"), Symbol: "Greet", LineHint: 3},
		{Path: filepath.Join(root, "demo.go"), Symbol: "format", LineHint: 7},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, res := range results {
		if res.Status == StatusError {
			t.Errorf("result %d errored: %v", i, res.Err)
		}
	}
}
