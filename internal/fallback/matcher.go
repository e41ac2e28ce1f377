package fallback

import (
	"context"
	"os"
	"strings"

	"codenav/internal/logging"
)

// LineTolerance is how far a caller's line hint may drift from the actual
// symbol line and still resolve.
const LineTolerance = 2

// SymbolQuery identifies the symbol being reconstructed: target file,
// exact name, the caller's 1-indexed line guess, and the 0-indexed
// occurrence on that line.
type SymbolQuery struct {
	WorkspaceRoot string
	Path          string
	Symbol        string
	LineHint      int
	OrderHint     int
}

// Reference is a lexical match plus surrounding context.
type Reference struct {
	Match   Match
	Context string
}

// CallEdge is one inferred call relationship, anchored at the call site.
type CallEdge struct {
	Symbol  string
	Site    Match
	Context string
}

// Hierarchy is the lexically reconstructed call graph for one symbol.
type Hierarchy struct {
	Root     *Match
	Incoming []CallEdge
	Outgoing []CallEdge
}

// Matcher reconstructs approximate navigation answers from plain pattern
// search when the protocol path is unavailable or inconclusive. It never
// raises a fatal error; no matches means an empty result.
type Matcher struct {
	searcher     Searcher
	scopes       ScopeExtractor
	contextLines int
	maxMatches   int
	logger       *logging.Logger
}

// NewMatcher creates a matcher over the given search collaborator.
func NewMatcher(searcher Searcher, scopes ScopeExtractor, contextLines, maxMatches int, logger *logging.Logger) *Matcher {
	if contextLines <= 0 {
		contextLines = 2
	}
	if maxMatches <= 0 {
		maxMatches = 200
	}
	if scopes == nil {
		scopes = BraceScopeExtractor{}
	}
	return &Matcher{
		searcher:     searcher,
		scopes:       scopes,
		contextLines: contextLines,
		maxMatches:   maxMatches,
		logger:       logger.With(map[string]interface{}{"component": "fallback"}),
	}
}

// FindDefinition approximates a definition location. Preference order: a
// match within tolerance of the line hint (disambiguated by occurrence
// order), then the first declaration-looking match in the file, then
// nothing.
func (m *Matcher) FindDefinition(ctx context.Context, q SymbolQuery) (*Match, string) {
	matches := m.searchFile(ctx, q)
	if len(matches) == 0 {
		return nil, ""
	}

	if hit := selectTolerantMatch(matches, q.LineHint, q.OrderHint, q.Symbol); hit != nil {
		return hit, m.contextFor(*hit)
	}

	for i := range matches {
		if LooksLikeSignature(matches[i].Text) {
			return &matches[i], m.contextFor(matches[i])
		}
	}
	return nil, ""
}

// FindReferences approximates a reference list: every literal match in the
// workspace is a candidate. Declaration-looking lines are dropped unless
// includeDeclaration is set.
func (m *Matcher) FindReferences(ctx context.Context, q SymbolQuery, includeDeclaration bool) []Reference {
	matches := m.searchWorkspace(ctx, q)

	refs := make([]Reference, 0, len(matches))
	for _, match := range matches {
		if !includeDeclaration && LooksLikeSignature(match.Text) && SignatureName(match.Text) == q.Symbol {
			continue
		}
		refs = append(refs, Reference{Match: match, Context: m.contextFor(match)})
		if len(refs) >= m.maxMatches {
			break
		}
	}
	return refs
}

// CallHierarchy infers call edges heuristically: an occurrence of the
// symbol inside some other function's body is a call from that function
// (incoming); call expressions inside the symbol's own body are calls it
// makes (outgoing). Boundaries come from the scope extractor and are
// best-effort.
func (m *Matcher) CallHierarchy(ctx context.Context, q SymbolQuery) Hierarchy {
	var h Hierarchy

	fileMatches := m.searchFile(ctx, q)
	root := findDeclaration(fileMatches, q)
	if root == nil {
		// No declaration in the target file; anchor on the tolerant match
		// so edges still have a root to hang off
		root = selectTolerantMatch(fileMatches, q.LineHint, q.OrderHint, q.Symbol)
	}
	if root == nil {
		return h
	}
	h.Root = root

	for _, match := range m.searchWorkspace(ctx, q) {
		if match.Path == root.Path && match.Line == root.Line {
			continue
		}
		lines, ok := m.fileLines(match.Path)
		if !ok {
			continue
		}
		scope, ok := m.scopes.EnclosingScope(lines, match.Line)
		if !ok || scope.Name == "" || scope.Name == q.Symbol {
			continue
		}
		h.Incoming = append(h.Incoming, CallEdge{
			Symbol:  scope.Name,
			Site:    match,
			Context: m.contextFor(match),
		})
		if len(h.Incoming) >= m.maxMatches {
			break
		}
	}

	h.Outgoing = m.outgoingCalls(*root, q.Symbol)
	return h
}

// outgoingCalls extracts call expressions from the symbol's own body.
func (m *Matcher) outgoingCalls(root Match, symbol string) []CallEdge {
	lines, ok := m.fileLines(root.Path)
	if !ok {
		return nil
	}
	scope, ok := m.scopes.EnclosingScope(lines, root.Line)
	if !ok {
		return nil
	}

	var edges []CallEdge
	seen := make(map[string]bool)
	for i := scope.StartLine + 1; i <= scope.EndLine && i <= len(lines); i++ {
		for _, callee := range callExpressions(lines[i-1]) {
			if callee == symbol || seen[callee] {
				continue
			}
			seen[callee] = true
			site := Match{Path: root.Path, Line: i, Text: lines[i-1]}
			edges = append(edges, CallEdge{
				Symbol:  callee,
				Site:    site,
				Context: m.contextFor(site),
			})
			if len(edges) >= m.maxMatches {
				return edges
			}
		}
	}
	return edges
}

func (m *Matcher) searchFile(ctx context.Context, q SymbolQuery) []Match {
	matches, err := m.searcher.Search(ctx, SymbolPattern(q.Symbol), Scope{File: q.Path}, true)
	if err != nil {
		m.logger.Debug("File search failed", map[string]interface{}{
			"path":  q.Path,
			"error": err.Error(),
		})
		return nil
	}
	return matches
}

func (m *Matcher) searchWorkspace(ctx context.Context, q SymbolQuery) []Match {
	scope := Scope{Root: q.WorkspaceRoot}
	if q.WorkspaceRoot == "" {
		scope = Scope{File: q.Path}
	}
	matches, err := m.searcher.Search(ctx, SymbolPattern(q.Symbol), scope, true)
	if err != nil {
		m.logger.Debug("Workspace search failed", map[string]interface{}{
			"root":  q.WorkspaceRoot,
			"error": err.Error(),
		})
		return nil
	}
	return matches
}

// contextFor renders the lines surrounding a match.
func (m *Matcher) contextFor(match Match) string {
	lines, ok := m.fileLines(match.Path)
	if !ok {
		return match.Text
	}
	start := match.Line - m.contextLines
	if start < 1 {
		start = 1
	}
	end := match.Line + m.contextLines
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n")
}

func (m *Matcher) fileLines(path string) ([]string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return strings.Split(string(data), "\n"), true
}

// selectTolerantMatch picks the match on the nearest candidate line within
// tolerance of the hint, then the orderHint-th occurrence on that line.
// An orderHint beyond the line's occurrence count yields nil (unresolved).
func selectTolerantMatch(matches []Match, lineHint, orderHint int, symbol string) *Match {
	for _, delta := range []int{0, -1, 1, -2, 2} {
		want := lineHint + delta
		for i := range matches {
			if matches[i].Line != want {
				continue
			}
			if orderHint >= len(WordOccurrences(matches[i].Text, symbol)) {
				return nil
			}
			return &matches[i]
		}
	}
	return nil
}

// findDeclaration locates the symbol's own declaration among file matches,
// preferring one within tolerance of the hint.
func findDeclaration(matches []Match, q SymbolQuery) *Match {
	var first *Match
	for i := range matches {
		if !LooksLikeSignature(matches[i].Text) || SignatureName(matches[i].Text) != q.Symbol {
			continue
		}
		if abs(matches[i].Line-q.LineHint) <= LineTolerance {
			return &matches[i]
		}
		if first == nil {
			first = &matches[i]
		}
	}
	return first
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// callExpressions finds identifiers used as calls on a line, skipping
// statement keywords.
func callExpressions(text string) []string {
	var calls []string
	for i := 0; i < len(text); i++ {
		if !isWordChar(text[i]) || (text[i] >= '0' && text[i] <= '9') {
			continue
		}
		start := i
		for i < len(text) && isWordChar(text[i]) {
			i++
		}
		word := text[start:i]
		j := i
		for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
			j++
		}
		if j < len(text) && text[j] == '(' && !controlKeywords[word] {
			// Skip declaration keywords too; `func (` is not a call
			if word != "func" && word != "function" && word != "def" && word != "fn" {
				calls = append(calls, word)
			}
		}
	}
	return calls
}
