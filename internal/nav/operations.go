package nav

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"

	"codenav/internal/config"
	"codenav/internal/errors"
	"codenav/internal/fallback"
	"codenav/internal/logging"
	"codenav/internal/lsp"
)

// Operations runs the navigation operations, preferring the semantic
// protocol path and degrading to the lexical matcher when the server path
// is unavailable or inconclusive.
type Operations struct {
	cfg     *config.Config
	manager *lsp.Manager
	matcher *fallback.Matcher
	logger  *logging.Logger
}

// NewOperations wires the operation layer over its two answer sources.
func NewOperations(cfg *config.Config, manager *lsp.Manager, matcher *fallback.Matcher, logger *logging.Logger) *Operations {
	return &Operations{
		cfg:     cfg,
		manager: manager,
		matcher: matcher,
		logger:  logger.With(map[string]interface{}{"component": "nav"}),
	}
}

// Shutdown tears down every cached protocol client.
func (o *Operations) Shutdown() {
	if o.manager != nil {
		o.manager.ShutdownAll()
	}
}

// session acquires a Ready client for the locator's file, opens the
// document, and resolves the locator to a wire position against the open
// snapshot. Recoverable errors tell the caller to degrade to the lexical
// path.
func (o *Operations) session(ctx context.Context, loc SymbolLocator) (*lsp.Client, lsp.Position, error) {
	if o.manager == nil || !o.cfg.Lsp.Enabled {
		return nil, lsp.Position{}, errors.New(errors.ServerUnavailable,
			"protocol clients are disabled", nil)
	}

	client, err := o.manager.GetOrCreate(ctx, o.cfg.WorkspaceRoot, loc.Path)
	if err != nil {
		return nil, lsp.Position{}, err
	}

	if err := client.Documents().Open(loc.Path); err != nil {
		return nil, lsp.Position{}, err
	}

	text, ok := client.Documents().Text(loc.Path)
	if !ok {
		return nil, lsp.Position{}, errors.New(errors.DocumentNotOpen,
			"document snapshot missing after open", nil)
	}

	pos, ok := resolvePosition(text, loc)
	if !ok {
		return nil, lsp.Position{}, errors.New(errors.SymbolUnresolved,
			"symbol not found near the hinted line", nil)
	}
	return client, pos, nil
}

// Definition resolves a symbol's definition site. The semantic answer wins
// when the protocol path yields one; an empty or recoverable-failed
// protocol answer degrades to the lexical matcher.
func (o *Operations) Definition(ctx context.Context, loc SymbolLocator) DefinitionResult {
	res := DefinitionResult{TraceID: uuid.NewString(), Symbol: loc.Symbol}
	log := o.logger.With(map[string]interface{}{
		"traceId": res.TraceID,
		"op":      "definition",
		"symbol":  loc.Symbol,
	})

	client, pos, err := o.session(ctx, loc)
	if err == nil {
		locs, reqErr := client.Definition(ctx, lsp.PathToURI(loc.Path), pos)
		if reqErr == nil && len(locs) > 0 {
			target := fromWireLocation(locs[0])
			res.Status = StatusOK
			res.Source = SourceSemantic
			res.Location = &target
			res.Context = o.snippet(target.Path, target.Line)
			return res
		}
		err = reqErr
	}
	if err != nil && !errors.Recoverable(errors.CodeOf(err)) {
		res.Status = StatusError
		res.Err = asNavError(err)
		return res
	}
	if err != nil {
		log.Debug("Degrading to lexical search", map[string]interface{}{
			"code": string(errors.CodeOf(err)),
		})
	}

	match, context := o.matcher.FindDefinition(ctx, o.query(loc))
	if match == nil {
		res.Status = StatusEmpty
		res.Source = SourceLexical
		res.Hints = errors.DefaultHints(errors.SymbolUnresolved)
		return res
	}

	target := Location{Path: match.Path, Line: match.Line}
	res.Status = StatusOK
	res.Source = SourceLexical
	res.Location = &target
	res.Context = context
	return res
}

// query converts a locator into the lexical matcher's query shape.
func (o *Operations) query(loc SymbolLocator) fallback.SymbolQuery {
	return fallback.SymbolQuery{
		WorkspaceRoot: o.cfg.WorkspaceRoot,
		Path:          loc.Path,
		Symbol:        loc.Symbol,
		LineHint:      loc.LineHint,
		OrderHint:     loc.OrderHint,
	}
}

// fromWireLocation converts a zero-indexed wire location to the 1-indexed
// result form.
func fromWireLocation(loc lsp.Location) Location {
	return Location{
		Path:   lsp.URIToPath(loc.URI),
		Line:   loc.Range.Start.Line + 1,
		Column: loc.Range.Start.Character + 1,
	}
}

// snippet renders the configured number of context lines around a
// 1-indexed line of a file, or "" when the file is unreadable.
func (o *Operations) snippet(path string, line int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	if line < 1 || line > len(lines) {
		return ""
	}

	span := o.cfg.Fallback.ContextLines
	start := line - span
	if start < 1 {
		start = 1
	}
	end := line + span
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n")
}
