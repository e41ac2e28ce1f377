package nav

import (
	"context"

	"github.com/google/uuid"

	"codenav/internal/errors"
	"codenav/internal/logging"
	"codenav/internal/lsp"
)

// CallHierarchy builds the one-level call graph around a symbol: who calls
// it and what it calls. The semantic path resolves the symbol to a
// hierarchy item first; an empty preparation or a recoverable failure
// degrades to the lexical reconstruction.
func (o *Operations) CallHierarchy(ctx context.Context, loc SymbolLocator) CallHierarchyResult {
	res := CallHierarchyResult{
		TraceID:  uuid.NewString(),
		Symbol:   loc.Symbol,
		Incoming: []CallEdge{},
		Outgoing: []CallEdge{},
	}
	log := o.logger.With(map[string]interface{}{
		"traceId": res.TraceID,
		"op":      "callHierarchy",
		"symbol":  loc.Symbol,
	})

	client, pos, err := o.session(ctx, loc)
	if err == nil {
		items, reqErr := client.PrepareCallHierarchy(ctx, lsp.PathToURI(loc.Path), pos)
		if reqErr == nil && len(items) > 0 {
			return o.semanticHierarchy(ctx, client, items[0], loc, res, log)
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

	return o.lexicalHierarchy(ctx, loc, res)
}

// semanticHierarchy expands a prepared hierarchy item into incoming and
// outgoing edges. A failure in one direction degrades that direction to
// empty; when both directions fail with recoverable codes the whole
// operation degrades to the lexical reconstruction, and a non-recoverable
// failure of both surfaces as an error.
func (o *Operations) semanticHierarchy(ctx context.Context, client *lsp.Client, item lsp.CallHierarchyItem, loc SymbolLocator, res CallHierarchyResult, log *logging.Logger) CallHierarchyResult {
	root := Location{
		Path:   lsp.URIToPath(item.URI),
		Line:   item.SelectionRange.Start.Line + 1,
		Column: item.SelectionRange.Start.Character + 1,
	}
	res.Root = &root
	res.Source = SourceSemantic

	incoming, inErr := client.IncomingCalls(ctx, item)
	if inErr != nil {
		log.Warn("Incoming calls request failed", map[string]interface{}{
			"symbol": item.Name,
			"error":  inErr.Error(),
		})
	}
	outgoing, outErr := client.OutgoingCalls(ctx, item)
	if outErr != nil {
		log.Warn("Outgoing calls request failed", map[string]interface{}{
			"symbol": item.Name,
			"error":  outErr.Error(),
		})
	}

	if inErr != nil && outErr != nil {
		if errors.Recoverable(errors.CodeOf(inErr)) && errors.Recoverable(errors.CodeOf(outErr)) {
			log.Debug("Degrading to lexical search", map[string]interface{}{
				"code": string(errors.CodeOf(inErr)),
			})
			res.Root = nil
			res.Source = ""
			return o.lexicalHierarchy(ctx, loc, res)
		}
		failed := inErr
		if errors.Recoverable(errors.CodeOf(failed)) {
			failed = outErr
		}
		res.Status = StatusError
		res.Err = asNavError(failed)
		return res
	}

	for _, call := range incoming {
		site := callSite(call.From.URI, call.FromRanges, call.From.SelectionRange)
		res.Incoming = append(res.Incoming, CallEdge{
			Symbol:  call.From.Name,
			Site:    site,
			Context: o.snippet(site.Path, site.Line),
		})
	}
	for _, call := range outgoing {
		// Outgoing fromRanges are call sites inside the root's own body
		site := callSite(item.URI, call.FromRanges, call.To.SelectionRange)
		res.Outgoing = append(res.Outgoing, CallEdge{
			Symbol:  call.To.Name,
			Site:    site,
			Context: o.snippet(site.Path, site.Line),
		})
	}

	if len(res.Incoming) == 0 && len(res.Outgoing) == 0 {
		res.Status = StatusEmpty
		return res
	}
	res.Status = StatusOK
	return res
}

// callSite picks the first call-site range, falling back to the given
// range when the server omits fromRanges.
func callSite(uri string, fromRanges []lsp.Range, fallbackRange lsp.Range) Location {
	r := fallbackRange
	if len(fromRanges) > 0 {
		r = fromRanges[0]
	}
	return Location{
		Path:   lsp.URIToPath(uri),
		Line:   r.Start.Line + 1,
		Column: r.Start.Character + 1,
	}
}

// lexicalHierarchy reconstructs the graph from plain pattern search.
func (o *Operations) lexicalHierarchy(ctx context.Context, loc SymbolLocator, res CallHierarchyResult) CallHierarchyResult {
	h := o.matcher.CallHierarchy(ctx, o.query(loc))
	res.Source = SourceLexical

	if h.Root == nil {
		res.Status = StatusEmpty
		res.Hints = errors.DefaultHints(errors.SymbolUnresolved)
		return res
	}
	res.Root = &Location{Path: h.Root.Path, Line: h.Root.Line}

	for _, edge := range h.Incoming {
		res.Incoming = append(res.Incoming, CallEdge{
			Symbol:  edge.Symbol,
			Site:    Location{Path: edge.Site.Path, Line: edge.Site.Line},
			Context: edge.Context,
		})
	}
	for _, edge := range h.Outgoing {
		res.Outgoing = append(res.Outgoing, CallEdge{
			Symbol:  edge.Symbol,
			Site:    Location{Path: edge.Site.Path, Line: edge.Site.Line},
			Context: edge.Context,
		})
	}

	if len(res.Incoming) == 0 && len(res.Outgoing) == 0 {
		res.Status = StatusEmpty
		return res
	}
	res.Status = StatusOK
	return res
}
