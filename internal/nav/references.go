package nav

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"codenav/internal/errors"
	"codenav/internal/logging"
	"codenav/internal/lsp"
)

// ReferenceOptions shape a references query: declaration inclusion, path
// glob filters, and the requested page.
type ReferenceOptions struct {
	IncludeDeclaration bool
	Include            []string
	Exclude            []string
	Page               int
	PageSize           int
}

// References finds every use site of a symbol, filters by path globs,
// sorts by (path, line), and returns the requested page.
func (o *Operations) References(ctx context.Context, loc SymbolLocator, opts ReferenceOptions) ReferencesResult {
	res := ReferencesResult{
		TraceID:    uuid.NewString(),
		Symbol:     loc.Symbol,
		References: []Reference{},
	}
	log := o.logger.With(map[string]interface{}{
		"traceId": res.TraceID,
		"op":      "references",
		"symbol":  loc.Symbol,
	})

	refs, source, err := o.collectReferences(ctx, loc, opts)
	if err != nil {
		res.Status = StatusError
		res.Err = asNavError(err)
		return res
	}
	res.Source = source

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Location.Path != refs[j].Location.Path {
			return refs[i].Location.Path < refs[j].Location.Path
		}
		return refs[i].Location.Line < refs[j].Location.Line
	})

	total := len(refs)
	refs = o.filterReferences(refs, opts, log)
	res.Filter = FilterInfo{MatchedCount: len(refs), TotalCount: total}

	page, info := o.paginate(len(refs), opts.Page, opts.PageSize)
	res.Page = info
	if page.start < page.end {
		res.References = refs[page.start:page.end]
	}
	if info.TotalPages > 1 {
		// The set exceeds one page; it is paginated rather than truncated,
		// and the caller is told to page through.
		res.Hints = errors.DefaultHints(errors.OutputTooLarge)
	}

	if len(res.References) == 0 {
		res.Status = StatusEmpty
		if res.Filter.MatchedCount == 0 {
			res.Hints = errors.DefaultHints(errors.SymbolUnresolved)
		}
		return res
	}
	res.Status = StatusOK
	return res
}

// collectReferences gathers use sites from the semantic path, degrading to
// the lexical matcher on recoverable failure or an empty protocol answer.
func (o *Operations) collectReferences(ctx context.Context, loc SymbolLocator, opts ReferenceOptions) ([]Reference, Source, error) {
	client, pos, err := o.session(ctx, loc)
	if err == nil {
		wireLocs, reqErr := client.References(ctx, lsp.PathToURI(loc.Path), pos, opts.IncludeDeclaration)
		if reqErr == nil && len(wireLocs) > 0 {
			refs := make([]Reference, 0, len(wireLocs))
			for _, wire := range wireLocs {
				target := fromWireLocation(wire)
				refs = append(refs, Reference{
					Location: target,
					Context:  o.snippet(target.Path, target.Line),
				})
			}
			return refs, SourceSemantic, nil
		}
		err = reqErr
	}
	if err != nil && !errors.Recoverable(errors.CodeOf(err)) {
		return nil, "", err
	}

	lexical := o.matcher.FindReferences(ctx, o.query(loc), opts.IncludeDeclaration)
	refs := make([]Reference, 0, len(lexical))
	for _, ref := range lexical {
		refs = append(refs, Reference{
			Location: Location{Path: ref.Match.Path, Line: ref.Match.Line},
			Context:  ref.Context,
		})
	}
	return refs, SourceLexical, nil
}

// filterReferences applies include and exclude globs against
// workspace-relative slash paths. A malformed pattern is logged and
// ignored rather than failing the whole query.
func (o *Operations) filterReferences(refs []Reference, opts ReferenceOptions, log *logging.Logger) []Reference {
	if len(opts.Include) == 0 && len(opts.Exclude) == 0 {
		return refs
	}

	kept := make([]Reference, 0, len(refs))
	for _, ref := range refs {
		rel := o.relativePath(ref.Location.Path)
		if len(opts.Include) > 0 && !matchAny(opts.Include, rel, log) {
			continue
		}
		if matchAny(opts.Exclude, rel, log) {
			continue
		}
		kept = append(kept, ref)
	}
	return kept
}

func (o *Operations) relativePath(path string) string {
	rel, err := filepath.Rel(o.cfg.WorkspaceRoot, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

func matchAny(patterns []string, path string, log *logging.Logger) bool {
	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, path)
		if err != nil {
			log.Warn("Ignoring malformed path filter", map[string]interface{}{
				"pattern": pattern,
			})
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

type pageSpan struct {
	start, end int
}

// paginate clamps the requested page size to configured bounds and slices
// the 1-indexed page out of total items. A page beyond the last yields an
// empty span, not an error.
func (o *Operations) paginate(total, page, pageSize int) (pageSpan, PageInfo) {
	if pageSize <= 0 {
		pageSize = o.cfg.Paging.DefaultPageSize
	}
	if max := o.cfg.Paging.MaxPageSize; pageSize > max {
		pageSize = max
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}

	totalPages := (total + pageSize - 1) / pageSize
	info := PageInfo{Page: page, PageSize: pageSize, TotalPages: totalPages}

	start := (page - 1) * pageSize
	if start >= total {
		return pageSpan{}, info
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return pageSpan{start: start, end: end}, info
}
