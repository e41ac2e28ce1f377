package nav

import (
	"codenav/internal/errors"
)

// Status tags an operation outcome: data found, nothing found, or failed.
type Status string

const (
	// StatusOK indicates the operation produced data
	StatusOK Status = "ok"
	// StatusEmpty indicates the operation succeeded but found nothing
	StatusEmpty Status = "empty"
	// StatusError indicates the operation failed with a coded error
	StatusError Status = "error"
)

// Source records which path produced a result.
type Source string

const (
	// SourceSemantic marks results from the analysis-server protocol
	SourceSemantic Source = "semantic"
	// SourceLexical marks best-effort results from plain pattern search
	SourceLexical Source = "lexical"
)

// Location is a 1-indexed file position.
type Location struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// Reference is one use site with surrounding context.
type Reference struct {
	Location Location `json:"location"`
	Context  string   `json:"context,omitempty"`
}

// CallEdge is one call relationship, anchored at the call site with
// enough surrounding text to show the call expression.
type CallEdge struct {
	Symbol  string   `json:"symbol"`
	Site    Location `json:"site"`
	Context string   `json:"context,omitempty"`
}

// PageInfo carries pagination metadata for sliced result sets.
type PageInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// FilterInfo reports how many candidates survived path filtering.
type FilterInfo struct {
	MatchedCount int `json:"matchedCount"`
	TotalCount   int `json:"totalCount"`
}

// DefinitionResult is zero or one location plus a context snippet.
type DefinitionResult struct {
	TraceID  string           `json:"traceId"`
	Status   Status           `json:"status"`
	Source   Source           `json:"source,omitempty"`
	Symbol   string           `json:"symbol"`
	Location *Location        `json:"location,omitempty"`
	Context  string           `json:"context,omitempty"`
	Hints    []errors.Hint    `json:"hints,omitempty"`
	Err      *errors.NavError `json:"error,omitempty"`
}

// ReferencesResult is an ordered, filtered, paged list of use sites.
type ReferencesResult struct {
	TraceID    string           `json:"traceId"`
	Status     Status           `json:"status"`
	Source     Source           `json:"source,omitempty"`
	Symbol     string           `json:"symbol"`
	References []Reference      `json:"references"`
	Page       PageInfo         `json:"page"`
	Filter     FilterInfo       `json:"filter"`
	Hints      []errors.Hint    `json:"hints,omitempty"`
	Err        *errors.NavError `json:"error,omitempty"`
}

// CallHierarchyResult is a root symbol node plus incoming and outgoing
// call edges.
type CallHierarchyResult struct {
	TraceID  string           `json:"traceId"`
	Status   Status           `json:"status"`
	Source   Source           `json:"source,omitempty"`
	Symbol   string           `json:"symbol"`
	Root     *Location        `json:"root,omitempty"`
	Incoming []CallEdge       `json:"incoming"`
	Outgoing []CallEdge       `json:"outgoing"`
	Hints    []errors.Hint    `json:"hints,omitempty"`
	Err      *errors.NavError `json:"error,omitempty"`
}

// asNavError coerces any error into a coded NavError for result embedding.
func asNavError(err error) *errors.NavError {
	if err == nil {
		return nil
	}
	if navErr, ok := err.(*errors.NavError); ok {
		return navErr
	}
	return errors.New(errors.InternalError, err.Error(), err)
}
