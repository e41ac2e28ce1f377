package nav

import (
	"strings"

	"codenav/internal/fallback"
	"codenav/internal/lsp"
)

// LineTolerance is how far a caller's line hint may drift from the
// symbol's actual line and still resolve. Shared with the lexical path so
// both answer sources apply the same tolerance.
const LineTolerance = fallback.LineTolerance

// SymbolLocator is the caller's approximate identification of a symbol:
// target file, exact name, a best-guess 1-indexed line, and the 0-indexed
// occurrence on that line.
type SymbolLocator struct {
	Path      string `json:"path"`
	Symbol    string `json:"symbol"`
	LineHint  int    `json:"lineHint"`
	OrderHint int    `json:"orderHint"`
}

// resolvePosition locates the symbol in the document snapshot, tolerating
// up to ±2 lines of drift from the hint. Candidate lines are tried nearest
// first; on the resolved line, orderHint selects the Nth left-to-right
// occurrence. An orderHint beyond the line's occurrence count is
// unresolved.
func resolvePosition(text string, loc SymbolLocator) (lsp.Position, bool) {
	lines := strings.Split(text, "\n")

	for _, delta := range []int{0, -1, 1, -2, 2} {
		lineNo := loc.LineHint + delta
		if lineNo < 1 || lineNo > len(lines) {
			continue
		}
		cols := fallback.WordOccurrences(lines[lineNo-1], loc.Symbol)
		if len(cols) == 0 {
			continue
		}
		if loc.OrderHint >= len(cols) {
			return lsp.Position{}, false
		}
		return lsp.Position{Line: lineNo - 1, Character: cols[loc.OrderHint]}, true
	}
	return lsp.Position{}, false
}
