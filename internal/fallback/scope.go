package fallback

import (
	"regexp"
	"strings"
)

// ScopeRange is the extent of a function-like block, 1-indexed and
// inclusive on both ends.
type ScopeRange struct {
	StartLine int
	EndLine   int
	Name      string
}

// ScopeExtractor finds the function or method block enclosing a line.
// The default implementation is a brace/indentation heuristic; it can be
// swapped for a real parser per language without touching the operation
// layer.
type ScopeExtractor interface {
	EnclosingScope(lines []string, line int) (ScopeRange, bool)
}

// BraceScopeExtractor approximates scope boundaries by counting braces,
// with an indentation walk for brace-less languages. It is not a parser
// and can misidentify boundaries for unusual formatting.
type BraceScopeExtractor struct{}

// declPattern matches declarations introduced by a function keyword,
// optionally preceded by modifiers. The Go method receiver form
// `func (r *T) Name(` is covered by the optional parenthesized group.
var declPattern = regexp.MustCompile(
	`^\s*(?:(?:pub|public|private|protected|internal|static|async|export|default|override|final|virtual|extern|unsafe)\s+)*` +
		`(?:function|func|fn|def|sub|proc|constructor)\b\s*(?:\([^)]*\)\s*)?\*?([A-Za-z_][A-Za-z0-9_]*)?`)

// typedDeclPattern matches C/Java-style `ReturnType name(` declarations.
var typedDeclPattern = regexp.MustCompile(
	`^\s*[A-Za-z_][A-Za-z0-9_<>,.\[\]*& \t]*[ \t]\*?([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// arrowDeclPattern matches `const name = (args) =>` and
// `name = function (` forms.
var arrowDeclPattern = regexp.MustCompile(
	`^\s*(?:export\s+)?(?:const|let|var)?\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(?:async\s+)?(?:function\b|\()`)

// controlKeywords are statement keywords that start lines which would
// otherwise pass the typed-declaration pattern.
var controlKeywords = map[string]bool{
	"return": true, "if": true, "else": true, "for": true, "while": true,
	"switch": true, "case": true, "catch": true, "throw": true, "new": true,
	"await": true, "yield": true, "delete": true, "go": true, "defer": true,
	"do": true, "try": true, "break": true, "continue": true, "import": true,
	"package": true, "from": true, "raise": true, "print": true, "assert": true,
}

// LooksLikeSignature reports whether a line reads like a function or
// method declaration.
func LooksLikeSignature(text string) bool {
	if declPattern.MatchString(text) {
		return true
	}
	if arrowDeclPattern.MatchString(text) {
		return true
	}
	if m := typedDeclPattern.FindStringSubmatch(text); m != nil {
		first := firstWord(text)
		return !controlKeywords[first]
	}
	return false
}

// SignatureName extracts the declared name from a signature-looking line,
// or "" when none is recognizable.
func SignatureName(text string) string {
	if m := declPattern.FindStringSubmatch(text); m != nil && m[1] != "" {
		return m[1]
	}
	if m := arrowDeclPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := typedDeclPattern.FindStringSubmatch(text); m != nil && !controlKeywords[firstWord(text)] {
		return m[1]
	}
	return ""
}

func firstWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	word := fields[0]
	// Strip trailing punctuation such as `(`
	if idx := strings.IndexAny(word, "(<["); idx > 0 {
		word = word[:idx]
	}
	return word
}

// EnclosingScope walks upward from line looking for the unmatched opening
// brace of the containing block, then forward for its close. Files with no
// brace structure fall back to indentation matching.
func (BraceScopeExtractor) EnclosingScope(lines []string, line int) (ScopeRange, bool) {
	if line < 1 || line > len(lines) {
		return ScopeRange{}, false
	}

	if start, ok := braceScopeStart(lines, line); ok {
		end := braceScopeEnd(lines, start)
		if line <= end {
			return ScopeRange{
				StartLine: start,
				EndLine:   end,
				Name:      SignatureName(lines[start-1]),
			}, true
		}
	}

	return indentScope(lines, line)
}

// braceScopeStart finds the signature line owning the unmatched `{` above
// the target line.
func braceScopeStart(lines []string, line int) (int, bool) {
	balance := 0
	for i := line; i >= 1; i-- {
		text := lines[i-1]
		balance += strings.Count(text, "}") - strings.Count(text, "{")
		if balance < 0 {
			if LooksLikeSignature(text) {
				return i, true
			}
			// Allman-style brace on its own line; the signature sits above
			if strings.TrimSpace(text) == "{" && i > 1 && LooksLikeSignature(lines[i-2]) {
				return i - 1, true
			}
			// Unmatched brace belongs to a non-function block; keep walking
			balance = 0
		}
	}
	return 0, false
}

// braceScopeEnd finds the line closing the block opened at start.
func braceScopeEnd(lines []string, start int) int {
	depth := 0
	opened := false
	for i := start; i <= len(lines); i++ {
		text := lines[i-1]
		depth += strings.Count(text, "{") - strings.Count(text, "}")
		if strings.Contains(text, "{") {
			opened = true
		}
		if opened && depth <= 0 {
			return i
		}
	}
	return len(lines)
}

// indentScope handles brace-less languages: the enclosing def/class is the
// nearest one above at strictly lower indentation; the block runs until
// indentation returns to that level.
func indentScope(lines []string, line int) (ScopeRange, bool) {
	pyDecl := regexp.MustCompile(`^\s*(?:async\s+)?(?:def|class)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	targetIndent := indentOf(lines[line-1])

	for i := line; i >= 1; i-- {
		text := lines[i-1]
		if strings.TrimSpace(text) == "" {
			continue
		}
		m := pyDecl.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if i != line && indentOf(text) >= targetIndent {
			continue
		}
		start := i
		startIndent := indentOf(text)
		end := len(lines)
		for j := start + 1; j <= len(lines); j++ {
			next := lines[j-1]
			if strings.TrimSpace(next) == "" {
				continue
			}
			if indentOf(next) <= startIndent {
				end = j - 1
				break
			}
		}
		return ScopeRange{StartLine: start, EndLine: end, Name: m[1]}, true
	}
	return ScopeRange{}, false
}

func indentOf(text string) int {
	count := 0
	for _, r := range text {
		switch r {
		case ' ':
			count++
		case '\t':
			count += 4
		default:
			return count
		}
	}
	return count
}
