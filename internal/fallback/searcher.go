package fallback

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Match is one pattern hit: path, 1-indexed line number, and the matched
// line's text.
type Match struct {
	Path string
	Line int
	Text string
}

// Scope restricts a search to a single file or a directory tree.
type Scope struct {
	Root string
	File string // non-empty restricts the search to this file
}

// Searcher is the text-search collaborator: given a pattern and a scope,
// return ordered per-line matches.
type Searcher interface {
	Search(ctx context.Context, pattern string, scope Scope, caseSensitive bool) ([]Match, error)
}

// FileSearcher implements Searcher by walking the filesystem and matching
// lines with a compiled regular expression.
type FileSearcher struct {
	// MaxFileSize skips files larger than this many bytes (default 1 MiB)
	MaxFileSize int64
}

// NewFileSearcher creates a searcher with default limits.
func NewFileSearcher() *FileSearcher {
	return &FileSearcher{MaxFileSize: 1 << 20}
}

var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// Search matches the pattern against every line in scope, in file-walk
// order, returning (path, line, text) tuples.
func (s *FileSearcher) Search(ctx context.Context, pattern string, scope Scope, caseSensitive bool) ([]Match, error) {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	if scope.File != "" {
		return s.searchFile(ctx, re, scope.File)
	}

	var matches []Match
	err = filepath.WalkDir(scope.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			name := d.Name()
			if skipDirs[name] || (strings.HasPrefix(name, ".") && path != scope.Root) {
				return filepath.SkipDir
			}
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > s.maxSize() {
			return nil
		}
		fileMatches, err := s.searchFile(ctx, re, path)
		if err != nil {
			return nil //nolint:nilerr
		}
		matches = append(matches, fileMatches...)
		return nil
	})
	if err != nil {
		return matches, err
	}
	return matches, nil
}

func (s *FileSearcher) maxSize() int64 {
	if s.MaxFileSize > 0 {
		return s.MaxFileSize
	}
	return 1 << 20
}

func (s *FileSearcher) searchFile(ctx context.Context, re *regexp.Regexp, path string) ([]Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []Match
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if line == 1 && strings.ContainsRune(text, '\x00') {
			// Binary file
			return nil, nil
		}
		if re.MatchString(text) {
			matches = append(matches, Match{Path: path, Line: line, Text: text})
		}
		if ctx.Err() != nil {
			return matches, ctx.Err()
		}
	}
	return matches, scanner.Err()
}

// SymbolPattern builds a whole-word pattern for an exact symbol name,
// regex-escaped so metacharacters in the name are matched literally.
func SymbolPattern(symbol string) string {
	return `\b` + regexp.QuoteMeta(symbol) + `\b`
}

// WordOccurrences returns the byte columns of every whole-word occurrence
// of symbol in text, left to right.
func WordOccurrences(text, symbol string) []int {
	if symbol == "" {
		return nil
	}
	var cols []int
	for idx := 0; ; {
		pos := strings.Index(text[idx:], symbol)
		if pos < 0 {
			break
		}
		pos += idx
		if wordBounded(text, pos, len(symbol)) {
			cols = append(cols, pos)
		}
		idx = pos + len(symbol)
	}
	return cols
}

func wordBounded(text string, pos, length int) bool {
	if pos > 0 && isWordChar(text[pos-1]) {
		return false
	}
	end := pos + length
	if end < len(text) && isWordChar(text[end]) {
		return false
	}
	return true
}
