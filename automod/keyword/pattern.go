package keyword

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Words shorter than this are never matched; single characters cause far too many false positives.
const MinWordRunes = 2

const DefaultPatternCacheSize = 2048

// Compiles a literal word (or phrase) into a case-insensitive, whole-word pattern. Word boundaries are unicode-aware: letters, digits, and underscore on either side prevent a match, so "class" does not match "ass".
func CompileWord(word string) (*regexp.Regexp, error) {
	word = strings.TrimSpace(word)
	if utf8.RuneCountInString(word) < MinWordRunes {
		return nil, fmt.Errorf("word too short: %q", word)
	}
	return regexp.Compile(`(?i)(?:^|[^\pL\pN_])` + regexp.QuoteMeta(word) + `(?:$|[^\pL\pN_])`)
}

type patternEntry struct {
	re  *regexp.Regexp
	err error
}

// Bounded cache of compiled patterns, shared across tenants. Compile failures are cached as well, so an invalid pattern is only reported once per eviction.
type PatternCache struct {
	words *lru.Cache[string, patternEntry]
	exprs *lru.Cache[string, patternEntry]
}

func NewPatternCache(size int) *PatternCache {
	if size <= 0 {
		size = DefaultPatternCacheSize
	}
	// only errors on non-positive size
	words, _ := lru.New[string, patternEntry](size)
	exprs, _ := lru.New[string, patternEntry](size)
	return &PatternCache{
		words: words,
		exprs: exprs,
	}
}

// Returns the whole-word pattern for a literal word, compiling it on first use.
func (pc *PatternCache) Word(word string) (*regexp.Regexp, error) {
	key := strings.ToLower(strings.TrimSpace(word))
	if e, ok := pc.words.Get(key); ok {
		return e.re, e.err
	}
	re, err := CompileWord(key)
	pc.words.Add(key, patternEntry{re: re, err: err})
	return re, err
}

// Returns a compiled regular expression, compiling it on first use.
func (pc *PatternCache) Expr(expr string) (*regexp.Regexp, error) {
	if e, ok := pc.exprs.Get(expr); ok {
		return e.re, e.err
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		err = fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	pc.exprs.Add(expr, patternEntry{re: re, err: err})
	return re, err
}

func (pc *PatternCache) Len() int {
	return pc.words.Len() + pc.exprs.Len()
}

func (pc *PatternCache) Purge() {
	pc.words.Purge()
	pc.exprs.Purge()
}
