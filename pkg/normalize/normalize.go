// Package normalize canonicalizes song and artist text for comparison: case, width, script,
// whitespace, and bracketed version/feature markers. Every operation is deterministic, total,
// and idempotent, and results are memoized behind a bounded, concurrency-safe cache.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// DefaultCacheSize bounds the memoization cache when the caller doesn't size it explicitly.
const DefaultCacheSize = 4096

// CJKConverter performs traditional-to-simplified Chinese conversion. Swappable so the
// normalizer stays testable without a dictionary-backed implementation on the hot path.
type CJKConverter interface {
	ToSimplified(text string) (string, error)
}

// noopConverter is used when no CJKConverter is configured; it passes text through unchanged.
type noopConverter struct{}

func (noopConverter) ToSimplified(text string) (string, error) { return text, nil }

var (
	featRegex        = regexp.MustCompile(`(?i)\bfeat\b\.?`)
	remasteredRegex  = regexp.MustCompile(`(?i)\bremaster(ed)?\b`)
	trailingYearRegex = regexp.MustCompile(`\(\s*(19|20)\d{2}\s*\)\s*$`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)

	// defaultPatterns are applied in order, data rather than code per the normalization
	// contract's "patterns are data, not code" rule; callers may supply their own set.
	defaultPatterns = []*regexp.Regexp{featRegex, remasteredRegex, trailingYearRegex}

	bracketPairs = []struct {
		open, close rune
	}{
		{'(', ')'},
		{'[', ']'},
		{'（', '）'},
		{'【', '】'},
	}
)

// Options configures a Normalizer's pattern set and cache size. Zero value is valid and uses
// the built-in defaults.
type Options struct {
	Patterns  []*regexp.Regexp
	CacheSize int
	CJK       CJKConverter
}

// optsHash is a cache key discriminant for a given Options value, computed once at
// construction so every call to Normalize doesn't recompute it.
func (o Options) hash() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(o.Patterns)))
	for _, p := range o.Patterns {
		b.WriteByte('|')
		b.WriteString(p.String())
	}
	return b.String()
}

// Normalizer canonicalizes text for fuzzy comparison. It owns its memoization cache, which
// must be constructed once and handed to every worker that normalizes text concurrently.
type Normalizer struct {
	patterns  []*regexp.Regexp
	cjk       CJKConverter
	optsHash  string
	cache     *lru.Cache[string, string]
	cacheOn   bool
}

// New constructs a Normalizer. cacheEnabled mirrors the CACHE_ENABLED config flag; when false,
// every call recomputes normalization (useful for tests and for diagnosing cache-related bugs).
func New(opts Options, cacheEnabled bool) *Normalizer {
	patterns := opts.Patterns
	if patterns == nil {
		patterns = defaultPatterns
	}
	cjk := opts.CJK
	if cjk == nil {
		cjk = noopConverter{}
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}

	cache, _ := lru.New[string, string](size)

	return &Normalizer{
		patterns: patterns,
		cjk:      cjk,
		optsHash: opts.hash(),
		cache:    cache,
		cacheOn:  cacheEnabled,
	}
}

// Normalize canonicalizes text: lowercase, full-width to half-width, traditional-to-simplified
// CJK conversion when CJK is present, configured pattern strip, whitespace collapse. Bracketed
// groups are preserved verbatim as first-class substrings; see SplitMainAndBracketed.
func (n *Normalizer) Normalize(text string) string {
	key := text + "\x00" + n.optsHash
	if n.cacheOn {
		if cached, ok := n.cache.Get(key); ok {
			return cached
		}
	}

	result := n.normalizeUncached(text)

	if n.cacheOn {
		n.cache.Add(key, result)
	}
	return result
}

func (n *Normalizer) normalizeUncached(text string) string {
	text = strings.ToLower(text)
	text = width.Fold.String(text)
	text = norm.NFKC.String(text)

	if containsCJK(text) {
		if simplified, err := n.cjk.ToSimplified(text); err == nil {
			text = simplified
		}
	}

	for _, p := range n.patterns {
		text = p.ReplaceAllString(text, "")
	}

	text = whitespaceRegex.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	return text
}

// SplitMainAndBracketed returns the normalized main-part text with all bracketed groups
// removed (whitespace re-collapsed) alongside the bracketed groups themselves, in order.
// normText is expected to already have passed through Normalize.
func SplitMainAndBracketed(normText string) (mainText string, brackets []string) {
	openToClose := make(map[rune]rune, len(bracketPairs))
	closers := make(map[rune]bool, len(bracketPairs))
	for _, pair := range bracketPairs {
		openToClose[pair.open] = pair.close
		closers[pair.close] = true
	}

	var mainBuilder strings.Builder
	runes := []rune(normText)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		closeRune, isOpen := openToClose[r]
		if !isOpen {
			mainBuilder.WriteRune(r)
			continue
		}

		depth := 1
		j := i + 1
		var groupBuilder strings.Builder
		groupBuilder.WriteRune(r)
		for ; j < len(runes) && depth > 0; j++ {
			groupBuilder.WriteRune(runes[j])
			switch runes[j] {
			case r:
				if runes[j] == closeRune {
					depth--
				} else {
					depth++
				}
			case closeRune:
				depth--
			}
		}

		if depth == 0 {
			brackets = append(brackets, groupBuilder.String())
			i = j - 1
		} else {
			// Unterminated bracket: treat the opening rune as ordinary text.
			mainBuilder.WriteRune(r)
		}
	}

	mainText = whitespaceRegex.ReplaceAllString(mainBuilder.String(), " ")
	mainText = strings.TrimSpace(mainText)
	return mainText, brackets
}

// containsCJK reports whether text contains any codepoint from the CJK unified ideograph or
// compatibility ideograph ranges.
func containsCJK(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// ContainsCJK reports whether text contains any CJK-script codepoint; exported so the Matcher
// can decide whether the pinyin fallback applies.
func ContainsCJK(text string) bool {
	return containsCJK(text)
}
