// Package match scores and ranks catalog candidates against a parsed song, combining a
// word-order-insensitive title similarity with an artist similarity (with CJK pinyin fallback)
// and a bracket-content adjustment, per the two-stage scoring design.
package match

import (
	"sort"
	"strings"

	"github.com/mozillazg/go-pinyin"

	"playlistimport/internal/core"
	"playlistimport/pkg/normalize"
)

// lengthPruneRatio bounds the early-pruning check: candidates whose normalized main-title
// length differs from the input's by more than this fraction are discarded before scoring.
const lengthPruneRatio = 0.5

// mutuallyExclusiveMarkers lists version-marker pairs that warrant a small penalty when one
// side of a match has one and the other has its opposite, per the bracket-adjustment design.
var mutuallyExclusiveMarkers = [][2]string{
	{"acoustic", "studio"},
	{"live", "studio"},
	{"remix", "original"},
}

const (
	mutuallyExclusivePenalty = 5.0
)

// Matcher scores candidate tracks against a parsed song and selects the best one, per the
// configured weights and thresholds. It is a pure function of its arguments plus config.
type Matcher struct {
	normalizer *normalize.Normalizer
	config     core.MatchingConfig
	pinyinArgs pinyin.Args
}

// New constructs a Matcher. normalizer must be shared across workers (it owns the
// normalization cache); cfg carries the scoring weights and thresholds.
func New(normalizer *normalize.Normalizer, cfg core.MatchingConfig) *Matcher {
	return &Matcher{
		normalizer: normalizer,
		config:     cfg,
		pinyinArgs: pinyin.NewArgs(),
	}
}

// BestMatch scores every candidate against song and returns the best one, or nil if no
// candidate clears the low-confidence threshold.
func (m *Matcher) BestMatch(song core.ParsedSong, candidates []core.Candidate) *core.MatchedSong {
	inputTitleNorm := m.normalizer.Normalize(song.Title)
	inputMain, _ := normalize.SplitMainAndBracketed(inputTitleNorm)
	inputArtistsNorm := normalizeAll(m.normalizer, song.Artists)

	type scored struct {
		candidate core.Candidate
		score     float64
		mainLen   int
		index     int
	}

	var results []scored
	for i, c := range candidates {
		candNameNorm := m.normalizer.Normalize(c.Name)
		candMain, candBrackets := normalize.SplitMainAndBracketed(candNameNorm)

		if !withinLengthTolerance(inputMain, candMain) {
			continue
		}

		_, inputBrackets := normalize.SplitMainAndBracketed(inputTitleNorm)

		score := m.score(inputMain, inputArtistsNorm, candMain, candBrackets, inputBrackets, c.Artists)

		results = append(results, scored{candidate: c, score: score, mainLen: len([]rune(candMain)), index: i})
	}

	if len(results) == 0 {
		return nil
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		if results[i].mainLen != results[j].mainLen {
			return results[i].mainLen < results[j].mainLen
		}
		return results[i].index < results[j].index
	})

	best := results[0]
	finalScore := clamp(best.score, 0, 100)

	if finalScore >= m.config.MatchThreshold {
		return m.toMatchedSong(song, best.candidate, best.score, false)
	}
	if finalScore >= m.config.LowConfidenceThreshold {
		return m.toMatchedSong(song, best.candidate, best.score, true)
	}
	return nil
}

func (m *Matcher) toMatchedSong(song core.ParsedSong, c core.Candidate, score float64, lowConfidence bool) *core.MatchedSong {
	return &core.MatchedSong{
		ParsedSong:      song,
		CatalogID:       c.ID,
		Name:            c.Name,
		Artists:         c.Artists,
		URI:             c.URI,
		AlbumName:       c.AlbumName,
		DurationMs:      c.DurationMs,
		FinalScore:      clamp(score, 0, 100),
		IsLowConfidence: lowConfidence,
	}
}

// score computes one candidate's stage-1 score plus its bracket adjustment against the input
// song's normalized parts. The sum is left unclamped so a bracket bonus still ranks a candidate
// above one whose stage-1 score is already 100; the reported final_score is clamped to [0, 100].
func (m *Matcher) score(inputMain string, inputArtistsNorm []string, candMain string, candBrackets, inputBrackets []string, candArtists []string) float64 {
	titleScore := tokenSetSimilarity(inputMain, candMain) * 100
	artistScore := m.artistScore(inputArtistsNorm, candArtists)

	stage1 := m.config.TitleWeight*titleScore + m.config.ArtistWeight*artistScore

	bracketDelta := m.bracketDelta(inputBrackets, candBrackets)

	return stage1 + bracketDelta
}

// artistScore averages, across every input artist, its best similarity against any candidate
// artist, applying the exact-match floor and the pinyin fallback for CJK names.
func (m *Matcher) artistScore(inputArtistsNorm []string, candidateArtists []string) float64 {
	if len(inputArtistsNorm) == 0 {
		return 0
	}

	candArtistsNorm := normalizeAll(m.normalizer, candidateArtists)
	candArtistSet := make(map[string]bool, len(candArtistsNorm))
	for _, a := range candArtistsNorm {
		candArtistSet[a] = true
	}

	var total float64
	for _, inputArtist := range inputArtistsNorm {
		best := 0.0
		exact := candArtistSet[inputArtist]

		for _, candArtist := range candArtistsNorm {
			sim := tokenSetSimilarity(inputArtist, candArtist) * 100

			if sim < m.config.ArtistExactMatchFloor && (normalize.ContainsCJK(inputArtist) || normalize.ContainsCJK(candArtist)) {
				pinyinSim := m.pinyinSimilarity(inputArtist, candArtist) * 100
				if pinyinSim > sim {
					sim = pinyinSim
				}
			}

			if sim > best {
				best = sim
			}
		}

		if exact && best < m.config.ArtistExactMatchFloor {
			best = m.config.ArtistExactMatchFloor
		}

		total += best
	}

	return total / float64(len(inputArtistsNorm))
}

// pinyinSimilarity transliterates CJK text to pinyin and compares the results, used as a
// fallback when direct artist-name similarity is low and either side contains CJK script.
func (m *Matcher) pinyinSimilarity(a, b string) float64 {
	return tokenSetSimilarity(m.toPinyin(a), m.toPinyin(b))
}

func (m *Matcher) toPinyin(text string) string {
	if !normalize.ContainsCJK(text) {
		return text
	}
	result := pinyin.Pinyin(text, m.pinyinArgs)
	var tokens []string
	for _, group := range result {
		if len(group) > 0 {
			tokens = append(tokens, group[0])
		}
	}
	return strings.Join(tokens, " ")
}

// bracketDelta compares the two sides' bracket groups and returns a value bounded by
// ±BRACKET_WEIGHT*100, per the bracket-content adjustment design. No penalty is applied for an
// unmatched version marker unless the markers are mutually exclusive.
func (m *Matcher) bracketDelta(inputBrackets, candBrackets []string) float64 {
	bound := m.config.BracketWeight * 100
	var delta float64

	inputKeywords := extractKeywords(inputBrackets)
	candKeywords := extractKeywords(candBrackets)

	for kw := range inputKeywords {
		if candKeywords[kw] {
			delta += m.config.KeywordBonus
		}
	}

	inputFeat, inputHasFeat := extractFeatArtist(inputBrackets)
	candFeat, candHasFeat := extractFeatArtist(candBrackets)
	if inputHasFeat && candHasFeat && inputFeat == candFeat {
		delta += m.config.KeywordBonus
	}

	for _, pair := range mutuallyExclusiveMarkers {
		if (inputKeywords[pair[0]] && candKeywords[pair[1]]) || (inputKeywords[pair[1]] && candKeywords[pair[0]]) {
			delta -= mutuallyExclusivePenalty
		}
	}

	return clamp(delta, -bound, bound)
}

var knownKeywords = []string{"live", "remix", "acoustic", "studio", "instrumental", "explicit", "clean", "demo", "original"}

func extractKeywords(brackets []string) map[string]bool {
	found := make(map[string]bool)
	for _, b := range brackets {
		lower := strings.ToLower(b)
		for _, kw := range knownKeywords {
			if strings.Contains(lower, kw) {
				found[kw] = true
			}
		}
	}
	return found
}

func extractFeatArtist(brackets []string) (string, bool) {
	for _, b := range brackets {
		lower := strings.ToLower(b)
		for _, marker := range []string{"feat.", "feat ", "ft.", "ft ", "featuring"} {
			if idx := strings.Index(lower, marker); idx >= 0 {
				rest := strings.TrimSpace(lower[idx+len(marker):])
				rest = strings.Trim(rest, "()[]（）【】")
				return rest, true
			}
		}
	}
	return "", false
}

// withinLengthTolerance implements the early-pruning rule: discard candidates whose normalized
// main-title length differs from the input's by more than 50%.
func withinLengthTolerance(inputMain, candMain string) bool {
	inputLen := len([]rune(inputMain))
	candLen := len([]rune(candMain))
	if inputLen == 0 {
		return true
	}
	diff := inputLen - candLen
	if diff < 0 {
		diff = -diff
	}
	return float64(diff)/float64(inputLen) <= lengthPruneRatio
}

func normalizeAll(n *normalize.Normalizer, items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = n.Normalize(item)
	}
	return out
}

// tokenSetSimilarity compares two strings as multisets of whitespace-delimited tokens, so word
// order doesn't affect the result, via a longest-common-subsequence ratio over the sorted,
// rejoined token strings.
func tokenSetSimilarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	aSet := sortedTokenString(a)
	bSet := sortedTokenString(b)

	if aSet == bSet {
		return 1
	}

	maxLen := len(aSet)
	if len(bSet) > maxLen {
		maxLen = len(bSet)
	}
	if maxLen == 0 {
		return 0
	}

	return float64(longestCommonSubsequence(aSet, bSet)) / float64(maxLen)
}

func sortedTokenString(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func longestCommonSubsequence(s1, s2 string) int {
	m, n := len(s1), len(s2)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if s1[i-1] == s2[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] > dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	return dp[m][n]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
