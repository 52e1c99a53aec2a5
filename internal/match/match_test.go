package match

import (
	"testing"

	"playlistimport/internal/core"
	"playlistimport/pkg/normalize"
)

func defaultConfig() core.MatchingConfig {
	return core.MatchingConfig{
		TitleWeight:            0.7,
		ArtistWeight:           0.3,
		BracketWeight:          0.3,
		KeywordBonus:           5.0,
		MatchThreshold:         75.0,
		LowConfidenceThreshold: 60.0,
		ArtistExactMatchFloor:  80.0,
	}
}

func newMatcher() *Matcher {
	return New(normalize.New(normalize.Options{}, true), defaultConfig())
}

func TestBestMatch_SimpleHappyPath(t *testing.T) {
	m := newMatcher()
	song := core.ParsedSong{Title: "Bohemian Rhapsody", Artists: []string{"Queen"}}
	candidates := []core.Candidate{
		{ID: "1", Name: "Bohemian Rhapsody", Artists: []string{"Queen"}, URI: "spotify:track:1"},
	}

	got := m.BestMatch(song, candidates)
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.FinalScore < defaultConfig().MatchThreshold {
		t.Errorf("FinalScore = %.2f, want >= %.2f", got.FinalScore, defaultConfig().MatchThreshold)
	}
	if got.IsLowConfidence {
		t.Error("expected IsLowConfidence = false")
	}
}

func TestBestMatch_MultiArtistOrderInsensitive(t *testing.T) {
	m := newMatcher()
	song := core.ParsedSong{Title: "See You Again", Artists: []string{"Wiz Khalifa", "Charlie Puth"}}
	candidates := []core.Candidate{
		{ID: "1", Name: "See You Again", Artists: []string{"Charlie Puth", "Wiz Khalifa"}, URI: "spotify:track:1"},
	}

	got := m.BestMatch(song, candidates)
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.FinalScore < defaultConfig().MatchThreshold {
		t.Errorf("FinalScore = %.2f, want MATCHED-tier", got.FinalScore)
	}
}

func TestBestMatch_BracketedVersionMarkerLiftsCorrectCandidate(t *testing.T) {
	m := newMatcher()
	song := core.ParsedSong{Title: "Shape of You (Acoustic)", Artists: []string{"Ed Sheeran"}}
	candidates := []core.Candidate{
		{ID: "A", Name: "Shape of You", Artists: []string{"Ed Sheeran"}, URI: "spotify:track:A"},
		{ID: "B", Name: "Shape of You (Acoustic Version)", Artists: []string{"Ed Sheeran"}, URI: "spotify:track:B"},
	}

	got := m.BestMatch(song, candidates)
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.CatalogID != "B" {
		t.Errorf("expected candidate B to win, got %s (score %.2f)", got.CatalogID, got.FinalScore)
	}
}

func TestBestMatch_NoResultsReturnsNil(t *testing.T) {
	m := newMatcher()
	song := core.ParsedSong{Title: "Totally Fictional Song XYZ123", Artists: []string{"Nobody"}}

	got := m.BestMatch(song, nil)
	if got != nil {
		t.Errorf("expected nil match, got %+v", got)
	}
}

func TestBestMatch_ScoreWithinRange(t *testing.T) {
	m := newMatcher()
	song := core.ParsedSong{Title: "Random Song", Artists: []string{"Random Artist"}}
	candidates := []core.Candidate{
		{ID: "1", Name: "Completely Different Track", Artists: []string{"Another Band"}},
	}

	got := m.BestMatch(song, candidates)
	if got != nil && (got.FinalScore < 0 || got.FinalScore > 100) {
		t.Errorf("FinalScore %.2f out of [0, 100]", got.FinalScore)
	}
}

func TestBestMatch_TieBreaksByShorterMainTitleThenPosition(t *testing.T) {
	// With the title weight at zero every candidate scores only on its (identical) artist, so
	// all three tie exactly and the tie-break rules alone decide the winner.
	cfg := defaultConfig()
	cfg.TitleWeight = 0
	cfg.ArtistWeight = 1
	m := New(normalize.New(normalize.Options{}, true), cfg)
	song := core.ParsedSong{Title: "Test Song", Artists: []string{"Artist"}}
	candidates := []core.Candidate{
		{ID: "long", Name: "Test Song Two", Artists: []string{"Artist"}},
		{ID: "short", Name: "Test Song", Artists: []string{"Artist"}},
		{ID: "short-later", Name: "Test Song", Artists: []string{"Artist"}},
	}

	got := m.BestMatch(song, candidates)
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.CatalogID != "short" {
		t.Errorf("expected shorter candidate to win on tie, got %s", got.CatalogID)
	}
}

func TestThresholdMonotonicity(t *testing.T) {
	cfg := defaultConfig()
	song := core.ParsedSong{Title: "Partial Match Title", Artists: []string{"Some Artist"}}
	candidates := []core.Candidate{
		{ID: "1", Name: "Partial Match Titel", Artists: []string{"Some Artists"}},
	}

	lowThreshold := cfg
	lowThreshold.MatchThreshold = 1
	highThreshold := cfg
	highThreshold.MatchThreshold = 99.9

	n := normalize.New(normalize.Options{}, true)
	mLow := New(n, lowThreshold)
	mHigh := New(n, highThreshold)

	lowResult := mLow.BestMatch(song, candidates)
	highResult := mHigh.BestMatch(song, candidates)

	lowMatched := lowResult != nil && !lowResult.IsLowConfidence
	highMatched := highResult != nil && !highResult.IsLowConfidence

	if highMatched && !lowMatched {
		t.Error("raising MATCH_THRESHOLD must never increase the count of MATCHED results")
	}
}
