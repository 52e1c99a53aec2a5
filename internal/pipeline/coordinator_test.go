package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"playlistimport/internal/core"
	"playlistimport/internal/match"
	"playlistimport/pkg/normalize"
)

type fakeSearcher struct {
	byTitle map[string][]core.Candidate
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, song core.ParsedSong) ([]core.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byTitle[song.Title], nil
}

func newTestMatcher() *match.Matcher {
	cfg := core.MatchingConfig{
		TitleWeight: 0.7, ArtistWeight: 0.3, BracketWeight: 0.3,
		KeywordBonus: 5, MatchThreshold: 75, LowConfidenceThreshold: 60, ArtistExactMatchFloor: 80,
	}
	return match.New(normalize.New(normalize.Options{}, true), cfg)
}

func TestCoordinator_ProducesOneResultPerSong(t *testing.T) {
	searcher := &fakeSearcher{byTitle: map[string][]core.Candidate{
		"Bohemian Rhapsody": {{ID: "1", Name: "Bohemian Rhapsody", Artists: []string{"Queen"}}},
	}}
	co := New(searcher, newTestMatcher(), 4, 0, time.Second, zap.NewNop())

	songs := []core.ParsedSong{
		{Title: "Bohemian Rhapsody", Artists: []string{"Queen"}, SequenceNumber: 0, LineNumber: 1},
		{Title: "Nonexistent Track", Artists: []string{"Nobody"}, SequenceNumber: 1, LineNumber: 2},
	}

	results := co.Run(context.Background(), songs)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestCoordinator_MatchedAndNotFoundStatuses(t *testing.T) {
	searcher := &fakeSearcher{byTitle: map[string][]core.Candidate{
		"Bohemian Rhapsody": {{ID: "1", Name: "Bohemian Rhapsody", Artists: []string{"Queen"}}},
	}}
	co := New(searcher, newTestMatcher(), 2, 0, time.Second, zap.NewNop())

	songs := []core.ParsedSong{
		{Title: "Bohemian Rhapsody", Artists: []string{"Queen"}, LineNumber: 1},
		{Title: "Totally Fictional Song XYZ123", Artists: []string{"Nobody"}, LineNumber: 2},
	}

	results := co.Run(context.Background(), songs)
	byLine := map[int]core.MatchResult{}
	for _, r := range results {
		byLine[r.LineNumber] = r
	}

	if byLine[1].Status != core.StatusMatched {
		t.Errorf("line 1 status = %s, want MATCHED", byLine[1].Status)
	}
	if byLine[2].Status != core.StatusNotFound {
		t.Errorf("line 2 status = %s, want NOT_FOUND", byLine[2].Status)
	}
}

func TestCoordinator_SearchErrorBecomesAPIError(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("boom")}
	co := New(searcher, newTestMatcher(), 2, 0, time.Second, zap.NewNop())

	results := co.Run(context.Background(), []core.ParsedSong{
		{Title: "Anything", LineNumber: 1},
	})

	if len(results) != 1 || results[0].Status != core.StatusAPIError {
		t.Fatalf("expected single API_ERROR result, got %+v", results)
	}
}

func TestCoordinator_RespectsConcurrencyCap(t *testing.T) {
	const limit = 3
	searcher := &trackingSearcher{limit: limit, t: t}
	co := New(searcher, newTestMatcher(), limit, 0, 2*time.Second, zap.NewNop())

	songs := make([]core.ParsedSong, 20)
	for i := range songs {
		songs[i] = core.ParsedSong{Title: "Song", LineNumber: i + 1}
	}

	co.Run(context.Background(), songs)
}

type trackingSearcher struct {
	limit int
	t     *testing.T

	mu       sync.Mutex
	inFlight int
	peak     int
}

func (s *trackingSearcher) Search(_ context.Context, _ core.ParsedSong) ([]core.Candidate, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	if s.peak > s.limit {
		s.t.Errorf("observed %d in-flight searches, want <= %d", s.peak, s.limit)
	}
	s.mu.Unlock()

	time.Sleep(time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return nil, nil
}

// TestCoordinator_CancellationStopsProcessing asserts that canceling before Run means no song
// is left running forever and no result escapes as anything but API_ERROR: the pipeline is
// allowed to drain with fewer results than songs (per "cancellation has drained the pipeline"
// as an alternative completion condition), but it must not hang and must not fabricate a
// success status for work it never did.
func TestCoordinator_CancellationStopsProcessing(t *testing.T) {
	searcher := &fakeSearcher{}
	co := New(searcher, newTestMatcher(), 2, 0, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	songs := []core.ParsedSong{{Title: "A", LineNumber: 1}, {Title: "B", LineNumber: 2}}
	results := co.Run(ctx, songs)

	if len(results) > len(songs) {
		t.Fatalf("got %d results for %d songs", len(results), len(songs))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].LineNumber < results[j].LineNumber })
	for _, r := range results {
		if r.Status != core.StatusAPIError {
			t.Errorf("line %d status = %s, want API_ERROR after cancellation", r.LineNumber, r.Status)
		}
	}
}
