// Package pipeline drives each parsed song through Search -> Match -> Result behind a bounded
// worker pool, then restores input order for the final report.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"playlistimport/internal/core"
	"playlistimport/internal/match"
)

// Searcher is the Catalog Client's surface the Coordinator depends on. *catalog.Client
// satisfies it; tests substitute a fake to exercise the worker pool without a live catalog.
type Searcher interface {
	Search(ctx context.Context, song core.ParsedSong) ([]core.Candidate, error)
}

// Coordinator owns the bounded worker pool that turns ParsedSongs into MatchResults. A single
// Coordinator's Catalog Client, Matcher, and normalization cache are shared read-mostly state
// across every worker goroutine it launches.
type Coordinator struct {
	client         Searcher
	matcher        *match.Matcher
	concurrency    int
	queueSize      int
	perSongTimeout time.Duration
	logger         *zap.Logger
}

// New builds a Coordinator. concurrency bounds the worker pool; queueSize bounds the input
// channel (conventionally 2x the configured batch size); perSongTimeout bounds each worker's
// Search call, mirroring the Catalog Client's own total-timeout-per-call budget.
func New(client Searcher, matcher *match.Matcher, concurrency, queueSize int, perSongTimeout time.Duration, logger *zap.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = core.DefaultConcurrencyLimit
	}
	if queueSize <= 0 {
		queueSize = concurrency * 2
	}
	return &Coordinator{
		client:         client,
		matcher:        matcher,
		concurrency:    concurrency,
		queueSize:      queueSize,
		perSongTimeout: perSongTimeout,
		logger:         logger,
	}
}

// Run fans songs out to the worker pool and returns one MatchResult per song, in no particular
// order; callers combine this with parse-error results and sort by LineNumber (see Aggregate).
// Run returns early with whatever results have been produced so far if ctx is canceled; it
// never returns an error itself — cancellation and per-song failures both surface as
// MatchResults, per the "errors confined to a single song never abort the pipeline" policy.
func (co *Coordinator) Run(ctx context.Context, songs []core.ParsedSong) []core.MatchResult {
	queue := make(chan core.ParsedSong, co.queueSize)
	results := make(chan core.MatchResult, co.queueSize)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		for _, song := range songs {
			select {
			case queue <- song:
			case <-gCtx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < co.concurrency; i++ {
		g.Go(func() error {
			for song := range queue {
				results <- co.processOne(gCtx, song)
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	collected := make([]core.MatchResult, 0, len(songs))
	for result := range results {
		collected = append(collected, result)
	}
	return collected
}

// processOne drives one song through Search -> Match -> Result construction. It never returns
// an error: every failure mode is encoded into the returned MatchResult's Status.
func (co *Coordinator) processOne(ctx context.Context, song core.ParsedSong) core.MatchResult {
	base := core.MatchResult{
		SequenceNumber:    song.SequenceNumber,
		LineNumber:        song.LineNumber,
		OriginalInputLine: song.OriginalLine,
		ParsedSongTitle:   song.Title,
		ParsedArtists:     song.Artists,
	}

	if ctx.Err() != nil {
		base.Status = core.StatusAPIError
		base.ErrorMessage = "canceled before processing"
		return base
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if co.perSongTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, co.perSongTimeout)
		defer cancel()
	}

	candidates, err := co.client.Search(callCtx, song)
	if err != nil {
		base.Status = core.StatusAPIError
		if callCtx.Err() != nil {
			base.ErrorMessage = "timeout waiting for catalog search"
		} else {
			base.ErrorMessage = err.Error()
		}
		co.logger.Debug("search failed", zap.String("title", song.Title), zap.Error(err))
		return base
	}

	matched := co.matcher.BestMatch(song, candidates)
	switch {
	case matched == nil:
		base.Status = core.StatusNotFound
	case matched.IsLowConfidence:
		base.Status = core.StatusLowConfidenceMatch
		base.Matched = matched
	default:
		base.Status = core.StatusMatched
		base.Matched = matched
	}
	return base
}

// parseErrorsToResults converts ParseErrors into INPUT_FORMAT_ERROR MatchResults, per the
// Aggregator's documented contract in the component design.
func parseErrorsToResults(errs []core.ParseError) []core.MatchResult {
	out := make([]core.MatchResult, 0, len(errs))
	for _, e := range errs {
		out = append(out, core.MatchResult{
			LineNumber:        e.LineNumber,
			OriginalInputLine: e.OriginalLine,
			Status:            core.StatusInputFormatError,
			ErrorMessage:      fmt.Sprintf("line %d: %s", e.LineNumber, e.Reason),
		})
	}
	return out
}
