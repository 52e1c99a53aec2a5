package pipeline

import (
	"sort"

	"playlistimport/internal/core"
)

// Aggregate merges song results and parse-error results into the final, input-ordered Report.
// Re-running Aggregate on the same inputs yields identical output order and summary, since the
// only ordering key is LineNumber, which is assigned once by the parser and never mutated.
func Aggregate(songResults []core.MatchResult, parseErrs []core.ParseError) core.Report {
	all := make([]core.MatchResult, 0, len(songResults)+len(parseErrs))
	all = append(all, songResults...)
	all = append(all, parseErrorsToResults(parseErrs)...)

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].LineNumber < all[j].LineNumber
	})

	summary := core.Summary{
		TotalInputLines: len(all),
	}
	for _, r := range all {
		switch r.Status {
		case core.StatusMatched:
			summary.MatchedCount++
		case core.StatusLowConfidenceMatch:
			summary.LowConfidenceCount++
		case core.StatusNotFound:
			summary.NotFoundCount++
		case core.StatusAPIError:
			summary.APIErrorCount++
		case core.StatusInputFormatError:
			summary.InputFormatErrorCount++
		}
	}

	return core.Report{
		Results: all,
		Summary: summary,
	}
}
