// Package report renders a Report as the plain-text file format human operators read; callers
// that want structured output work with the aggregator's in-memory Report directly instead.
package report

import (
	"fmt"
	"io"
	"strings"

	"playlistimport/internal/core"
)

// Write renders report to w as one section per MatchResult in input order, followed by a
// summary block with counts.
func Write(w io.Writer, report core.Report) error {
	var b strings.Builder

	for _, result := range report.Results {
		writeResult(&b, result)
		b.WriteString("\n")
	}

	writeSummary(&b, report.Summary)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeResult(b *strings.Builder, r core.MatchResult) {
	fmt.Fprintf(b, "[%d] %s\n", r.LineNumber, r.OriginalInputLine)
	fmt.Fprintf(b, "  status: %s\n", r.Status)

	switch r.Status {
	case core.StatusMatched, core.StatusLowConfidenceMatch:
		m := r.Matched
		fmt.Fprintf(b, "  matched: %s - %s\n", m.Name, strings.Join(m.Artists, " / "))
		fmt.Fprintf(b, "  uri: %s\n", m.URI)
		fmt.Fprintf(b, "  score: %.1f\n", m.FinalScore)
		if m.IsLowConfidence {
			b.WriteString("  confidence: low\n")
		}
	case core.StatusNotFound:
		fmt.Fprintf(b, "  parsed: %s - %s\n", r.ParsedSongTitle, strings.Join(r.ParsedArtists, " / "))
	case core.StatusAPIError, core.StatusInputFormatError:
		if r.ErrorMessage != "" {
			fmt.Fprintf(b, "  error: %s\n", r.ErrorMessage)
		}
	}
}

func writeSummary(b *strings.Builder, s core.Summary) {
	b.WriteString("=== Summary ===\n")
	fmt.Fprintf(b, "total:            %d\n", s.TotalInputLines)
	fmt.Fprintf(b, "matched:          %d\n", s.MatchedCount)
	fmt.Fprintf(b, "low confidence:   %d\n", s.LowConfidenceCount)
	fmt.Fprintf(b, "not found:        %d\n", s.NotFoundCount)
	fmt.Fprintf(b, "api errors:       %d\n", s.APIErrorCount)
	fmt.Fprintf(b, "format errors:    %d\n", s.InputFormatErrorCount)
}
