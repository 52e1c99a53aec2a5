package report

import (
	"strings"
	"testing"

	"playlistimport/internal/core"
)

func TestWrite_IncludesEachResultAndSummary(t *testing.T) {
	r := core.Report{
		Results: []core.MatchResult{
			{
				LineNumber:        1,
				OriginalInputLine: "Bohemian Rhapsody - Queen",
				Status:            core.StatusMatched,
				Matched: &core.MatchedSong{
					Name:       "Bohemian Rhapsody",
					Artists:    []string{"Queen"},
					URI:        "spotify:track:abc",
					FinalScore: 98.5,
				},
			},
			{
				LineNumber:        2,
				OriginalInputLine: " - Ed Sheeran",
				Status:            core.StatusInputFormatError,
				ErrorMessage:      "line 2: title is empty",
			},
		},
		Summary: core.Summary{TotalInputLines: 2, MatchedCount: 1, InputFormatErrorCount: 1},
	}

	var buf strings.Builder
	if err := Write(&buf, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Bohemian Rhapsody - Queen",
		"status: MATCHED",
		"spotify:track:abc",
		"line 2: title is empty",
		"=== Summary ===",
		"matched:          1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\ngot:\n%s", want, out)
		}
	}
}

func TestWrite_LowConfidenceFlagged(t *testing.T) {
	r := core.Report{
		Results: []core.MatchResult{
			{
				LineNumber: 1,
				Status:     core.StatusLowConfidenceMatch,
				Matched:    &core.MatchedSong{Name: "X", FinalScore: 65, IsLowConfidence: true},
			},
		},
	}

	var buf strings.Builder
	if err := Write(&buf, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "confidence: low") {
		t.Error("expected low-confidence marker in output")
	}
}
