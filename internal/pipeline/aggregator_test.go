package pipeline

import (
	"testing"

	"playlistimport/internal/core"
)

func TestAggregate_RestoresInputOrder(t *testing.T) {
	songResults := []core.MatchResult{
		{LineNumber: 3, Status: core.StatusMatched},
		{LineNumber: 1, Status: core.StatusNotFound},
	}
	parseErrs := []core.ParseError{
		{LineNumber: 2, Reason: "both sides empty"},
	}

	report := Aggregate(songResults, parseErrs)

	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
	for i, want := range []int{1, 2, 3} {
		if report.Results[i].LineNumber != want {
			t.Errorf("Results[%d].LineNumber = %d, want %d", i, report.Results[i].LineNumber, want)
		}
	}
}

func TestAggregate_SummaryCounts(t *testing.T) {
	songResults := []core.MatchResult{
		{LineNumber: 1, Status: core.StatusMatched},
		{LineNumber: 2, Status: core.StatusLowConfidenceMatch},
		{LineNumber: 3, Status: core.StatusNotFound},
		{LineNumber: 4, Status: core.StatusAPIError},
	}
	parseErrs := []core.ParseError{
		{LineNumber: 5, Reason: "malformed"},
	}

	report := Aggregate(songResults, parseErrs)

	want := core.Summary{
		TotalInputLines:       5,
		MatchedCount:          1,
		LowConfidenceCount:    1,
		NotFoundCount:         1,
		APIErrorCount:         1,
		InputFormatErrorCount: 1,
	}
	if report.Summary != want {
		t.Errorf("Summary = %+v, want %+v", report.Summary, want)
	}
}

func TestAggregate_IdempotentAcrossRuns(t *testing.T) {
	songResults := []core.MatchResult{
		{LineNumber: 2, Status: core.StatusMatched},
		{LineNumber: 1, Status: core.StatusNotFound},
	}

	first := Aggregate(songResults, nil)
	second := Aggregate(songResults, nil)

	if len(first.Results) != len(second.Results) {
		t.Fatal("aggregate produced different result counts across identical runs")
	}
	for i := range first.Results {
		if first.Results[i].LineNumber != second.Results[i].LineNumber {
			t.Errorf("result %d order differs across runs", i)
		}
	}
	if first.Summary != second.Summary {
		t.Error("summary differs across identical runs")
	}
}
