// Package core holds the data model shared by every pipeline component: the song and match
// records that flow from the Input Parser through the Matcher to the Result Aggregator.
package core

// Status classifies the outcome of one input line once the pipeline has run to completion.
type Status string

// The five outcomes a MatchResult can carry.
const (
	StatusMatched            Status = "MATCHED"
	StatusLowConfidenceMatch Status = "LOW_CONFIDENCE_MATCH"
	StatusNotFound           Status = "NOT_FOUND"
	StatusAPIError           Status = "API_ERROR"
	StatusInputFormatError   Status = "INPUT_FORMAT_ERROR"
)

// ParsedSong is the canonical internal representation of one input line.
type ParsedSong struct {
	OriginalLine string
	Title        string
	Artists      []string
	// SequenceNumber is the song's position among successfully parsed songs; it is copied into
	// the song's MatchResult. The aggregator orders results by LineNumber, not by this field.
	SequenceNumber int
	// LineNumber is the 1-based position of OriginalLine in the raw input stream, shared with
	// ParseError.LineNumber so the aggregator can interleave both kinds of outcome correctly.
	LineNumber int
}

// Candidate is a track returned by the catalog's search endpoint, before scoring.
type Candidate struct {
	ID         string
	Name       string
	Artists    []string
	URI        string
	AlbumName  string
	DurationMs int
}

// MatchedSong is a successful association between a ParsedSong and a catalog entry.
type MatchedSong struct {
	ParsedSong      ParsedSong
	CatalogID       string
	Name            string
	Artists         []string
	URI             string
	AlbumName       string
	DurationMs      int
	FinalScore      float64
	IsLowConfidence bool
}

// MatchResult is the per-song outcome record the Aggregator collects into the final report.
type MatchResult struct {
	SequenceNumber    int
	LineNumber        int
	OriginalInputLine string
	ParsedSongTitle   string
	ParsedArtists     []string
	Status            Status
	Matched           *MatchedSong
	ErrorMessage      string
}

// ParseError reports one malformed input line without aborting the stream.
type ParseError struct {
	LineNumber   int
	OriginalLine string
	Reason       string
}

func (e *ParseError) Error() string {
	return e.Reason
}

// Summary is the aggregate tuple the Aggregator returns alongside the ordered report.
type Summary struct {
	TotalInputLines       int
	MatchedCount          int
	LowConfidenceCount    int
	NotFoundCount         int
	APIErrorCount         int
	InputFormatErrorCount int
}

// Report is the complete, input-ordered output of a pipeline run.
type Report struct {
	Results []MatchResult
	Summary Summary
}
