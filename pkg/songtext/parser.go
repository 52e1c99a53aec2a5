// Package songtext parses the plain-text song-list input format into structured ParsedSong
// values, one per non-empty line, per the grammar:
//
//	line        := title | title " - " artist_list
//	artist_list := artist ( " / " artist )*
//
// A line whose " - " separator has an empty title or an empty artist side is reported as a
// ParseError.
package songtext

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"playlistimport/internal/core"
)

const (
	titleArtistSeparator = " - "
	artistListSeparator  = " / "
)

// Parser turns a stream of UTF-8 text lines into ParsedSong values, reporting malformed lines
// as ParseErrors without aborting the rest of the stream.
type Parser struct{}

// New constructs a Parser. It holds no state; normalization happens downstream in the Matcher.
func New() *Parser {
	return &Parser{}
}

// ParseLines reads r line by line and returns the ParsedSongs and ParseErrors it produced, in
// input order. A read error on the stream itself is fatal and returned as err.
func (p *Parser) ParseLines(r io.Reader) ([]core.ParsedSong, []core.ParseError, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var songs []core.ParsedSong
	var errs []core.ParseError
	seq := 0
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()

		if strings.TrimSpace(line) == "" {
			continue
		}

		song, parseErr := p.parseLine(line)
		if parseErr != nil {
			parseErr.LineNumber = lineNumber
			errs = append(errs, *parseErr)
			continue
		}

		song.LineNumber = lineNumber
		song.SequenceNumber = seq
		seq++
		songs = append(songs, song)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("songtext: reading input stream: %w", err)
	}

	return songs, errs, nil
}

// parseLine applies the line grammar to a single non-blank line, exactly as read (not yet
// trimmed). The separator search happens on the untrimmed line so a leading " - " (empty title)
// is not collapsed into a bare "- artist" title-only line by an earlier whole-line trim.
func (p *Parser) parseLine(line string) (core.ParsedSong, *core.ParseError) {
	original := strings.TrimSpace(line)

	idx := strings.Index(line, titleArtistSeparator)
	if idx < 0 {
		return core.ParsedSong{
			OriginalLine: original,
			Title:        original,
		}, nil
	}

	titlePart := strings.TrimSpace(line[:idx])
	artistPart := strings.TrimSpace(line[idx+len(titleArtistSeparator):])

	if titlePart == "" && artistPart == "" {
		return core.ParsedSong{}, &core.ParseError{
			OriginalLine: original,
			Reason:       "both title and artist sides are empty",
		}
	}
	if titlePart == "" {
		return core.ParsedSong{}, &core.ParseError{
			OriginalLine: original,
			Reason:       "title is empty",
		}
	}
	if artistPart == "" {
		return core.ParsedSong{}, &core.ParseError{
			OriginalLine: original,
			Reason:       "artist side is empty",
		}
	}

	return core.ParsedSong{
		OriginalLine: original,
		Title:        titlePart,
		Artists:      splitArtists(artistPart),
	}, nil
}

// splitArtists splits an artist-string on " / ", trims each entry, and drops empties.
func splitArtists(artistPart string) []string {
	parts := strings.Split(artistPart, artistListSeparator)
	artists := make([]string, 0, len(parts))
	for _, a := range parts {
		a = strings.TrimSpace(a)
		if a != "" {
			artists = append(artists, a)
		}
	}
	return artists
}
