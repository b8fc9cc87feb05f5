package extract

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// WordSegment is one reconstructed word with its time span in seconds.
type WordSegment struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SegmentWords reconstructs word boundaries from aligned subword tokens and
// per-token timestamps. A token carrying a leading whitespace marker opens a
// new word; any other token continues the current one. When a word closes at
// a boundary its end time is the PREVIOUS token's timestamp, since that token
// marks the last sound before the boundary, not the boundary token itself.
// The final word closes on the last token's timestamp.
//
// Mismatched lengths or empty input yield an empty slice; absence of timing
// detail is a valid, common case, not an error.
func SegmentWords(tokens []string, timestamps []float64) []WordSegment {
	if len(tokens) == 0 || len(tokens) != len(timestamps) {
		return []WordSegment{}
	}

	segments := []WordSegment{}
	var word string
	var start float64

	for i, tok := range tokens {
		if i == 0 || hasBoundaryMarker(tok) {
			if i > 0 {
				segments = append(segments, closeWord(word, start, timestamps[i-1]))
			}
			word = tok
			start = timestamps[i]
			continue
		}
		word += tok
	}
	segments = append(segments, closeWord(word, start, timestamps[len(timestamps)-1]))

	return segments
}

func closeWord(word string, start, end float64) WordSegment {
	return WordSegment{
		Word:  strings.TrimSpace(word),
		Start: round2(start),
		End:   round2(end),
	}
}

// hasBoundaryMarker reports whether the token starts a new word. The subword
// vocabulary bakes the boundary in as a leading whitespace character.
func hasBoundaryMarker(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	return unicode.IsSpace(r)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
