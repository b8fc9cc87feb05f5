// Package extract reconstructs a canonical recognition result from the raw
// text streams emitted by sherpa-onnx-offline. The engine's output is
// line-oriented text that sometimes contains JSON: a well-formed run prints a
// single-line result object on stderr, but diagnostics can interleave and the
// record may be missing entirely. Extraction is therefore a chain of total
// strategies tried in order; a missing or malformed record is a normal
// outcome, never an error.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Record is the canonical parsed recognition result.
// Timestamps and Tokens are always the same length; if that cannot be
// established from the raw output, both are empty.
type Record struct {
	Text       string    `json:"text"`
	Timestamps []float64 `json:"timestamps"`
	Tokens     []string  `json:"tokens"`
	Words      []string  `json:"words,omitempty"`
}

// Strategy names, used as the prometheus label for extraction outcomes.
const (
	StrategyLine     = "line"
	StrategyPattern  = "pattern"
	StrategyDegraded = "degraded"
)

// fallbackPattern matches a minimal single-level object carrying a text
// field, with no nested braces. The engine emits progress records followed by
// a final one, so the last match in stream order is taken.
var fallbackPattern = regexp.MustCompile(`\{[^{}]*"text"\s*:\s*"((?:[^"\\]|\\.)*)"[^{}]*\}`)

// Extract scans the combined engine output (diagnostic stream first, then
// primary) for a result record. It returns the parsed Record and the name of
// the strategy that produced it. It never fails: when nothing in the streams
// parses, the degraded all-empty Record is returned.
func Extract(primary, diagnostic string) (Record, string) {
	combined := diagnostic + "\n" + primary

	if rec, ok := extractLine(combined); ok {
		return rec, StrategyLine
	}
	if rec, ok := extractPattern(combined); ok {
		return rec, StrategyPattern
	}
	return emptyRecord(), StrategyDegraded
}

// extractLine scans for single lines that are self-contained JSON result
// objects with both text and timestamp fields. First line with non-empty
// parsed text wins.
func extractLine(combined string) (Record, bool) {
	for _, line := range strings.Split(combined, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if !strings.Contains(line, `"text"`) || !strings.Contains(line, `"timestamps"`) {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if strings.TrimSpace(rec.Text) == "" {
			continue
		}

		if rec.Timestamps == nil {
			rec.Timestamps = []float64{}
		}
		if rec.Tokens == nil {
			rec.Tokens = []string{}
		}
		// Timestamps without matching tokens (or vice versa) cannot be
		// aligned; blank both rather than returning mismatched sequences.
		if len(rec.Timestamps) > 0 && len(rec.Tokens) > 0 && len(rec.Timestamps) != len(rec.Tokens) {
			rec.Timestamps = []float64{}
			rec.Tokens = []string{}
		}
		return rec, true
	}
	return Record{}, false
}

// extractPattern applies the flat-object regex across the whole combined
// text. Timing detail is unavailable on this path.
func extractPattern(combined string) (Record, bool) {
	matches := fallbackPattern.FindAllString(combined, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		var rec struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(matches[i]), &rec); err != nil {
			continue
		}
		if strings.TrimSpace(rec.Text) == "" {
			continue
		}
		r := emptyRecord()
		r.Text = rec.Text
		return r, true
	}
	return Record{}, false
}

func emptyRecord() Record {
	return Record{
		Timestamps: []float64{},
		Tokens:     []string{},
	}
}
