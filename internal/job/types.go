// Package job runs one recognition job end to end: validate input, normalize
// audio, invoke the engine, reconstruct the result, persist the artifact, and
// shape the reply.
package job

import (
	"fmt"

	"github.com/snarg/sherpa-serve/internal/extract"
)

// Reply shapes.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatBase64 = "base64"
)

// Request is the job input schema.
type Request struct {
	AudioPath         string `json:"audio_path"`
	Return            string `json:"return,omitempty"`
	IncludeTimestamps *bool  `json:"include_timestamps,omitempty"`
	Outfile           string `json:"outfile,omitempty"`
}

// Format returns the validated reply shape, defaulting to json.
func (r Request) Format() (string, error) {
	switch r.Return {
	case "":
		return FormatJSON, nil
	case FormatText, FormatJSON, FormatBase64:
		return r.Return, nil
	default:
		return "", fmt.Errorf("invalid return format %q", r.Return)
	}
}

// Timestamps reports whether word-level timing was requested (default true).
func (r Request) Timestamps() bool {
	return r.IncludeTimestamps == nil || *r.IncludeTimestamps
}

// Result is the externally visible job payload. Which fields are set depends
// on the requested reply shape; job_id and elapsed_sec are always present.
type Result struct {
	JobID      string  `json:"job_id"`
	ElapsedSec float64 `json:"elapsed_sec"`
	Path       string  `json:"path,omitempty"`

	Text    string `json:"text,omitempty"`
	TextB64 string `json:"text_b64,omitempty"`

	Timestamps   []float64             `json:"timestamps,omitempty"`
	Tokens       []string              `json:"tokens,omitempty"`
	WordSegments []extract.WordSegment `json:"word_segments,omitempty"`
	NumTokens    *int                  `json:"num_tokens,omitempty"`
	NumWords     *int                  `json:"num_words,omitempty"`
}

// Artifact is the persisted per-job JSON document. It always carries the
// richest representation available, independent of the reply shape.
type Artifact struct {
	JobID        string                `json:"job_id"`
	Text         string                `json:"text"`
	Timestamps   []float64             `json:"timestamps"`
	Tokens       []string              `json:"tokens"`
	Words        []string              `json:"words,omitempty"`
	WordSegments []extract.WordSegment `json:"word_segments"`
	ElapsedSec   float64               `json:"elapsed_sec"`
}

// Error is a structured job failure. It marshals to the error payload the
// caller receives; none of these conditions crash the worker.
type Error struct {
	Stage      string `json:"-"`
	Message    string `json:"error"`
	Returncode int    `json:"returncode,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
}

// Failure stages.
const (
	StageInput     = "input"
	StageNormalize = "normalize"
	StageModel     = "model"
	StageEngine    = "engine"
	StageArtifact  = "artifact"
)

func (e *Error) Error() string {
	if e.Returncode != 0 {
		return fmt.Sprintf("%s: %s (exit %d)", e.Stage, e.Message, e.Returncode)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}
