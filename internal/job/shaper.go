package job

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/snarg/sherpa-serve/internal/artifact"
	"github.com/snarg/sherpa-serve/internal/extract"
	"github.com/snarg/sherpa-serve/internal/metrics"
)

// Shaper assembles the final job payload and persists the canonical artifact.
type Shaper struct {
	store       artifact.Store
	placeholder string
	log         zerolog.Logger
}

// NewShaper creates a response shaper. placeholder is substituted for empty
// transcripts; an audio clip with no detectable speech is a valid, successful
// outcome.
func NewShaper(store artifact.Store, placeholder string, log zerolog.Logger) *Shaper {
	return &Shaper{
		store:       store,
		placeholder: placeholder,
		log:         log.With().Str("component", "shaper").Logger(),
	}
}

// Shape builds the job result for one extracted record. The full record plus
// word segments is written to the artifact store unconditionally before the
// reply is assembled; the requested format only controls what is echoed back.
func (s *Shaper) Shape(ctx context.Context, rec extract.Record, jobID string, elapsedSec float64, format string, includeTimestamps bool, outfile string) (Result, error) {
	text := rec.Text
	if text == "" {
		text = s.placeholder
		metrics.PlaceholderTotal.Inc()
		s.log.Info().Str("job_id", jobID).Msg("no transcript recovered, substituting placeholder")
	}

	segments := []extract.WordSegment{}
	if includeTimestamps && len(rec.Timestamps) > 0 {
		segments = extract.SegmentWords(rec.Tokens, rec.Timestamps)
	}

	name := outfile
	if name == "" {
		name = jobID + ".json"
	}

	doc := Artifact{
		JobID:        jobID,
		Text:         text,
		Timestamps:   rec.Timestamps,
		Tokens:       rec.Tokens,
		Words:        rec.Words,
		WordSegments: segments,
		ElapsedSec:   elapsedSec,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return Result{}, &Error{Stage: StageArtifact, Message: fmt.Sprintf("marshal artifact: %v", err)}
	}
	path, err := s.store.Save(ctx, name, data)
	if err != nil {
		return Result{}, &Error{Stage: StageArtifact, Message: fmt.Sprintf("persist artifact: %v", err)}
	}

	res := Result{
		JobID:      jobID,
		ElapsedSec: elapsedSec,
		Path:       path,
	}

	switch format {
	case FormatText:
		res.Text = text
	case FormatBase64:
		res.TextB64 = base64.StdEncoding.EncodeToString([]byte(text))
	default: // FormatJSON
		res.Text = text
		res.Timestamps = rec.Timestamps
		res.Tokens = rec.Tokens
		res.WordSegments = segments
		numTokens := len(rec.Tokens)
		numWords := len(segments)
		res.NumTokens = &numTokens
		res.NumWords = &numWords
	}

	return res, nil
}
