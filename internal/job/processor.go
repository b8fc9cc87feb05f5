package job

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/sherpa-serve/internal/config"
	"github.com/snarg/sherpa-serve/internal/engine"
	"github.com/snarg/sherpa-serve/internal/extract"
	"github.com/snarg/sherpa-serve/internal/metrics"
	"github.com/snarg/sherpa-serve/internal/model"
	"github.com/snarg/sherpa-serve/internal/store"
)

// engineRunner is the narrow engine-invoker contract the processor depends on.
type engineRunner interface {
	Run(ctx context.Context, paths model.Paths, wavPath string) (engine.Output, error)
}

// normalizeFunc converts input audio to mono 16kHz 16-bit PCM at a
// job-specific temp path.
type normalizeFunc func(ctx context.Context, inputPath, jobID string) (string, func(), error)

// resolveFunc locates the model artifact set.
type resolveFunc func(dir string) (model.Paths, error)

// Processor runs recognition jobs start to finish. It holds no per-job state;
// each job gets a fresh id, temp path, and artifact name, so concurrent
// workers never contend.
type Processor struct {
	cfg       *config.Config
	runner    engineRunner
	shaper    *Shaper
	history   *store.Store
	normalize normalizeFunc
	resolve   resolveFunc
	log       zerolog.Logger
}

// NewProcessor wires a processor from its collaborators. history may be nil.
func NewProcessor(cfg *config.Config, runner engineRunner, shaper *Shaper, history *store.Store, log zerolog.Logger) *Processor {
	p := &Processor{
		cfg:     cfg,
		runner:  runner,
		shaper:  shaper,
		history: history,
		resolve: model.Resolve,
		log:     log.With().Str("component", "processor").Logger(),
	}
	p.normalize = func(ctx context.Context, inputPath, jobID string) (string, func(), error) {
		return engine.Normalize(ctx, cfg.FFmpegBin, inputPath, jobID, cfg.StderrLimit)
	}
	return p
}

// Process runs one job. Failures come back as *Error; the caller turns them
// into a structured payload rather than letting them propagate.
func (p *Processor) Process(ctx context.Context, req Request, source string) (Result, error) {
	jobID := uuid.NewString()

	format, err := req.Format()
	if err != nil {
		return p.fail(jobID, source, &Error{Stage: StageInput, Message: err.Error()})
	}
	if req.AudioPath == "" {
		return p.fail(jobID, source, &Error{Stage: StageInput, Message: "audio_path is required"})
	}
	if _, err := os.Stat(req.AudioPath); err != nil {
		return p.fail(jobID, source, &Error{Stage: StageInput, Message: fmt.Sprintf("audio not found: %s", req.AudioPath)})
	}

	log := p.log.With().Str("job_id", jobID).Str("source", source).Logger()
	log.Info().Str("audio", req.AudioPath).Str("format", format).Msg("decoding")

	wavPath, cleanup, err := p.normalize(ctx, req.AudioPath, jobID)
	if err != nil {
		return p.fail(jobID, source, &Error{Stage: StageNormalize, Message: err.Error()})
	}
	defer cleanup()

	paths, err := p.resolve(p.cfg.ModelDir)
	if err != nil {
		return p.fail(jobID, source, &Error{Stage: StageModel, Message: err.Error()})
	}

	start := time.Now()
	out, err := p.runner.Run(ctx, paths, wavPath)
	elapsed := round2(time.Since(start).Seconds())
	metrics.JobDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		// Hard failure: no artifact is written for a non-zero engine exit.
		return p.fail(jobID, source, &Error{
			Stage:      StageEngine,
			Message:    "recognition engine failed",
			Returncode: out.ExitCode,
			Stderr:     engine.Truncate(out.Stderr, p.cfg.StderrLimit),
		})
	}

	rec, strategy := extract.Extract(out.Stdout, out.Stderr)
	metrics.ExtractStrategyTotal.WithLabelValues(strategy).Inc()

	result, err := p.shaper.Shape(ctx, rec, jobID, elapsed, format, req.Timestamps(), req.Outfile)
	if err != nil {
		var jerr *Error
		if e, ok := err.(*Error); ok {
			jerr = e
		} else {
			jerr = &Error{Stage: StageArtifact, Message: err.Error()}
		}
		return p.fail(jobID, source, jerr)
	}

	p.record(ctx, store.Row{
		JobID:        jobID,
		Status:       store.StatusDone,
		Source:       source,
		Format:       format,
		Text:         textOf(result, rec, p.cfg.Placeholder),
		NumTokens:    len(rec.Tokens),
		NumSegments:  len(result.WordSegments),
		ElapsedSec:   elapsed,
		ArtifactPath: result.Path,
	})
	metrics.JobsTotal.WithLabelValues("done", source).Inc()

	log.Info().
		Float64("elapsed_sec", elapsed).
		Str("strategy", strategy).
		Int("tokens", len(rec.Tokens)).
		Msg("job complete")

	return result, nil
}

// fail records and counts a failed job, then returns its error.
func (p *Processor) fail(jobID, source string, jerr *Error) (Result, error) {
	p.log.Warn().Str("job_id", jobID).Str("source", source).Str("stage", jerr.Stage).Msg(jerr.Message)
	p.record(context.Background(), store.Row{
		JobID:  jobID,
		Status: store.StatusFailed,
		Source: source,
		Error:  jerr.Error(),
	})
	metrics.JobsTotal.WithLabelValues("failed", source).Inc()
	return Result{}, jerr
}

// record writes the job history row; history is best-effort.
func (p *Processor) record(ctx context.Context, row store.Row) {
	if p.history == nil {
		return
	}
	if err := p.history.Record(ctx, row); err != nil {
		p.log.Warn().Err(err).Str("job_id", row.JobID).Msg("job history write failed")
	}
}

// textOf resolves the transcript recorded in history: the shaped text when
// the reply carries it, otherwise the record text (or placeholder).
func textOf(res Result, rec extract.Record, placeholder string) string {
	if res.Text != "" {
		return res.Text
	}
	if rec.Text != "" {
		return rec.Text
	}
	return placeholder
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
