// Package artifact persists the per-job JSON result documents. Every job
// writes exactly one artifact, always carrying the richest representation
// available regardless of the reply shape the caller asked for.
package artifact

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/sherpa-serve/internal/config"
)

// Store abstracts artifact storage backends.
type Store interface {
	// Save writes the artifact and returns its canonical path.
	Save(ctx context.Context, name string, data []byte) (string, error)

	// Open returns a reader for a previously saved artifact.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// URL returns a presigned URL for the artifact, "" for local-only
	// backends.
	URL(ctx context.Context, name string) (string, error)

	// Type returns "local" or "mirrored".
	Type() string
}

// New creates a Store from config: local filesystem always, mirrored to an
// S3-compatible bucket when one is configured. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, outDir string, log zerolog.Logger) (Store, error) {
	local := NewLocalStore(outDir)
	if !cfg.Enabled() {
		return local, nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("s3 init: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("s3 startup check (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("s3 connection verified")

	return NewMirroredStore(local, s3store, log), nil
}

// MirroredStore writes locally and mirrors to S3. The local copy is
// authoritative for reads; a failed mirror upload is logged, not fatal.
type MirroredStore struct {
	local *LocalStore
	s3    *S3Store
	log   zerolog.Logger
}

// NewMirroredStore creates a local-primary, S3-mirrored store.
func NewMirroredStore(local *LocalStore, s3 *S3Store, log zerolog.Logger) *MirroredStore {
	return &MirroredStore{local: local, s3: s3, log: log.With().Str("component", "artifact").Logger()}
}

func (m *MirroredStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	path, err := m.local.Save(ctx, name, data)
	if err != nil {
		return "", err
	}
	if err := m.s3.Put(ctx, name, data); err != nil {
		m.log.Warn().Err(err).Str("name", name).Msg("s3 mirror upload failed")
	}
	return path, nil
}

func (m *MirroredStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := m.local.Open(ctx, name)
	if err == nil {
		return rc, nil
	}
	return m.s3.Open(ctx, name)
}

func (m *MirroredStore) URL(ctx context.Context, name string) (string, error) {
	return m.s3.URL(ctx, name)
}

func (m *MirroredStore) Type() string { return "mirrored" }
