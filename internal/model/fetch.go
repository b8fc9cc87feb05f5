package model

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const hubBaseURL = "https://huggingface.co"

// Fetcher downloads a model snapshot from the Hugging Face hub once at
// startup. It is not safe to call concurrently with job execution; callers
// run Ensure to completion before accepting any job.
type Fetcher struct {
	client  *http.Client
	baseURL string
	token   string
	log     zerolog.Logger
}

// NewFetcher creates a snapshot fetcher. token may be empty for public repos.
func NewFetcher(token string, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		client:  &http.Client{},
		baseURL: hubBaseURL,
		token:   token,
		log:     log.With().Str("component", "model").Logger(),
	}
}

// Ensure populates dir with a snapshot of modelID unless it already exists
// and is non-empty. The snapshot is downloaded into a sibling staging
// directory and renamed into place on completion, so concurrent workers
// sharing the directory either see nothing or the full artifact set.
func (f *Fetcher) Ensure(ctx context.Context, modelID, dir string) error {
	if populated(dir) {
		f.log.Info().Str("dir", dir).Msg("model found")
		return nil
	}

	f.log.Info().Str("model", modelID).Str("dir", dir).Msg("downloading model snapshot")

	staging := fmt.Sprintf("%s.partial-%d", dir, os.Getpid())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	files, err := f.listRepoFiles(ctx, modelID)
	if err != nil {
		return fmt.Errorf("list %s: %w", modelID, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("model repo %s is empty", modelID)
	}

	for _, path := range files {
		if err := f.downloadFile(ctx, modelID, path, staging); err != nil {
			return fmt.Errorf("download %s: %w", path, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("create model parent dir: %w", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		// Another process may have completed the same download first.
		if populated(dir) {
			f.log.Info().Str("dir", dir).Msg("model populated concurrently")
			return nil
		}
		return fmt.Errorf("activate snapshot: %w", err)
	}

	f.log.Info().Int("files", len(files)).Str("dir", dir).Msg("model snapshot ready")
	return nil
}

// listRepoFiles returns the file paths in the repo's main revision.
func (f *Fetcher) listRepoFiles(ctx context.Context, modelID string) ([]string, error) {
	u := fmt.Sprintf("%s/api/models/%s/tree/main?recursive=true", f.baseURL, modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	f.authorize(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hub tree listing: status %d", resp.StatusCode)
	}

	var entries []struct {
		Type string `json:"type"`
		Path string `json:"path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode tree listing: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.Type == "file" {
			files = append(files, e.Path)
		}
	}
	return files, nil
}

func (f *Fetcher) downloadFile(ctx context.Context, modelID, path, staging string) error {
	dst := filepath.Join(staging, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	u := fmt.Sprintf("%s/%s/resolve/main/%s", f.baseURL, modelID, escapePath(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	f.authorize(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (f *Fetcher) authorize(req *http.Request) {
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
}

// escapePath escapes each segment of a repo-relative path, keeping the
// separators intact.
func escapePath(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// populated reports whether dir exists and contains at least one entry.
func populated(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
