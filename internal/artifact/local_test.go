package artifact

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStore_SaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)

	path, err := s.Save(context.Background(), "job-1.json", []byte(`{"job_id":"job-1"}`))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != filepath.Join(dir, "job-1.json") {
		t.Errorf("path = %q", path)
	}

	rc, err := s.Open(context.Background(), "job-1.json")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"job_id":"job-1"}` {
		t.Errorf("data = %q", data)
	}
}

func TestLocalStore_OverwriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)
	ctx := context.Background()

	if _, err := s.Save(ctx, "j.json", []byte("old")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(ctx, "j.json", []byte("new")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "j.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("data = %q, want new", data)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 file, found %d", len(entries))
	}
}

func TestLocalStore_CreatesOutDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "jobs", "out")
	s := NewLocalStore(dir)

	if _, err := s.Save(context.Background(), "j.json", []byte("x")); err != nil {
		t.Fatalf("Save into missing dir: %v", err)
	}
}

func TestLocalStore_URLEmpty(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	url, err := s.URL(context.Background(), "j.json")
	if err != nil {
		t.Fatal(err)
	}
	if url != "" {
		t.Errorf("URL = %q, want empty for local backend", url)
	}
}
