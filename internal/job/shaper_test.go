package job

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/sherpa-serve/internal/artifact"
	"github.com/snarg/sherpa-serve/internal/extract"
)

func newTestShaper(t *testing.T) (*Shaper, string) {
	t.Helper()
	dir := t.TempDir()
	return NewShaper(artifact.NewLocalStore(dir), "(no speech detected)", zerolog.Nop()), dir
}

func TestShapeJSONFormat(t *testing.T) {
	s, dir := newTestShaper(t)

	rec := extract.Record{
		Text:       " HELLO WORLD",
		Timestamps: []float64{0.10, 0.50},
		Tokens:     []string{" HELLO", " WORLD"},
	}
	res, err := s.Shape(context.Background(), rec, "job-1", 1.23, FormatJSON, true, "")
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}

	if res.JobID != "job-1" {
		t.Errorf("JobID = %q, want job-1", res.JobID)
	}
	if res.ElapsedSec != 1.23 {
		t.Errorf("ElapsedSec = %v, want 1.23", res.ElapsedSec)
	}
	if res.Text != " HELLO WORLD" {
		t.Errorf("Text = %q", res.Text)
	}
	if len(res.Timestamps) != 2 || len(res.Tokens) != 2 {
		t.Errorf("Timestamps/Tokens not echoed: %v %v", res.Timestamps, res.Tokens)
	}
	if len(res.WordSegments) != 2 {
		t.Fatalf("WordSegments = %v, want 2 words", res.WordSegments)
	}
	if res.NumTokens == nil || *res.NumTokens != 2 {
		t.Errorf("NumTokens = %v, want 2", res.NumTokens)
	}
	if res.NumWords == nil || *res.NumWords != 2 {
		t.Errorf("NumWords = %v, want 2", res.NumWords)
	}
	if res.Path != filepath.Join(dir, "job-1.json") {
		t.Errorf("Path = %q", res.Path)
	}
}

func TestShapeTextFormat(t *testing.T) {
	s, _ := newTestShaper(t)

	rec := extract.Record{Text: "HI", Timestamps: []float64{0.1}, Tokens: []string{"HI"}}
	res, err := s.Shape(context.Background(), rec, "job-2", 0.5, FormatText, true, "")
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	if res.Text != "HI" {
		t.Errorf("Text = %q, want HI", res.Text)
	}
	if res.Tokens != nil || res.Timestamps != nil || res.WordSegments != nil {
		t.Error("text format must not echo token detail")
	}
	if res.NumTokens != nil {
		t.Error("text format must not carry counts")
	}
}

func TestShapeBase64Format(t *testing.T) {
	s, _ := newTestShaper(t)

	rec := extract.Record{Text: "XIN CHÀO"}
	res, err := s.Shape(context.Background(), rec, "job-3", 0.5, FormatBase64, true, "")
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(res.TextB64)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != "XIN CHÀO" {
		t.Errorf("decoded = %q, want XIN CHÀO", decoded)
	}
	if res.Text != "" {
		t.Errorf("base64 format should not set Text, got %q", res.Text)
	}
}

func TestShapePlaceholderForEmptyText(t *testing.T) {
	s, _ := newTestShaper(t)

	res, err := s.Shape(context.Background(), extract.Record{}, "job-4", 0.1, FormatJSON, true, "")
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	if res.Text != "(no speech detected)" {
		t.Errorf("Text = %q, want placeholder", res.Text)
	}
}

func TestShapeArtifactAlwaysWritten(t *testing.T) {
	// The artifact carries the full record even when the caller asked for a
	// bare text reply.
	s, dir := newTestShaper(t)

	rec := extract.Record{
		Text:       " ONE TWO",
		Timestamps: []float64{0.1, 0.3},
		Tokens:     []string{" ONE", " TWO"},
	}
	if _, err := s.Shape(context.Background(), rec, "job-5", 2.0, FormatText, true, ""); err != nil {
		t.Fatalf("Shape: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "job-5.json"))
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	var doc Artifact
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal artifact: %v", err)
	}
	if doc.Text != " ONE TWO" {
		t.Errorf("artifact Text = %q", doc.Text)
	}
	if len(doc.Tokens) != 2 || len(doc.Timestamps) != 2 || len(doc.WordSegments) != 2 {
		t.Errorf("artifact missing detail: %+v", doc)
	}
}

func TestShapeOutfileOverridesName(t *testing.T) {
	s, dir := newTestShaper(t)

	_, err := s.Shape(context.Background(), extract.Record{Text: "X"}, "job-6", 0.1, FormatJSON, true, "custom.json")
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "custom.json")); err != nil {
		t.Errorf("custom outfile missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "job-6.json")); !os.IsNotExist(err) {
		t.Error("default-named artifact should not exist when outfile is set")
	}
}

func TestShapeTimestampsOptOut(t *testing.T) {
	s, _ := newTestShaper(t)

	rec := extract.Record{
		Text:       " A B",
		Timestamps: []float64{0.1, 0.2},
		Tokens:     []string{" A", " B"},
	}
	res, err := s.Shape(context.Background(), rec, "job-7", 0.1, FormatJSON, false, "")
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	if len(res.WordSegments) != 0 {
		t.Errorf("WordSegments = %v, want none when timestamps are declined", res.WordSegments)
	}
}
