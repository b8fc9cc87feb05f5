package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolve_FullSet(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "tokens.txt")
	touch(t, dir, "encoder-epoch-20-avg-10.onnx")
	touch(t, dir, "decoder-epoch-20-avg-10.onnx")
	touch(t, dir, "joiner-epoch-20-avg-10.onnx")

	p, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(p.Tokens) != "tokens.txt" {
		t.Errorf("Tokens = %q, want tokens.txt", p.Tokens)
	}
	if filepath.Base(p.Encoder) != "encoder-epoch-20-avg-10.onnx" {
		t.Errorf("Encoder = %q", p.Encoder)
	}
	if filepath.Base(p.Joiner) != "joiner-epoch-20-avg-10.onnx" {
		t.Errorf("Joiner = %q", p.Joiner)
	}
}

func TestResolve_PrefersQuantized(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "tokens.txt")
	for _, part := range []string{"encoder", "decoder", "joiner"} {
		touch(t, dir, part+"-epoch-20-avg-10.onnx")
		touch(t, dir, part+"-epoch-20-avg-10.int8.onnx")
	}

	p, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, got := range []string{p.Encoder, p.Decoder, p.Joiner} {
		if !strings.HasSuffix(got, ".int8.onnx") {
			t.Errorf("expected quantized variant, got %q", got)
		}
	}
}

func TestResolve_TokensPreferenceOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "config.json")
	touch(t, dir, "bpe.model")
	touch(t, dir, "encoder.onnx")
	touch(t, dir, "decoder.onnx")
	touch(t, dir, "joiner.onnx")

	p, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(p.Tokens) != "config.json" {
		t.Errorf("Tokens = %q, want config.json before bpe.model", p.Tokens)
	}
}

func TestResolve_NoTokensFile(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "encoder.onnx")

	if _, err := Resolve(dir); err == nil {
		t.Fatal("expected error when no tokens file variant exists")
	}
}

func TestResolve_MissingArtifact(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "tokens.txt")
	touch(t, dir, "encoder.onnx")
	touch(t, dir, "decoder.onnx")
	// joiner missing

	if _, err := Resolve(dir); err == nil {
		t.Fatal("expected error when joiner artifact is missing")
	}
}
