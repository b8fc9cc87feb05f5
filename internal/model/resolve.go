// Package model locates and, when absent, fetches the sherpa-onnx transducer
// artifact set the recognition binary runs against.
package model

import (
	"fmt"
	"os"
	"path/filepath"
)

// tokensCandidates are recognized vocabulary filenames, in preference order.
// tokens.txt is the sherpa-onnx recommendation; some model snapshots ship a
// config.json or bpe.model instead.
var tokensCandidates = []string{"tokens.txt", "config.json", "bpe.model"}

// Paths is the resolved artifact set for one model directory.
type Paths struct {
	Tokens  string
	Encoder string
	Decoder string
	Joiner  string
}

// Resolve locates the token vocabulary and the encoder/decoder/joiner ONNX
// artifacts under dir. Quantized (.int8.onnx) variants are preferred over
// full-precision ones. A missing vocabulary file is a hard error; a missing
// ONNX artifact is as well, since the engine cannot run without any of the
// three.
func Resolve(dir string) (Paths, error) {
	var p Paths

	tokens, err := findTokens(dir)
	if err != nil {
		return p, err
	}
	p.Tokens = tokens

	for _, part := range []struct {
		name string
		dst  *string
	}{
		{"encoder", &p.Encoder},
		{"decoder", &p.Decoder},
		{"joiner", &p.Joiner},
	} {
		path, err := findONNX(dir, part.name)
		if err != nil {
			return Paths{}, err
		}
		*part.dst = path
	}

	return p, nil
}

func findTokens(dir string) (string, error) {
	for _, name := range tokensCandidates {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no tokens file (%v) in %s", tokensCandidates, dir)
}

// findONNX picks the artifact for one transducer part, preferring the int8
// quantized variant.
func findONNX(dir, part string) (string, error) {
	for _, pattern := range []string{part + "*.int8.onnx", part + "*.onnx"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", fmt.Errorf("glob %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("no %s ONNX artifact in %s", part, dir)
}
