package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ffmpegAvailable caches whether ffmpeg is in PATH (checked once at startup).
var ffmpegAvailable *bool

// CheckFFmpeg checks if the configured ffmpeg binary is available in PATH.
// Call once at startup.
func CheckFFmpeg(bin string) bool {
	if ffmpegAvailable != nil {
		return *ffmpegAvailable
	}
	_, err := exec.LookPath(bin)
	avail := err == nil
	ffmpegAvailable = &avail
	return avail
}

// Normalize converts an arbitrary input audio file to mono 16kHz 16-bit PCM
// at a job-specific temp path, the layout sherpa-onnx decodes most reliably.
// Returns the normalized path and a cleanup function; cleanup failures are
// ignored. A non-zero ffmpeg exit is a hard job failure carrying a bounded
// stderr excerpt.
func Normalize(ctx context.Context, ffmpegBin, inputPath, jobID string, stderrLimit int) (string, func(), error) {
	noop := func() {}

	outPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s_16k.wav", jobID))

	cmd := exec.CommandContext(ctx, ffmpegBin,
		"-y", "-i", inputPath,
		"-ac", "1",
		"-ar", "16000",
		"-sample_fmt", "s16",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		return "", noop, fmt.Errorf("ffmpeg: %w: %s", err, Truncate(stderr.String(), stderrLimit))
	}

	cleanup := func() {
		os.Remove(outPath)
	}
	return outPath, cleanup, nil
}

// Truncate bounds diagnostic text to at most limit bytes, keeping the tail;
// the end of a tool's stderr is where the actual failure usually is.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}
