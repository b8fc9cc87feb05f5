// Package engine spawns the external recognition and audio tools a job needs:
// sherpa-onnx-offline for decoding and ffmpeg for input normalization.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/snarg/sherpa-serve/internal/model"
)

// Output is the raw result of one engine invocation: two text streams and an
// exit status. It is consumed once by extraction and discarded.
type Output struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner invokes the offline recognition binary.
type Runner struct {
	cmd        []string
	numThreads int
}

// NewRunner parses the engine command (shell-quoted, so wrappers like
// "nice -n 10 sherpa-onnx-offline" work) and keeps the thread-count hint.
func NewRunner(command string, numThreads int) (*Runner, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("engine command is empty")
	}
	return &Runner{cmd: args, numThreads: numThreads}, nil
}

// Args builds the full argument vector for one invocation against a resolved
// model artifact set and a normalized wav path.
func (r *Runner) Args(paths model.Paths, wavPath string) []string {
	args := append([]string{}, r.cmd[1:]...)
	if r.numThreads > 0 {
		args = append(args, fmt.Sprintf("--num-threads=%d", r.numThreads))
	}
	args = append(args,
		"--tokens="+paths.Tokens,
		"--encoder="+paths.Encoder,
		"--decoder="+paths.Decoder,
		"--joiner="+paths.Joiner,
		wavPath,
	)
	return args
}

// Run executes the engine against one normalized wav file, blocking until it
// exits. There is deliberately no timeout at this layer: decode time scales
// with audio length and a stuck engine is an accepted external-tool risk.
// The two output streams are always returned, even on failure: extraction
// and error reporting both need them.
func (r *Runner) Run(ctx context.Context, paths model.Paths, wavPath string) (Output, error) {
	cmd := exec.CommandContext(ctx, r.cmd[0], r.Args(paths, wavPath)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		out.ExitCode = -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			out.ExitCode = exitErr.ExitCode()
		}
		return out, fmt.Errorf("engine exit %d: %w", out.ExitCode, err)
	}
	return out, nil
}
