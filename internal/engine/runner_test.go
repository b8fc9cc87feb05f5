package engine

import (
	"reflect"
	"strings"
	"testing"

	"github.com/snarg/sherpa-serve/internal/model"
)

var testPaths = model.Paths{
	Tokens:  "/models/m/tokens.txt",
	Encoder: "/models/m/encoder.int8.onnx",
	Decoder: "/models/m/decoder.int8.onnx",
	Joiner:  "/models/m/joiner.int8.onnx",
}

func TestNewRunner_EmptyCommand(t *testing.T) {
	if _, err := NewRunner("", 0); err == nil {
		t.Fatal("expected error for empty engine command")
	}
}

func TestNewRunner_BadQuoting(t *testing.T) {
	if _, err := NewRunner(`sherpa-onnx-offline "unterminated`, 0); err == nil {
		t.Fatal("expected error for unbalanced quotes")
	}
}

func TestRunner_Args(t *testing.T) {
	r, err := NewRunner("sherpa-onnx-offline", 0)
	if err != nil {
		t.Fatal(err)
	}

	got := r.Args(testPaths, "/tmp/job_16k.wav")
	want := []string{
		"--tokens=/models/m/tokens.txt",
		"--encoder=/models/m/encoder.int8.onnx",
		"--decoder=/models/m/decoder.int8.onnx",
		"--joiner=/models/m/joiner.int8.onnx",
		"/tmp/job_16k.wav",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args = %v, want %v", got, want)
	}
}

func TestRunner_ArgsWithThreads(t *testing.T) {
	r, err := NewRunner("sherpa-onnx-offline", 2)
	if err != nil {
		t.Fatal(err)
	}

	got := r.Args(testPaths, "/tmp/a.wav")
	if got[0] != "--num-threads=2" {
		t.Errorf("got[0] = %q, want --num-threads=2", got[0])
	}
}

func TestRunner_ArgsWithWrapperCommand(t *testing.T) {
	r, err := NewRunner(`nice -n 10 sherpa-onnx-offline --decoding-method=greedy_search`, 0)
	if err != nil {
		t.Fatal(err)
	}

	got := r.Args(testPaths, "/tmp/a.wav")
	if got[0] != "-n" || got[1] != "10" || got[2] != "sherpa-onnx-offline" {
		t.Errorf("wrapper args not preserved: %v", got)
	}
	if got[3] != "--decoding-method=greedy_search" {
		t.Errorf("extra engine flag not preserved: %v", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Run("under_limit", func(t *testing.T) {
		if got := Truncate("short", 100); got != "short" {
			t.Errorf("Truncate = %q, want unchanged", got)
		}
	})

	t.Run("keeps_tail", func(t *testing.T) {
		s := strings.Repeat("a", 50) + "FATAL"
		got := Truncate(s, 10)
		if !strings.HasSuffix(got, "FATAL") {
			t.Errorf("Truncate = %q, want the tail kept", got)
		}
		if !strings.HasPrefix(got, "...") {
			t.Errorf("Truncate = %q, want ellipsis prefix", got)
		}
	})

	t.Run("zero_limit_disables", func(t *testing.T) {
		s := strings.Repeat("b", 50)
		if got := Truncate(s, 0); got != s {
			t.Errorf("Truncate with limit 0 must pass through")
		}
	})
}
