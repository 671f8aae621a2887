package flightrecorder_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/flightrecorder"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/testhelpers"
)

func newTestRecorder(t *testing.T, dir string) *flightrecorder.Recorder {
	t.Helper()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	recorder, err := flightrecorder.New(logger, flightrecorder.Config{
		Directory: dir,
		MinAge:    0,
		MaxBytes:  0,
		Cooldown:  0,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err = recorder.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		recorder.Stop(t.Context())
	})
	return recorder
}

func TestNew_requiresDirectory(t *testing.T) {
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	if _, err := flightrecorder.New(logger, flightrecorder.Config{}); err == nil {
		t.Error("Expected an error without a traces directory")
	}
}

func TestRecorder_Capture(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "traces")
	recorder := newTestRecorder(t, dir)

	path, ok := recorder.Capture(t.Context(), "timeout")
	if !ok {
		t.Fatal("Expected the first capture to succeed")
	}
	if filepath.Dir(path) != dir {
		t.Errorf("trace written to %s, want a file in %s", path, dir)
	}
	name := filepath.Base(path)
	if !strings.HasPrefix(name, "timeout-") || !strings.HasSuffix(name, ".trace") {
		t.Errorf("unexpected trace file name %s", name)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("Expected a non-empty trace file, stat error %v", err)
	}

	t.Run("cooldown prevents another capture", func(t *testing.T) {
		if _, ok = recorder.Capture(t.Context(), "timeout"); ok {
			t.Error("Expected the capture to be skipped during cooldown")
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("Expected 1 trace file, got %d", len(entries))
		}
	})
}
