// Package flightrecorder keeps a rolling execution trace in memory and writes it to disk when a request times out.
package flightrecorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"sync/atomic"
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/errors"
)

const (
	defaultMinAge   = 5 * time.Minute
	defaultMaxBytes = 64 << 20
	defaultCooldown = 30 * time.Minute
)

var errDirectoryRequired = errors.NewSentinel("traces directory is required")

// Config configures a Recorder. Zero durations and sizes fall back to defaults.
type Config struct {
	// Directory receives the trace files. It is created when missing.
	Directory string
	MinAge    time.Duration
	MaxBytes  uint64
	// Cooldown is the minimum time between two captures.
	Cooldown time.Duration
}

// Recorder dumps the recent execution trace of the process on demand, at most once per cooldown.
type Recorder struct {
	logger    *slog.Logger
	recorder  *trace.FlightRecorder
	directory string
	cooldown  time.Duration
	now       func() time.Time
	// lastCapture is the Unix time of the last capture, zero before the first one.
	lastCapture atomic.Int64
}

// New creates a Recorder. Call Start to begin recording.
func New(logger *slog.Logger, cfg Config) (*Recorder, error) {
	if cfg.Directory == "" {
		return nil, errDirectoryRequired
	}
	if err := os.MkdirAll(cfg.Directory, 0o700); err != nil { //nolint:mnd // owner only.
		return nil, errors.Wrap(err, "create traces directory", slog.String("directory", cfg.Directory))
	}

	minAge := cfg.MinAge
	if minAge <= 0 {
		minAge = defaultMinAge
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = defaultMaxBytes
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	return &Recorder{
		logger:      logger,
		recorder:    trace.NewFlightRecorder(trace.FlightRecorderConfig{MinAge: minAge, MaxBytes: maxBytes}),
		directory:   cfg.Directory,
		cooldown:    cooldown,
		now:         time.Now,
		lastCapture: atomic.Int64{},
	}, nil
}

// Start begins recording. Only one flight recorder may be active per process.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.recorder.Start(); err != nil {
		return errors.Wrap(err, "start flight recorder")
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder started",
		slog.String("directory", r.directory), slog.Duration("cooldown", r.cooldown))
	return nil
}

func (r *Recorder) Stop(ctx context.Context) {
	r.recorder.Stop()
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder stopped")
}

// Capture writes the recorded trace to a file named after reason and returns its path. It returns false when a
// capture happened within the cooldown or the trace could not be written.
func (r *Recorder) Capture(ctx context.Context, reason string) (string, bool) {
	now := r.now()
	last := r.lastCapture.Load()
	if last != 0 && now.Sub(time.Unix(last, 0)) < r.cooldown {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "skipping trace capture during cooldown",
			slog.Time("last_capture", time.Unix(last, 0)))
		return "", false
	}
	if !r.lastCapture.CompareAndSwap(last, now.Unix()) {
		return "", false
	}

	path := filepath.Join(r.directory, fmt.Sprintf("%s-%s.trace", reason, now.UTC().Format("20060102-150405")))
	written, err := r.writeTrace(path)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "failed to capture trace", errors.SlogError(err))
		return "", false
	}
	r.logger.LogAttrs(ctx, slog.LevelWarn, "captured trace",
		slog.String("file", path), slog.String("reason", reason), slog.Int64("bytes", written))
	return path, true
}

func (r *Recorder) writeTrace(path string) (_ int64, err error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrap(err, "create trace file", slog.String("file", path))
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "close trace file", slog.String("file", path))
		}
	}()

	written, err := r.recorder.WriteTo(file)
	if err != nil {
		return written, errors.Wrap(err, "write trace", slog.String("file", path))
	}
	return written, nil
}
