package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/envstruct"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/errors"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/flightrecorder"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/logging"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/metrics"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/sqlite"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/workout"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type application struct {
	logger         *slog.Logger
	metrics        *metrics.Manager
	registry       *prometheus.Registry
	db             *sqlite.Database
	workoutService *workout.Service
	sessions       *liveSessions
	// flightRecorder is nil when trace capture is disabled.
	flightRecorder *flightrecorder.Recorder
	// shutdownCtx is cancelled when the server starts shutting down so that long-lived streams end.
	shutdownCtx context.Context
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"WEGOGYM_ADDR" envDefault:"localhost:8081"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"WEGOGYM_SQLITE_URL" envDefault:"./wegogym.sqlite3"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `env:"WEGOGYM_LOG_LEVEL" envDefault:"info"`
	// WeightIncrementKg is added to the weight when a progression suggestion calls for more load.
	WeightIncrementKg float64 `env:"WEGOGYM_WEIGHT_INCREMENT_KG" envDefault:"2.5"`
	// SessionIdleTimeout is how long a live session is kept in memory without requests.
	SessionIdleTimeout time.Duration `env:"WEGOGYM_SESSION_IDLE_TIMEOUT" envDefault:"3h"`
	// TracesDirectory receives execution traces of timed out requests. Trace capture is disabled when empty.
	TracesDirectory string `env:"WEGOGYM_TRACES_DIRECTORY" envDefault:""`
}

// logLevel controls the process logger created in main.
//
//nolint:gochecknoglobals // shared between main and run.
var logLevel = new(slog.LevelVar)

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	var level slog.Level
	if level, err = logging.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Wrap(err, "parse log level")
	}
	logLevel.Set(level)

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close db", errors.SlogError(closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), //nolint:exhaustruct // defaults.
	)
	m := metrics.NewManager("wegogym", "web", registry)

	sessions := newLiveSessions(cfg.SessionIdleTimeout, logger, m)
	defer sessions.closeAll()

	var recorder *flightrecorder.Recorder
	if cfg.TracesDirectory != "" {
		if recorder, err = flightrecorder.New(logger, flightrecorder.Config{ //nolint:exhaustruct // defaults.
			Directory: cfg.TracesDirectory,
		}); err != nil {
			return errors.Wrap(err, "create flight recorder")
		}
		if err = recorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer recorder.Stop(ctx)
	}

	app := application{
		logger:         logger,
		metrics:        m,
		registry:       registry,
		db:             db,
		workoutService: workout.NewService(db, logger, m, cfg.WeightIncrementKg),
		sessions:       sessions,
		flightRecorder: recorder,
		shutdownCtx:    ctx,
	}

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sessions.sweep(ctx, sweepInterval(cfg.SessionIdleTimeout))
	}()
	defer func() {
		cancel()
		<-sweepDone
	}()

	if err = app.configureAndStartServer(ctx, cfg.Addr, app.routes()); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func main() {
	ctx := context.Background()
	logger := logging.NewLogger(os.Stdout, logLevel)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
