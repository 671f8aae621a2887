package testhelpers

import (
	"io"
	"log/slog"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/logging"
)

// NewLogger creates a debug level logger writing to logSink, typically a [Writer] from [NewWriter].
func NewLogger(logSink io.Writer) *slog.Logger {
	return logging.NewLogger(logSink, slog.LevelDebug)
}
