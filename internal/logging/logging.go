// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/javi11/fwunpack/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel converts a config level name to a slog level. Unknown names map
// to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds a text logger writing to stderr and, when cfg.File is set, to a
// rotating log file. Every record carries run_id. The logger is installed as
// the slog default. The returned closer releases the log file.
func Setup(cfg config.LogConfig, stderr io.Writer) (*slog.Logger, string, io.Closer) {
	if stderr == nil {
		stderr = os.Stderr
	}

	var out io.Writer = stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(stderr, lj)
		closer = lj
	}

	runID := uuid.New().String()
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})).With("run_id", runID)

	slog.SetDefault(logger)
	return logger, runID, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
