// Package logging builds the process zerolog.Logger from configuration.
package logging

import (
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ehr/clinic/internal/config"
)

// New returns a logger writing to out, human-readable in development and JSON
// otherwise. When LOG_FILE is set every event is also written, as JSON, to a
// size-rotated file. The returned closer releases the file; it is a no-op when
// no file is configured.
func New(cfg *config.Config, out io.Writer) (zerolog.Logger, io.Closer) {
	console := out
	if cfg.IsDev() {
		console = zerolog.ConsoleWriter{Out: out}
	}

	var (
		w      io.Writer = console
		closer io.Closer = nopCloser{}
	)
	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
		}
		w = zerolog.MultiLevelWriter(console, file)
		closer = file
	}

	logger := zerolog.New(w).
		Level(cfg.Level()).
		With().
		Timestamp().
		Str("service", "clinic").
		Str("env", cfg.Env).
		Logger()
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
