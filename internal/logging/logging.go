package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates a *slog.Logger writing JSON to stderr and optionally to logFile.
// Every record carries a "component" attribute so the web server and the
// terminal front end can share one log file. The logger also becomes the
// slog default. The returned cleanup func closes the log file if one was
// opened; callers must defer it.
func New(component, level, logFile string) (*slog.Logger, func(), error) {
	var writers []io.Writer
	cleanup := func() {}

	// The terminal UI owns stderr, so it logs to the file only.
	if component != "tui" || logFile == "" {
		writers = append(writers, os.Stderr)
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		cleanup = func() { _ = f.Close() }
	}

	logger := newLogger(io.MultiWriter(writers...), component, parseLevel(level))
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

func newLogger(w io.Writer, component string, lvl slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler).With("component", component)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
