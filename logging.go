package main

import (
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newLogger builds the console logger. Every line carries the run id so two
// runs against the same root can be told apart.
func newLogger(w io.Writer, level string, noColor bool) (zerolog.Logger, string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	runID := uuid.NewString()
	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor || !isTerminal(w),
		TimeFormat: "15:04:05",
	}
	logger := zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("run_id", runID).
		Logger()
	return logger, runID
}
