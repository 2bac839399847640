// Package logging configures the zerolog logger shared across commands
// and the serve daemon.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger writing to w. quiet raises the level so
// only warnings and errors surface, for CLI commands whose stdout is
// the report itself.
func New(w io.Writer, quiet bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	level := zerolog.InfoLevel
	if quiet {
		level = zerolog.WarnLevel
	}
	return zerolog.New(output).With().Timestamp().Logger().Level(level)
}
