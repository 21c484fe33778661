// Package logx wraps zerolog with the same four message classes the
// teacher's utils.DecorateText distinguishes (Default, Success, Error,
// Status), generalized from ANSI terminal decoration into structured
// log levels (SPEC_FULL.md AMBIENT STACK).
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds a console-friendly zerolog.Logger writing to w (os.Stderr
// by default), matching the teacher's choice of stderr for status
// output (exec.go).
func New(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return zerolog.New(console).With().Timestamp().Logger()
}

// Status logs a StatusMessage-class line: subsystem progress, matching
// the teacher's "⚡ CAIRE ⇢ resizing image..." convention.
func Status(log zerolog.Logger, subsystem, msg string) {
	log.Info().Str("subsystem", subsystem).Msg(msg)
}

// Success logs a SuccessMessage-class line.
func Success(log zerolog.Logger, subsystem, msg string) {
	log.Info().Str("subsystem", subsystem).Str("result", "ok").Msg(msg)
}

// Failure logs an ErrorMessage-class line.
func Failure(log zerolog.Logger, subsystem string, err error) {
	log.Error().Str("subsystem", subsystem).Err(err).Msg("failed")
}
