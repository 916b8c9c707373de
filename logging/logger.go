package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var RootLogger zerolog.Logger = zerolog.New(
	zerolog.NewConsoleWriter(
		func(w *zerolog.ConsoleWriter) { w.Out = os.Stderr },
		func(w *zerolog.ConsoleWriter) { w.TimeFormat = "15:04:05.000" })).Level(zerolog.WarnLevel).
	With().Timestamp().Logger()

// SetLevel changes the level of the root logger. Loggers derived before the
// call keep their level, so it should run before any component is built.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return err
	}
	RootLogger = RootLogger.Level(lvl)
	return nil
}
