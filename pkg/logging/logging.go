// pkg/logging/logging.go

package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Internal is the diagnostic logger. It is quiet by default and is raised
// to debug level with --debug.
var Internal zerolog.Logger

// External is the user-facing logger: validation results, warnings, and
// errors the operator is expected to read.
var External zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	Internal = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()
	External = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true, PartsExclude: []string{"time"}}).
		Level(zerolog.InfoLevel)
}

// SetDebug raises the internal logger to debug level.
func SetDebug(debug bool) {
	if debug {
		Internal = Internal.Level(zerolog.DebugLevel)
	}
}

// TeeToFile duplicates both loggers to the given file, returning a closer.
// Used by oscheck to keep a persistent oscheck.log next to console output.
func TeeToFile(path string) (io.Closer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	Internal = Internal.Output(zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}, f))
	External = External.Output(zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true, PartsExclude: []string{"time"}}, f))

	return f, nil
}
