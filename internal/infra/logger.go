package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs the service logger. Development gets a console writer
// at debug level; everything else emits JSON at info. Every line carries the
// service tag so export pipeline logs stay attributable when aggregated.
func NewLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	out := io.Writer(os.Stdout)
	if appEnv == "development" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "gallery").
		Logger()
}

// Logger aliases zerolog.Logger so callers outside the infra package can
// depend on the logging contract without importing the third-party module
// directly.
type Logger = zerolog.Logger
