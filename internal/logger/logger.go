package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the process-wide logger. JSON to stderr in production,
// ConsoleWriter when running locally.
func New(component string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("component", component).
		Logger()

	if os.Getenv("ENV") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return logger
}
