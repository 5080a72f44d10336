package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Init initializes the global logger. Logs go to stderr so command output on
// stdout stays clean; if logFilePath is non-empty they are also appended to
// that file. level can be "debug", "info", "warn", "error" (default "warn",
// a CLI should be quiet unless asked).
func Init(logFilePath, level string) (func(), error) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	var writers []io.Writer
	writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	var f *os.File
	if logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		var err error
		// 0600: log lines may carry e-mail addresses and request paths
		f, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, err
		}
		writers = append(writers, f)
	}
	Log = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return func() {
		if f != nil {
			_ = f.Close()
		}
	}, nil
}

// ParseLevel maps a level name to a zerolog level. Unknown names fall back to warn.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	return zerolog.WarnLevel
}

// Log is the package-global logger configured by Init
var Log = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Get returns a pointer to the package-global logger
func Get() *zerolog.Logger {
	return &Log
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
