package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logger configuration.
type Config struct {
	Level     slog.Level
	Format    string // "json" or "text"
	AddSource bool
	Output    io.Writer
}

// FromEnv reads LOG_LEVEL (debug|info|warn|error) and LOG_FORMAT (json|text).
// Unknown values fall back to info and json.
func FromEnv() Config {
	cfg := Config{
		Level:     slog.LevelInfo,
		Format:    "json",
		AddSource: true,
		Output:    os.Stdout,
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(lvl)); err == nil {
			cfg.Level = l
		}
	}

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		cfg.Format = "text"
	}

	return cfg
}

// New creates a configured slog.Logger.
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	return slog.New(handler)
}

// WithComponent returns a logger with a component attribute.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// Discard returns a logger that writes nowhere, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
