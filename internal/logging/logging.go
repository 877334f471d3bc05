package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	// debug, info, warn, error; falls back to WARDEN_LOG_LEVEL, then "info"
	Level string
	// text or json; falls back to WARDEN_LOG_FMT, then "json"
	Format string
	// "" or "-" for stdout
	Path string
}

func firstenv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %#v", s)
	}
}

// Setup builds a logger from options and WARDEN_LOG_* env vars, and installs it as the slog default.
//
// WARDEN_LOG_LEVEL=debug|info|warn|error
//
// WARDEN_LOG_FMT=text|json
//
// WARDEN_LOG_FILE=path (or "-" or "" for stdout)
func Setup(opts Options) (*slog.Logger, error) {
	if opts.Level == "" {
		opts.Level = firstenv("WARDEN_LOG_LEVEL", "LOG_LEVEL")
	}
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	hopts := slog.HandlerOptions{Level: level}

	if opts.Format == "" {
		opts.Format = firstenv("WARDEN_LOG_FMT")
	}
	if opts.Format == "" {
		opts.Format = "json"
	}

	if opts.Path == "" {
		opts.Path = firstenv("WARDEN_LOG_FILE")
	}
	var out io.Writer = os.Stdout
	if opts.Path != "" && opts.Path != "-" {
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", opts.Path, err)
		}
		out = f
	}

	logger, err := newLogger(out, strings.ToLower(opts.Format), &hopts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

func newLogger(out io.Writer, format string, hopts *slog.HandlerOptions) (*slog.Logger, error) {
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(out, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(out, hopts)), nil
	default:
		return nil, fmt.Errorf("unknown log format: %#v", format)
	}
}
