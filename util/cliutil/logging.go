package cliutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type LogOptions struct {
	// text|json
	LogFormat string

	// info|debug|warn|error
	LogLevel string

	// path to write to; "" or "-" for stdout
	LogPath string
}

func firstenv(envVarNames ...string) string {
	for _, name := range envVarNames {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %#v", s)
	}
}

// SetupSlog integrates passed in options and env vars, and sets the result as the slog default.
//
// passing default cliutil.LogOptions{} is ok.
//
// BAILIFF_LOG_LEVEL=info|debug|warn|error
//
// BAILIFF_LOG_FMT=text|json
//
// BAILIFF_LOG_FILE=path (or "-" or "" for stdout)
func SetupSlog(options LogOptions) (*slog.Logger, error) {
	if options.LogLevel == "" {
		options.LogLevel = firstenv("BAILIFF_LOG_LEVEL", "LOG_LEVEL")
	}
	level, err := ParseLogLevel(options.LogLevel)
	if err != nil {
		return nil, err
	}
	hopts := slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if options.LogFormat == "" {
		options.LogFormat = firstenv("BAILIFF_LOG_FMT", "LOG_FMT")
	}
	if options.LogFormat == "" {
		options.LogFormat = "text"
	}
	options.LogFormat = strings.ToLower(options.LogFormat)

	if options.LogPath == "" {
		options.LogPath = os.Getenv("BAILIFF_LOG_FILE")
	}
	var out io.Writer
	if options.LogPath == "" || options.LogPath == "-" {
		out = os.Stdout
	} else {
		f, err := os.OpenFile(options.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", options.LogPath, err)
		}
		out = f
	}

	var handler slog.Handler
	switch options.LogFormat {
	case "text":
		handler = slog.NewTextHandler(out, &hopts)
	case "json":
		handler = slog.NewJSONHandler(out, &hopts)
	default:
		return nil, fmt.Errorf("invalid log format: %#v", options.LogFormat)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
