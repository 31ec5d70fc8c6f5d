// Package logger builds the process-wide slog handler: a tinted console
// handler, optionally teed into a size-rotated log file.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Level     slog.Level
	LogToFile bool
	LogFile   string
}

type Option func(*Options)

func WithLevel(level slog.Level) Option {
	return func(o *Options) { o.Level = level }
}

func WithLogToFile(enabled bool) Option {
	return func(o *Options) { o.LogToFile = enabled }
}

func WithLogFile(path string) Option {
	return func(o *Options) { o.LogFile = path }
}

// New constructs a slog.Logger with the given options applied.
func New(opts ...Option) *slog.Logger {
	options := Options{
		Level:   slog.LevelInfo,
		LogFile: "logs/edgesr.log",
	}
	for _, opt := range opts {
		opt(&options)
	}

	var w io.Writer = os.Stderr
	if options.LogToFile {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   options.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		})
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      options.Level,
		TimeFormat: time.TimeOnly,
	}))
}
