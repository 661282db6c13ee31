// Package logging builds the slog.Logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "charm.land/log/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pario-ai/frugal/pkg/config"
)

// New returns a logger writing leveled, human-readable lines to w. When
// cfg.File is set, records are also written as JSON to a rotating file.
// The returned closer flushes and closes that file.
func New(cfg config.LogConfig, w io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if w == nil {
		w = os.Stderr
	}

	formatter := charmlog.TextFormatter
	if cfg.JSON {
		formatter = charmlog.JSONFormatter
	}
	console := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		Formatter:       formatter,
	})
	if cfg.File == "" {
		return slog.New(console), nopCloser{}, nil
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	file := charmlog.NewWithOptions(rotating, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		Formatter:       charmlog.JSONFormatter,
	})
	return slog.New(fanout{console, file}), rotating, nil
}

// ParseLevel accepts debug, info, warn, warning and error. An empty level
// is info.
func ParseLevel(s string) (charmlog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return charmlog.DebugLevel, nil
	case "", "info":
		return charmlog.InfoLevel, nil
	case "warn", "warning":
		return charmlog.WarnLevel, nil
	case "error":
		return charmlog.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
