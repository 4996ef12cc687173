// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging wraps charmbracelet/log with the configuration the
// agent and control server share: a level, an optional file sink, and a
// fixed key-value call convention (logger.Info(msg, "key", val, ...)).
package logging

import (
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the structured logger used throughout the agent and control
// server. It is a thin wrapper so call sites depend on this package, not
// directly on charmbracelet/log.
type Logger struct {
	*charmlog.Logger
}

// Config controls logger construction.
type Config struct {
	Level      string // "debug", "info", "warn", "error"
	FilePath   string // optional file sink; empty disables it
	ReportTime bool
	Prefix     string
}

// DefaultConfig returns the default logging configuration: info level,
// stderr only, timestamps on.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		ReportTime: true,
		Prefix:     "focusshield",
	}
}

// New builds a Logger from cfg. Environment variable FOCUSSHIELD_LOG_LEVEL
// overrides cfg.Level when set.
func New(cfg Config) *Logger {
	if envLevel := os.Getenv("FOCUSSHIELD_LOG_LEVEL"); envLevel != "" {
		cfg.Level = envLevel
	}

	var out io.Writer = os.Stderr
	if cfg.FilePath != "" {
		if f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600); err == nil {
			out = io.MultiWriter(os.Stderr, f)
		}
	}

	l := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: cfg.ReportTime,
		Prefix:          cfg.Prefix,
	})
	l.SetLevel(parseLevel(cfg.Level))

	return &Logger{Logger: l}
}

func parseLevel(s string) charmlog.Level {
	switch s {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// With returns a child logger with additional key-value pairs attached to
// every subsequent line, matching charmbracelet/log's With semantics.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{Logger: l.Logger.With(keyvals...)}
}
