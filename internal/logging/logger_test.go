// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"bytes"
	"os"
	"testing"

	charmlog "github.com/charmbracelet/log"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("expected info level, got %s", cfg.Level)
	}
	if !cfg.ReportTime {
		t.Error("expected ReportTime true")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]charmlog.Level{
		"debug":   charmlog.DebugLevel,
		"warn":    charmlog.WarnLevel,
		"warning": charmlog.WarnLevel,
		"error":   charmlog.ErrorLevel,
		"":        charmlog.InfoLevel,
		"bogus":   charmlog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := t.TempDir() + "/test.log"
	logger := New(Config{Level: "debug", FilePath: path})
	logger.Info("hello", "key", "value")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte("hello")) {
		t.Errorf("expected log file to contain message, got %s", data)
	}
}
