package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDefaultConfig(t *testing.T) {
	var buf bytes.Buffer
	mgr, err := newManager(DefaultConfig(), &buf)
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}
	defer mgr.Close() //nolint:errcheck

	mgr.Logger().Info("hello", slog.String("name", "Björk"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "hello" || rec["name"] != "Björk" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(Config{Level: "loud", Format: "json"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(Config{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestApplyLevel(t *testing.T) {
	var buf bytes.Buffer
	mgr, err := newManager(Config{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}
	defer mgr.Close() //nolint:errcheck
	logger := mgr.Logger()
	ctx := context.Background()

	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug should start disabled")
	}
	if err := mgr.Apply(Config{Level: "debug", Format: "json"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug should be enabled after Apply")
	}
	if err := mgr.Apply(Config{Level: "error", Format: "json"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if logger.Enabled(ctx, slog.LevelWarn) {
		t.Error("warn should be disabled at error level")
	}
}

func TestApplyFormatReachesDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	mgr, err := newManager(Config{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}
	defer mgr.Close() //nolint:errcheck

	child := mgr.Logger().With(slog.String("component", "resolver"))
	if err := mgr.Apply(Config{Level: "info", Format: "text"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	child.Info("resolved")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Errorf("expected text output after Apply, got %q", out)
	}
	if !strings.Contains(out, "component=resolver") || !strings.Contains(out, "msg=resolved") {
		t.Errorf("derived logger lost its attributes: %q", out)
	}
	if mgr.Config().Format != "text" {
		t.Errorf("Config().Format = %q, want text", mgr.Config().Format)
	}
}

func TestApplyInvalidKeepsCurrent(t *testing.T) {
	var buf bytes.Buffer
	mgr, err := newManager(Config{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}
	defer mgr.Close() //nolint:errcheck

	if err := mgr.Apply(Config{Level: "verbose", Format: "json"}); err == nil {
		t.Fatal("expected error")
	}
	if got := mgr.Config().Level; got != "warn" {
		t.Errorf("level changed to %q after a rejected Apply", got)
	}
}

func TestFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "songfix.log")
	var buf bytes.Buffer
	mgr, err := newManager(Config{Level: "info", Format: "json", FilePath: logFile, FileMaxSizeMB: 1}, &buf)
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}

	mgr.Logger().Info("to file")
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !bytes.Contains(data, []byte("to file")) {
		t.Errorf("log file missing record: %q", data)
	}
	if !strings.Contains(buf.String(), "to file") {
		t.Error("stdout should receive the record too")
	}
}

func TestCloseIdempotent(t *testing.T) {
	mgr, err := newManager(DefaultConfig(), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
