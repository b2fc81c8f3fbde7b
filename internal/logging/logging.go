// Package logging builds the process slog.Logger and lets the logging
// configuration change while the service runs.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes log level, format and optional rotated file output.
type Config struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file_path"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxFiles   int    `yaml:"file_max_files"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// DefaultConfig logs JSON at info level to stdout.
func DefaultConfig() Config {
	return Config{
		Level:          "info",
		Format:         "json",
		FileMaxSizeMB:  100,
		FileMaxFiles:   3,
		FileMaxAgeDays: 30,
	}
}

// Validate reports an unknown level or format.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", "json", "text":
		return nil
	default:
		return fmt.Errorf("unknown log format %q: want json or text", c.Format)
	}
}

// switchHandler forwards to an inner handler that Apply can replace.
// Loggers derived with With keep following the swap because the
// attributes are recorded here and re-applied to whatever is current.
type switchHandler struct {
	inner *atomic.Pointer[slog.Handler]
	attrs []slog.Attr
	group string
}

func (h *switchHandler) current() slog.Handler {
	inner := *h.inner.Load()
	if len(h.attrs) > 0 {
		inner = inner.WithAttrs(h.attrs)
	}
	if h.group != "" {
		inner = inner.WithGroup(h.group)
	}
	return inner
}

func (h *switchHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*h.inner.Load()).Enabled(ctx, level)
}

func (h *switchHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.current().Handle(ctx, r)
}

func (h *switchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if h.group != "" {
		// Attributes added after a group belong inside it; pin the chain.
		return h.current().WithAttrs(attrs)
	}
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &switchHandler{inner: h.inner, attrs: merged}
}

func (h *switchHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	if h.group != "" {
		return h.current().WithGroup(name)
	}
	return &switchHandler{inner: h.inner, attrs: h.attrs, group: name}
}

// Manager owns the root logger and its output.
type Manager struct {
	mu     sync.Mutex
	level  *slog.LevelVar
	inner  atomic.Pointer[slog.Handler]
	logger *slog.Logger
	stdout io.Writer
	config Config
	file   io.Closer
}

// New creates a Manager configured by cfg.
func New(cfg Config) (*Manager, error) {
	return newManager(cfg, os.Stdout)
}

// NewWithWriter is New with console output sent to w instead of stdout.
func NewWithWriter(cfg Config, w io.Writer) (*Manager, error) {
	return newManager(cfg, w)
}

func newManager(cfg Config, stdout io.Writer) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{level: &slog.LevelVar{}, stdout: stdout}
	m.install(cfg)
	m.logger = slog.New(&switchHandler{inner: &m.inner})
	return m, nil
}

// Logger returns the root logger. It stays valid across Apply calls.
func (m *Manager) Logger() *slog.Logger { return m.logger }

// Apply switches to cfg. A level change takes effect immediately; a format
// or file change rebuilds the output handler and closes the old log file.
func (m *Manager) Apply(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.config
	if cfg == old {
		return nil
	}
	if sameOutput(cfg, old) {
		lvl, _ := ParseLevel(cfg.Level)
		m.level.Set(lvl)
		m.config = cfg
		return nil
	}
	if m.file != nil {
		_ = m.file.Close()
		m.file = nil
	}
	m.install(cfg)
	return nil
}

func sameOutput(a, b Config) bool {
	a.Level, b.Level = "", ""
	return a == b
}

// install builds a handler for cfg. Callers hold m.mu or own m exclusively.
func (m *Manager) install(cfg Config) {
	lvl, _ := ParseLevel(cfg.Level)
	m.level.Set(lvl)

	var w io.Writer = m.stdout
	if cfg.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.FileMaxSizeMB, 100),
			MaxBackups: orDefault(cfg.FileMaxFiles, 3),
			MaxAge:     orDefault(cfg.FileMaxAgeDays, 30),
		}
		w = io.MultiWriter(m.stdout, lj)
		m.file = lj
	}

	opts := &slog.HandlerOptions{Level: m.level}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	m.inner.Store(&h)
	m.config = cfg
}

// Config returns the active configuration.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Close closes the log file, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// ParseLevel converts a level name to a slog.Level. An empty name means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
