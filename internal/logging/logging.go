// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures structured logging for ragchat.
//
// Every package obtains a component logger through For. Until Init is called
// the global logger discards everything, so library code and tests stay quiet
// and the TUI never has log lines written over it.
//
// # Usage
//
//	closer, err := logging.Init(logging.Config{Level: "debug", Path: "~/.ragchat/ragchat.log"})
//	if err != nil { ... }
//	defer closer.Close()
//
//	log := logging.For("api")
//	log.Debug().Str("path", "/conversations/").Msg("request")
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds logger configuration.
type Config struct {
	Level      string    // debug, info, warn, error, disabled
	Pretty     bool      // console writer instead of JSON lines
	Output     io.Writer // takes precedence over Path
	Path       string    // log file, "~" expanded; empty with nil Output means stderr
	WithCaller bool
}

// ParseLevel maps a level name to a zerolog level. Unknown names fall back to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// =============================================================================
// LOGGER CONSTRUCTION
// =============================================================================

// New creates a logger writing to output.
func New(cfg Config, output io.Writer) zerolog.Logger {
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "ragchat").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}
	return zlog
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

var (
	mu     sync.RWMutex
	global = zerolog.Nop()
)

// Init builds the global logger from cfg. The returned closer releases the
// log file, if one was opened.
func Init(cfg Config) (io.Closer, error) {
	output := cfg.Output
	var closer io.Closer = nopCloser{}

	if output == nil && cfg.Path != "" {
		f, err := OpenFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		output, closer = f, f
	}

	logger := New(cfg, output)

	mu.Lock()
	global = logger
	mu.Unlock()
	return closer, nil
}

// SetGlobal replaces the global logger.
func SetGlobal(logger zerolog.Logger) {
	mu.Lock()
	global = logger
	mu.Unlock()
}

// Global returns the global logger.
func Global() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// For returns a sub-logger tagged with a component name.
func For(component string) zerolog.Logger {
	return Global().With().Str("component", component).Logger()
}

// OpenFile opens a log file for appending, creating parent directories.
func OpenFile(path string) (*os.File, error) {
	path = ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
