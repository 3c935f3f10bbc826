// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for Aleutian components.
//
// The logger is built on the standard library slog package with two output
// layers:
//
//   - Default: stderr output for CLI compatibility (follows Unix conventions)
//   - Optional: JSON file logging with automatic directory creation
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("starting session", "session_id", sessionID)
//
// # File Logging
//
//	logger, err := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.aleutian/logs",  // Supports ~ expansion
//	    Service: "aleutiandata",
//	})
//	defer logger.Close()
//
// File logs are named {service}_{date}.log in JSON format.
//
// # Thread Safety
//
// Logger is safe for concurrent use; the underlying slog handlers are
// thread-safe and Close is idempotent.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Log levels, matching slog conventions.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Config controls logger construction. The zero value logs at info level to
// stderr only.
type Config struct {
	// Level is one of the Level* constants. Unknown values fall back to
	// info.
	Level string

	// LogDir enables file logging when set. Supports a leading "~".
	LogDir string

	// Service names the log file: {service}_{date}.log.
	Service string
}

// Logger wraps slog.Logger with file lifecycle management.
type Logger struct {
	*slog.Logger

	closeOnce sync.Once
	file      *os.File
}

// Default returns a stderr-only logger at info level.
func Default() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))}
}

// New builds a logger from the config. When LogDir is set, entries are
// duplicated to a dated JSON file in that directory.
func New(cfg Config) (*Logger, error) {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogDir == "" {
		return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, opts))}, nil
	}

	dir, err := expandHome(cfg.LogDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: failed to create log directory: %w", err)
	}

	service := cfg.Service
	if service == "" {
		service = "aleutian"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: failed to open log file: %w", err)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(os.Stderr, file), opts)
	return &Logger{Logger: slog.New(handler), file: file}, nil
}

// Close flushes and closes the log file, if any. Safe to call repeatedly.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("logging: cannot expand ~: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
