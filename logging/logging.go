// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package logging is the process-wide logging facility: a minimum-severity
// filter over five levels, gating both a printf-style sink and a structured
// [logiface] logger backed by [stumpy].
//
// Level and output changes apply immediately, to every caller.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Level is the severity of a message.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelFatal is the most severe level. Logging at it does not exit.
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Level(%d)", int32(l))
	}
}

// ParseLevel parses the (case-insensitive) name of a level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", s)
	}
}

// Logiface maps the level onto the equivalent [logiface.Level].
func (l Level) Logiface() logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	case LevelFatal:
		return logiface.LevelCritical
	default:
		if l < LevelDebug {
			return logiface.LevelTrace
		}
		return logiface.LevelEmergency
	}
}

type syncWriter struct {
	w  io.Writer
	mu sync.Mutex
}

func (x *syncWriter) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.w.Write(p)
}

var global struct {
	logger atomic.Pointer[logiface.Logger[logiface.Event]]
	custom *logiface.Logger[logiface.Event]
	writer io.Writer
	mu     sync.Mutex
	level  atomic.Int32
}

func init() {
	global.writer = os.Stderr
	global.level.Store(int32(LevelInfo))
	rebuild()
}

// rebuild must be called with global.mu held, except from init.
func rebuild() {
	if global.custom != nil {
		global.logger.Store(global.custom)
		return
	}
	level := Level(global.level.Load())
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&syncWriter{w: global.writer})),
		stumpy.L.WithLevel(level.Logiface()),
	)
	global.logger.Store(logger.Logger())
}

// L returns the current process-wide logger. Callers should not retain it,
// since level and output changes replace it.
func L() *logiface.Logger[logiface.Event] {
	return global.logger.Load()
}

// SetLevel sets the minimum severity that is logged.
func SetLevel(level Level) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.level.Store(int32(level))
	rebuild()
}

// GetLevel returns the minimum severity that is logged.
func GetLevel() Level {
	return Level(global.level.Load())
}

// Enabled reports whether messages at level are currently logged.
func Enabled(level Level) bool {
	return level >= GetLevel()
}

// SetOutput directs all subsequent output, as JSON lines, to w, returning
// the previous writer. A nil w restores [os.Stderr].
func SetOutput(w io.Writer) io.Writer {
	if w == nil {
		w = os.Stderr
	}
	global.mu.Lock()
	defer global.mu.Unlock()
	prev := global.writer
	global.writer = w
	rebuild()
	return prev
}

// SetLogger installs logger as the process-wide logger, replacing the stumpy
// backend until it is called again with nil. Messages below [GetLevel] are
// still filtered by [Logf], but structured callers of [L] are subject only to
// logger's own level.
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.custom = logger
	rebuild()
}

// Logf is the printf-style sink, logging the formatted message at level
// with the given tag.
func Logf(level Level, tag, format string, args ...any) {
	if !Enabled(level) {
		return
	}
	L().Build(level.Logiface()).
		Str("tag", tag).
		Logf(format, args...)
}

func Debugf(tag, format string, args ...any) { Logf(LevelDebug, tag, format, args...) }

func Infof(tag, format string, args ...any) { Logf(LevelInfo, tag, format, args...) }

func Warnf(tag, format string, args ...any) { Logf(LevelWarn, tag, format, args...) }

func Errorf(tag, format string, args ...any) { Logf(LevelError, tag, format, args...) }

func Fatalf(tag, format string, args ...any) { Logf(LevelFatal, tag, format, args...) }
