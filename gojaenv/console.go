// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaenv

import (
	"fmt"

	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-jsenv/logging"
	"github.com/joeycumines/logiface"
)

// ConsolePrinter receives formatted console output.
type ConsolePrinter interface {
	Log(string)
	Warn(string)
	Error(string)
}

type consolePrinter struct {
	e *Engine
}

func (x consolePrinter) Log(s string)   { x.e.consoleMessage("log", s) }
func (x consolePrinter) Warn(s string)  { x.e.consoleMessage("warning", s) }
func (x consolePrinter) Error(s string) { x.e.consoleMessage("error", s) }

func (e *Engine) enableConsole() error {
	registry := require.NewRegistry()
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(consolePrinter{e}))
	registry.Enable(e.rt)
	if ex := e.rt.Try(func() { console.Enable(e.rt) }); ex != nil {
		return fmt.Errorf("gojaenv: enable console: %w", ex)
	}
	return nil
}

// consoleMessage fans a console call out to logging, the configured printer
// and any session. The type is as reported by Runtime.consoleAPICalled.
func (e *Engine) consoleMessage(typ, msg string) {
	level := logiface.LevelInformational
	switch typ {
	case "warning":
		level = logiface.LevelWarning
	case "error":
		level = logiface.LevelError
	}
	logging.L().Build(level).
		Str("tag", "console").
		Log(msg)

	if p := e.opts.printer; p != nil {
		switch typ {
		case "warning":
			p.Warn(msg)
		case "error":
			p.Error(msg)
		default:
			p.Log(msg)
		}
	}

	if e.session != nil {
		e.session.consoleAPICalled(typ, msg)
	}
}
