// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaenv

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-jsenv"
	"github.com/joeycumines/go-jsenv/logging"
)

const logTag = "gojaenv"

func init() {
	jsenv.Register(jsenv.DefaultLibraryName, Entry)
}

// Host is the [jsenv.Handle] accepted by [Entry]. The runtime remains owned by
// the host.
type Host struct {
	Runtime *goja.Runtime
	Options []Option
}

// Option configures an [Engine].
type Option interface {
	applyEngine(*engineOptions) error
}

type engineOptions struct {
	printer       ConsolePrinter
	console       bool
	instrumentAll bool
}

type engineOptionImpl struct {
	applyEngineFunc func(*engineOptions) error
}

func (o *engineOptionImpl) applyEngine(opts *engineOptions) error {
	return o.applyEngineFunc(opts)
}

// WithConsole controls whether a global console is installed, via a
// goja_nodejs require registry. It is enabled by default. Disable it if the
// host enables its own registry on the runtime.
func WithConsole(enabled bool) Option {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.console = enabled
		return nil
	}}
}

// WithConsolePrinter receives console output, in addition to the logging
// facility and any inspector session.
func WithConsolePrinter(printer ConsolePrinter) Option {
	return &engineOptionImpl{func(opts *engineOptions) error {
		if printer == nil {
			return fmt.Errorf("gojaenv: nil console printer")
		}
		opts.printer = printer
		return nil
	}}
}

// WithInstrumentAll instruments every executed script, rather than only those
// executed while an inspector session exists. Breakpoints may then be set in
// scripts that ran before the session was created.
func WithInstrumentAll(enabled bool) Option {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.instrumentAll = enabled
		return nil
	}}
}

func resolveEngineOptions(opts []Option) (*engineOptions, error) {
	cfg := &engineOptions{console: true}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyEngine(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Entry is the [jsenv.EntryFunc] of this package. It accepts only
// [jsenv.Version], and a *[Host] with a non-nil runtime.
func Entry(handle jsenv.Handle, version int) jsenv.Engine {
	if version != jsenv.Version {
		return nil
	}
	host, ok := handle.(*Host)
	if !ok || host == nil || host.Runtime == nil {
		logging.L().Err().
			Str("tag", logTag).
			Str("handle", fmt.Sprintf("%T", handle)).
			Log("unsupported engine handle")
		return nil
	}
	engine, err := New(host.Runtime, host.Options...)
	if err != nil {
		logging.L().Err().
			Str("tag", logTag).
			Err(err).
			Log("engine init failed")
		return nil
	}
	return engine
}
