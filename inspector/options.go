// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package inspector

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-jsenv"
)

type bridgeOptions struct {
	warn    *catrate.Limiter
	waiting func()
	loader  []jsenv.LoaderOption
	version int
}

// Option configures a [Bridge].
type Option interface {
	applyBridge(*bridgeOptions) error
}

type bridgeOptionImpl struct {
	applyBridgeFunc func(*bridgeOptions) error
}

func (o *bridgeOptionImpl) applyBridge(opts *bridgeOptions) error {
	return o.applyBridgeFunc(opts)
}

// WithLoaderOptions are passed to [jsenv.Load] on every attach.
func WithLoaderOptions(opts ...jsenv.LoaderOption) Option {
	return &bridgeOptionImpl{func(o *bridgeOptions) error {
		o.loader = append(o.loader, opts...)
		return nil
	}}
}

// WithVersion overrides the engine version requested on attach, which
// defaults to [jsenv.Version].
func WithVersion(version int) Option {
	return &bridgeOptionImpl{func(o *bridgeOptions) error {
		if version <= 0 {
			return fmt.Errorf("inspector: invalid version %d", version)
		}
		o.version = version
		return nil
	}}
}

// WithWarningRates limits how often misuse warnings, such as messages
// received with no engine attached, are logged. The rates are as per
// [catrate.NewLimiter], and nil disables the limit.
func WithWarningRates(rates map[time.Duration]int) Option {
	return &bridgeOptionImpl{func(o *bridgeOptions) (err error) {
		if len(rates) == 0 {
			o.warn = nil
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("inspector: %v", r)
			}
		}()
		o.warn = catrate.NewLimiter(rates)
		return nil
	}}
}

// WithRunIfWaitingForDebugger sets a hook called, on the engine goroutine,
// when the debugger sends Runtime.runIfWaitingForDebugger. It must not
// re-enter the engine.
func WithRunIfWaitingForDebugger(fn func()) Option {
	return &bridgeOptionImpl{func(o *bridgeOptions) error {
		o.waiting = fn
		return nil
	}}
}

func resolveBridgeOptions(opts []Option) (*bridgeOptions, error) {
	cfg := &bridgeOptions{
		version: jsenv.Version,
		warn: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		}),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyBridge(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
