// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cdp

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
)

type serverOptions struct {
	limiter      *catrate.Limiter
	writeTimeout time.Duration
}

// Option configures a [Server].
type Option interface {
	applyServer(*serverOptions) error
}

type serverOptionImpl struct {
	applyServerFunc func(*serverOptions) error
}

func (o *serverOptionImpl) applyServer(opts *serverOptions) error {
	return o.applyServerFunc(opts)
}

// WithInboundRates limits the rate of inbound messages, per connection.
// Messages over the limit are delayed, not dropped. The rates are as per
// [catrate.NewLimiter], and nil disables the limit.
func WithInboundRates(rates map[time.Duration]int) Option {
	return &serverOptionImpl{func(opts *serverOptions) (err error) {
		if len(rates) == 0 {
			opts.limiter = nil
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("cdp: %v", r)
			}
		}()
		opts.limiter = catrate.NewLimiter(rates)
		return nil
	}}
}

// WithWriteTimeout bounds each outbound websocket write. Zero disables the
// timeout.
func WithWriteTimeout(d time.Duration) Option {
	return &serverOptionImpl{func(opts *serverOptions) error {
		if d < 0 {
			return fmt.Errorf("cdp: negative write timeout %s", d)
		}
		opts.writeTimeout = d
		return nil
	}}
}

func resolveServerOptions(opts []Option) (*serverOptions, error) {
	cfg := &serverOptions{
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 200,
			time.Minute: 6000,
		}),
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyServer(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
