// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"context"
	"errors"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-jsenv/inspector"
	"github.com/joeycumines/go-jsenv/logging"
	"github.com/spf13/cobra"
)

const logTag = "jsinspect"

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "jsinspect",
		Short:         "Run and debug scripts over the Chrome DevTools Protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "minimum log level (debug|info|warn|error|fatal)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newEvalCommand(opts))

	return cmd
}

// load reads the config file, applies flag overrides common to every
// command, and configures logging to the command's stderr.
func (o *rootOptions) load(cmd *cobra.Command) (config, error) {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, err
	}
	logging.SetOutput(cmd.ErrOrStderr())
	logging.SetLevel(level)
	return cfg, nil
}

func loopExecutor(loop *eventloop.Loop) inspector.Executor {
	return inspector.ExecutorFunc(func(fn func()) error { return loop.Submit(fn) })
}

// stopped filters the errors of a loop that was asked to stop.
func stopped(err error) error {
	if errors.Is(err, eventloop.ErrLoopTerminated) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// onLoop runs fn on the loop, waiting for its result.
func onLoop(ctx context.Context, exec inspector.Executor, fn func() error) error {
	done := make(chan error, 1)
	if err := exec.Submit(func() { done <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
