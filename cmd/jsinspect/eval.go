// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-jsenv/gojaenv"
	"github.com/joeycumines/go-jsenv/inspector"
	"github.com/joeycumines/go-utilpkg/jsonenc"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// errEvalFailed is returned for failed evaluations, the cause having been
// logged.
var errEvalFailed = errors.New("evaluation failed")

func newEvalCommand(root *rootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression, printing the result",
		Long: `Evaluate an expression on a fresh engine, without serving it.

The result is converted with String(), unless --raw is set, in which case
the expression must itself evaluate to a string.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := root.load(cmd); err != nil {
				return err
			}
			code := args[0]
			if !raw {
				code = stringify(code)
			}
			return evalScript(cmd.Context(), cmd.OutOrStdout(), code)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "require a string result, rather than converting it")

	return cmd
}

// stringify wraps expr so that it evaluates to its string conversion.
func stringify(expr string) string {
	b := append([]byte("String(eval("), jsonenc.AppendString(nil, expr)...)
	return string(append(b, "))"...))
}

func evalScript(ctx context.Context, out io.Writer, code string) error {
	loop, err := eventloop.New()
	if err != nil {
		return err
	}
	bridge, err := inspector.New(0, nil)
	if err != nil {
		return err
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error { return stopped(loop.Run(loopCtx)) })

	result, err := evalOnBridge(ctx, loopExecutor(loop), bridge, code)
	bridge.Destroy()
	stopLoop()
	if err := errors.Join(err, g.Wait()); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, result)
	return err
}

func evalOnBridge(ctx context.Context, exec inspector.Executor, bridge *inspector.Bridge, code string) (string, error) {
	host := &gojaenv.Host{Runtime: goja.New()}
	if err := onLoop(ctx, exec, func() error { return bridge.AttachEngine(host, exec, false) }); err != nil {
		return "", err
	}
	result, ok := bridge.ExecuteDiagnosticScript(ctx, code)
	if !ok {
		return "", errEvalFailed
	}
	return result, nil
}
