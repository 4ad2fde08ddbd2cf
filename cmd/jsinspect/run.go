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
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-jsenv"
	"github.com/joeycumines/go-jsenv/cdp"
	"github.com/joeycumines/go-jsenv/gojaenv"
	"github.com/joeycumines/go-jsenv/inspector"
	"github.com/joeycumines/go-jsenv/logging"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// runOptions holds flags for the run command.
type runOptions struct {
	*rootOptions
	listen    string
	wait      bool
	keepAlive bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a script, serving it to debuggers",
		Long: `Run a script on a goja engine, serving it to Chrome DevTools Protocol
clients while it runs.

Scripts may be UTF-8, or UTF-16 with a byte order mark.

Example:
  jsinspect run --wait app.js
  jsinspect run --listen 0.0.0.0:9229 --keep-alive app.js`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Listen = opts.listen
			}
			if flags.Changed("wait") {
				cfg.Wait = opts.wait
			}
			if flags.Changed("keep-alive") {
				cfg.KeepAlive = opts.keepAlive
			}
			return runScript(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.listen, "listen", defaultConfig().Listen, "address to serve debuggers on")
	cmd.Flags().BoolVar(&opts.wait, "wait", false, "wait for a debugger before running the script")
	cmd.Flags().BoolVar(&opts.keepAlive, "keep-alive", false, "keep serving after the script completes, until interrupted")

	return cmd
}

func runScript(ctx context.Context, stdout, stderr io.Writer, cfg config, path string) error {
	src, err := readScript(path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	scriptURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	title := cfg.Title
	if title == "" {
		title = filepath.Base(path)
	}

	server, err := cdp.NewServer(cdp.WithInboundRates(cfg.inboundRates()))
	if err != nil {
		return err
	}
	var (
		ready     = make(chan struct{})
		readyOnce sync.Once
	)
	target, err := server.AddTarget(title, scriptURL, inspector.WithRunIfWaitingForDebugger(func() {
		readyOnce.Do(func() { close(ready) })
	}))
	if err != nil {
		return err
	}

	loop, err := eventloop.New()
	if err != nil {
		server.Close()
		return err
	}
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		server.Close()
		return err
	}
	httpServer := &http.Server{Handler: server, ReadHeaderTimeout: 10 * time.Second}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return stopped(loop.Run(context.Background()))
	})
	g.Go(func() error {
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// bridges detach on the loop, so it stops last
		server.Close()
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		return errors.Join(httpServer.Shutdown(sctx), stopped(loop.Shutdown(sctx)))
	})

	fmt.Fprintf(stderr, "Debugger listening on ws://%s/devtools/page/%s\n", ln.Addr(), target.ID)

	g.Go(func() error {
		if !cfg.KeepAlive {
			defer cancel()
		}
		return execute(gctx, stdout, loopExecutor(loop), target.Bridge(), cfg, src, scriptURL, ready)
	})
	return g.Wait()
}

// execute attaches an engine to bridge, then runs src on it, once ready is
// closed if waiting.
func execute(ctx context.Context, out io.Writer, exec inspector.Executor, bridge *inspector.Bridge, cfg config, src, fileName string, ready <-chan struct{}) error {
	host := &gojaenv.Host{
		Runtime: goja.New(),
		Options: []gojaenv.Option{gojaenv.WithInstrumentAll(cfg.InstrumentAll)},
	}
	if err := onLoop(ctx, exec, func() error { return bridge.AttachEngine(host, exec, false) }); err != nil {
		return stopped(err)
	}

	if cfg.Wait {
		logging.L().Info().
			Str("tag", logTag).
			Log("waiting for debugger")
		select {
		case <-ready:
		case <-ctx.Done():
			return nil
		}
	}

	return stopped(onLoop(ctx, exec, func() error {
		engine := bridge.Engine()
		if engine == nil {
			return errors.New("engine detached before the script ran")
		}
		var result jsenv.Value
		defer result.Reset()
		if !jsenv.Execute(engine, src, &result, fileName, 1) {
			exception := engine.GetException()
			engine.ClearException()
			return fmt.Errorf("%s: %w", fileName, exception)
		}
		_, err := fmt.Fprintln(out, result.String())
		return err
	}))
}
