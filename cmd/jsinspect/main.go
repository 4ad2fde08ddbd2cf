// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Command jsinspect runs scripts on a goja engine, exposing them to Chrome
// DevTools Protocol clients.
//
// Usage:
//
//	jsinspect run [--listen addr] [--config file.yaml] [--wait] script.js
//	jsinspect eval expression
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "jsinspect:", err)
		os.Exit(1)
	}
}
