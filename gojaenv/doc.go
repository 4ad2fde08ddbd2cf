// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package gojaenv implements [jsenv.Engine] over a host-owned
// [goja.Runtime], including a debugger session speaking a small subset of the
// Chrome DevTools Protocol.
//
// Importing the package registers [Entry] under [jsenv.DefaultLibraryName],
// so that [jsenv.Load] resolves to it without a plugin:
//
//	engine, err := jsenv.Load(&gojaenv.Host{Runtime: goja.New()}, jsenv.Version)
//
// # Threading
//
// Like the runtime it wraps, an engine must only be used from one goroutine
// at a time, normally a single event loop. Release callbacks for weak
// references, external array buffers and class finalizers are queued by the
// garbage collector, and run at the start of the next outermost call to
// ExecuteScript or CallFunction, or via [Engine.RunPendingCallbacks].
//
// # Debugging
//
// Scripts executed while an inspector session exists are instrumented: a
// probe call is spliced in ahead of every statement, on the same line, so
// that the session can pause between statements. Pausing blocks the engine
// goroutine inside [jsenv.InspectorClient.RunMessageLoopOnPause].
package gojaenv
