// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package jsenv defines an embeddable scripting-engine abstraction: a tagged
// [Value] that crosses the native/engine boundary, the [Engine] capability
// contract, the debugger [InspectorSession] and [InspectorClient] contracts,
// and a runtime [Load]er that resolves a concrete engine by name and version.
//
// # Values
//
// A [Value] is a tagged variant. The zero value is null. Strings may borrow
// the caller's buffer, or own an independent copy obtained from the
// process-wide [Allocator]. Owned buffers are released exactly once, when the
// value is overwritten or [Value.Reset]. Values must not be copied; pass them
// by pointer, as the engine API does.
//
// # Loading engines
//
// Engines are located by library name, which defaults to
// [DefaultLibraryName] and may be overridden by the [LibraryNameEnv]
// environment variable. Names registered in-process via [Register] take
// precedence; otherwise the name is opened as a Go plugin exporting
// [EntrySymbol]. A successful [Load] adds one reference to the engine, which
// the caller gives back with [Release].
//
//	engine, err := jsenv.Load(handle, jsenv.Version)
//	if err != nil {
//	    return err
//	}
//	defer jsenv.Release(engine)
//
// # Threading
//
// An engine is owned by a single goroutine. None of the [Engine] methods are
// safe for concurrent use, and weak-reference release callbacks must not
// re-enter the engine synchronously.
package jsenv
