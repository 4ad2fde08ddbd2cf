// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package inspector bridges a remote debugger to a [jsenv.Engine], by way of
// the engine's [jsenv.InspectorSession].
//
// A [Bridge] is created per debuggable execution context, and survives
// reloads: the engine may be detached and attached again, each attach
// creating a fresh session. Outbound traffic is delivered to a [Peer].
//
// # Threading
//
// All engine and session calls happen on the engine goroutine, being the
// goroutine that called [Bridge.AttachEngine], normally an event loop.
// Inbound messages may arrive on any goroutine. They are queued, and
// dispatched in arrival order, either inline (on the engine goroutine), via
// the [Executor] given at attach, or by the pause loop while the engine is
// blocked at a breakpoint.
package inspector
