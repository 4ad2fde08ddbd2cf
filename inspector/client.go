// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package inspector

import (
	"github.com/joeycumines/go-jsenv"
)

// Peer is the host side of a [Bridge], typically a debugger connection.
type Peer interface {
	// SendMessage delivers an outbound protocol frame. The call id is that
	// of the command being answered, or 0 for notifications. It may be
	// called on the engine goroutine while it is paused, and must not wait
	// for inbound traffic.
	SendMessage(sessionID, callID int, message string)

	// Release is called exactly once, by [Bridge.Destroy].
	Release()
}

// Executor runs work on the engine goroutine.
type Executor interface {
	// Submit schedules fn to run on the engine goroutine. It must not run
	// fn inline.
	Submit(fn func()) error
}

// ExecutorFunc adapts a function to [Executor], e.g. an event loop:
//
//	inspector.ExecutorFunc(func(fn func()) error { return loop.Submit(fn) })
type ExecutorFunc func(fn func()) error

func (f ExecutorFunc) Submit(fn func()) error { return f(fn) }

// client adapts a bridge to the session of one attach.
type client struct {
	jsenv.UnimplementedInspectorClient
	b *Bridge
}

var _ jsenv.InspectorClient = (*client)(nil)

func (c *client) SendResponse(callID int, message string) {
	c.b.send(callID, message)
}

func (c *client) SendNotification(message string) {
	c.b.send(0, message)
}

func (c *client) RunMessageLoopOnPause(int) {
	c.b.runMessageLoopOnPause()
}

func (c *client) QuitMessageLoopOnPause() {
	c.b.quitMessageLoopOnPause()
}

func (c *client) RunIfWaitingForDebugger(int) {
	if fn := c.b.opts.waiting; fn != nil {
		fn()
	}
}
