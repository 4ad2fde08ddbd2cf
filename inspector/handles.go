// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package inspector

import (
	"sync"
)

// Handle is an opaque reference to a live [Bridge], for hosts that cannot
// hold Go pointers. The zero value is never valid.
type Handle uint64

var handles struct {
	m    map[Handle]*Bridge
	mu   sync.RWMutex
	next Handle
}

func register(b *Bridge) Handle {
	handles.mu.Lock()
	defer handles.mu.Unlock()
	if handles.m == nil {
		handles.m = make(map[Handle]*Bridge)
	}
	handles.next++
	handles.m[handles.next] = b
	return handles.next
}

func unregister(h Handle) {
	handles.mu.Lock()
	defer handles.mu.Unlock()
	delete(handles.m, h)
}

// Lookup resolves h, returning nil if it is zero, or the bridge has been
// destroyed.
func Lookup(h Handle) *Bridge {
	handles.mu.RLock()
	defer handles.mu.RUnlock()
	return handles.m[h]
}

// HandleMessage is [Bridge.HandleInboundMessage] by handle. Stale handles
// are ignored.
func HandleMessage(h Handle, sessionID int, message string) {
	if b := Lookup(h); b != nil {
		b.HandleInboundMessage(sessionID, message)
	}
}

// DestroyHandle is [Bridge.Destroy] by handle. Stale handles are ignored.
func DestroyHandle(h Handle) {
	if b := Lookup(h); b != nil {
		b.Destroy()
	}
}
