// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package goid identifies goroutines, and tracks which of them have been
// attached as engine goroutines.
package goid

import (
	"runtime"
	"sync"
)

// Get returns the id of the calling goroutine, parsed from the header of its
// stack trace.
func Get() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// Table is a set of attached goroutines, each with a reference count.
// The zero value is ready to use.
type Table struct {
	m  map[uint64]int
	mu sync.Mutex
}

// Attach marks the calling goroutine as attached, returning its id and
// whether it was newly attached. Repeat attaches only count.
func (x *Table) Attach() (id uint64, first bool) {
	id = Get()
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.m == nil {
		x.m = make(map[uint64]int)
	}
	n := x.m[id]
	x.m[id] = n + 1
	return id, n == 0
}

// Detach drops one attach of id, reporting whether it was the last.
func (x *Table) Detach(id uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	n, ok := x.m[id]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(x.m, id)
		return true
	}
	x.m[id] = n - 1
	return false
}

// Attached reports whether the calling goroutine is attached.
func (x *Table) Attached() bool {
	id := Get()
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.m[id] > 0
}
