// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jsenv

import (
	"sync/atomic"
)

// Allocator supplies the buffers owned by copy-constructed string values.
//
// Each buffer is returned to the allocator that produced it exactly once,
// via the matching Free method. Implementations must be safe for concurrent
// use.
type Allocator interface {
	AllocUTF8(n int) []byte
	FreeUTF8(b []byte)
	AllocUTF16(n int) []uint16
	FreeUTF16(s []uint16)
}

type heapAllocator struct{}

var defaultAllocator Allocator = heapAllocator{}

var allocator atomic.Pointer[Allocator]

func init() {
	allocator.Store(&defaultAllocator)
}

// SetAllocator replaces the process-wide allocator used by subsequent string
// copies, returning the previous one. Passing nil restores the default, which
// allocates on the Go heap. Buffers allocated before the call are still
// released to the allocator that produced them.
func SetAllocator(a Allocator) Allocator {
	if a == nil {
		a = defaultAllocator
	}
	return *allocator.Swap(&a)
}

func currentAllocator() Allocator {
	return *allocator.Load()
}

func (heapAllocator) AllocUTF8(n int) []byte { return make([]byte, n) }

func (heapAllocator) FreeUTF8([]byte) {}

func (heapAllocator) AllocUTF16(n int) []uint16 { return make([]uint16, n) }

func (heapAllocator) FreeUTF16([]uint16) {}
