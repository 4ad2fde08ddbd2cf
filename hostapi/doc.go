// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package hostapi implements host-side helpers used by debug tooling.
//
// A [Registry] resolves fields and methods of registered host classes by
// name, returning a [Locator] that may later be used to read or write a
// field, or invoke a method, against a target. Arguments are boxed and
// unboxed between dynamic values and the parameter types of the member.
//
// [BoundingRect] finds the bounds of non-uniform content in a raw pixel
// buffer.
package hostapi
