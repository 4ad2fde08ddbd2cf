// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jsenv

// ExceptionType distinguishes where a recorded exception originated.
type ExceptionType int

const (
	ExceptionNone ExceptionType = iota
	// ExceptionScript is thrown by script code.
	ExceptionScript
	// ExceptionNative is raised by native code, e.g. a callback failure.
	ExceptionNative
)

func (t ExceptionType) String() string {
	switch t {
	case ExceptionNone:
		return "none"
	case ExceptionScript:
		return "script"
	case ExceptionNative:
		return "native"
	default:
		return "unknown"
	}
}

// Exception is the (type, message) pair recorded by a failing engine
// operation. It implements error for convenience, but engines never return
// or panic with it across the [Engine] boundary.
type Exception struct {
	Message string
	Type    ExceptionType
}

func (e Exception) Error() string {
	if e.Type == ExceptionNone {
		return "jsenv: no exception"
	}
	return "jsenv: " + e.Type.String() + " exception: " + e.Message
}
