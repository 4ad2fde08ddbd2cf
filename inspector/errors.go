// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package inspector

import (
	"errors"
)

var (
	// ErrDestroyed is returned when attaching to a destroyed [Bridge].
	ErrDestroyed = errors.New("inspector: bridge destroyed")

	// ErrAttached is returned by [Bridge.AttachEngine] if an engine is
	// already attached. Detach it first.
	ErrAttached = errors.New("inspector: engine already attached")

	ErrNilExecutor = errors.New("inspector: nil executor")

	// ErrNoSession is returned by [Bridge.AttachEngine] when the engine
	// refuses to create an inspector session.
	ErrNoSession = errors.New("inspector: engine created no session")
)
