// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jsenv

import (
	"errors"
)

var (
	// ErrLibraryNotFound is returned by [Load] when the engine library is
	// neither registered nor loadable as a plugin.
	ErrLibraryNotFound = errors.New("jsenv: engine library not found")

	// ErrEntryNotFound is returned by [Load] when the library does not
	// export a usable [EntrySymbol].
	ErrEntryNotFound = errors.New("jsenv: engine entry symbol not found")

	// ErrVersionUnsupported is returned by [Load] when the engine refuses
	// the requested version.
	ErrVersionUnsupported = errors.New("jsenv: engine version unsupported")
)
