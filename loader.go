// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jsenv

import (
	"fmt"
	"os"
	"plugin"
	"sort"
	"sync"

	"github.com/joeycumines/go-jsenv/logging"
)

const (
	// Version is the engine protocol version implemented by this package.
	Version = 1100

	// DefaultLibraryName is the engine library loaded when [LibraryNameEnv]
	// is unset.
	DefaultLibraryName = "libjsenv.so"

	// LibraryNameEnv names the environment variable that overrides
	// [DefaultLibraryName].
	LibraryNameEnv = "JSENV_SO_NAME"

	// EntrySymbol is the symbol looked up in plugin libraries. It must be an
	// [EntryFunc], or a variable of that type.
	EntrySymbol = "GetJSEnv"
)

// EntryFunc creates an engine for handle, or returns nil if version is not
// supported.
type EntryFunc func(handle Handle, version int) Engine

var (
	entriesMu sync.RWMutex
	entries   = make(map[string]EntryFunc)
)

// Register makes an engine available under name, taking precedence over any
// plugin of the same name. It panics if entry is nil or name is already
// registered.
func Register(name string, entry EntryFunc) {
	entriesMu.Lock()
	defer entriesMu.Unlock()
	if entry == nil {
		panic("jsenv: Register entry is nil")
	}
	if _, dup := entries[name]; dup {
		panic("jsenv: Register called twice for engine " + name)
	}
	entries[name] = entry
}

// Engines returns a sorted list of the names of the registered engines.
func Engines() []string {
	entriesMu.RLock()
	defer entriesMu.RUnlock()
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoaderOption configures a call to [Load].
type LoaderOption interface {
	applyLoader(*loaderOptions) error
}

type loaderOptions struct {
	lookupEnv   func(key string) (string, bool)
	openLibrary func(name string) (lookupFunc, error)
	name        string
}

type lookupFunc func(symbol string) (any, error)

type loaderOptionImpl struct {
	applyLoaderFunc func(*loaderOptions) error
}

func (l *loaderOptionImpl) applyLoader(opts *loaderOptions) error {
	return l.applyLoaderFunc(opts)
}

// WithLibraryName loads name, bypassing the environment variable.
func WithLibraryName(name string) LoaderOption {
	return &loaderOptionImpl{func(opts *loaderOptions) error {
		if name == "" {
			return fmt.Errorf("jsenv: empty library name")
		}
		opts.name = name
		return nil
	}}
}

// WithLookupEnv replaces [os.LookupEnv] when resolving [LibraryNameEnv].
func WithLookupEnv(fn func(key string) (string, bool)) LoaderOption {
	return &loaderOptionImpl{func(opts *loaderOptions) error {
		if fn == nil {
			return fmt.Errorf("jsenv: nil lookup env func")
		}
		opts.lookupEnv = fn
		return nil
	}}
}

func withLibraryOpener(fn func(name string) (lookupFunc, error)) LoaderOption {
	return &loaderOptionImpl{func(opts *loaderOptions) error {
		opts.openLibrary = fn
		return nil
	}}
}

func openPlugin(name string) (lookupFunc, error) {
	p, err := plugin.Open(name)
	if err != nil {
		return nil, err
	}
	return func(symbol string) (any, error) { return p.Lookup(symbol) }, nil
}

func resolveLoaderOptions(opts []LoaderOption) (*loaderOptions, error) {
	cfg := &loaderOptions{
		lookupEnv:   os.LookupEnv,
		openLibrary: openPlugin,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoader(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.name == "" {
		if name, ok := cfg.lookupEnv(LibraryNameEnv); ok && name != "" {
			cfg.name = name
		} else {
			cfg.name = DefaultLibraryName
		}
	}
	return cfg, nil
}

// Load resolves the engine library, invokes its entry with handle and
// version, and adds one reference to the returned engine. The caller must
// give it back with [Release] exactly once.
//
// Errors are one of [ErrLibraryNotFound], [ErrEntryNotFound] or
// [ErrVersionUnsupported], possibly wrapped.
func Load(handle Handle, version int, opts ...LoaderOption) (Engine, error) {
	cfg, err := resolveLoaderOptions(opts)
	if err != nil {
		return nil, err
	}

	entry, err := cfg.resolveEntry()
	if err != nil {
		return nil, err
	}

	engine := entry(handle, version)
	if engine == nil {
		return nil, fmt.Errorf("%w: %s refused version %d", ErrVersionUnsupported, cfg.name, version)
	}
	engine.AddReference()
	return engine, nil
}

func (x *loaderOptions) resolveEntry() (EntryFunc, error) {
	entriesMu.RLock()
	entry, ok := entries[x.name]
	entriesMu.RUnlock()
	if ok {
		return entry, nil
	}

	lookup, err := x.openLibrary(x.name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLibraryNotFound, x.name, err)
	}
	sym, err := lookup(EntrySymbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEntryNotFound, x.name, err)
	}
	switch sym := sym.(type) {
	case EntryFunc:
		return sym, nil
	case *EntryFunc:
		if sym != nil && *sym != nil {
			return *sym, nil
		}
	case func(Handle, int) Engine:
		return sym, nil
	case *func(Handle, int) Engine:
		if sym != nil && *sym != nil {
			return *sym, nil
		}
	}
	return nil, fmt.Errorf("%w: %s: %s has type %T", ErrEntryNotFound, x.name, EntrySymbol, sym)
}

// GetInstance is [Load], returning nil on failure after logging the reason.
func GetInstance(handle Handle, version int, opts ...LoaderOption) Engine {
	engine, err := Load(handle, version, opts...)
	if err != nil {
		logging.L().Err().
			Str("tag", "jsenv").
			Int("version", version).
			Err(err).
			Log("engine load failed")
		return nil
	}
	return engine
}

// Release gives back a reference obtained from [Load]. It is a no-op for a
// nil engine.
func Release(engine Engine) {
	if engine != nil {
		engine.Release()
	}
}
