// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaenv

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-jsenv"
	"github.com/joeycumines/go-jsenv/logging"
)

var (
	// ErrNilRuntime is returned by [New] when given a nil runtime.
	ErrNilRuntime = errors.New("gojaenv: nil runtime")

	// errSessionClosed interrupts a script that was paused when its session
	// closed.
	errSessionClosed = errors.New("gojaenv: inspector session closed while paused")

	// engineIDs tags instrumented code, so probes compiled for one engine
	// are ignored by any later engine sharing the runtime.
	engineIDs atomic.Uint64
)

// Engine implements [jsenv.Engine] over a [goja.Runtime].
type Engine struct {
	rt          *goja.Runtime
	opts        *engineOptions
	pending     *callbackQueue
	strong      map[*strongRef]struct{}
	classes     map[string]*class
	ctors       *constructors
	session     *session
	probe       *goja.Object
	privateSym  *goja.Symbol
	handledSym  *goja.Symbol
	scripts     []*script
	scopes      [][]*goja.Object
	exception   jsenv.Exception
	depth       int
	refs        atomic.Int32
	id          uint64
	version     int
	hasExc      bool
	probeFailed bool
	interrupted bool
}

var _ jsenv.Engine = (*Engine)(nil)

// New wraps rt. The runtime remains owned by the caller, and must not be
// used concurrently with the engine.
func New(rt *goja.Runtime, opts ...Option) (*Engine, error) {
	if rt == nil {
		return nil, ErrNilRuntime
	}
	cfg, err := resolveEngineOptions(opts)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		rt:         rt,
		opts:       cfg,
		pending:    &callbackQueue{},
		strong:     make(map[*strongRef]struct{}),
		classes:    make(map[string]*class),
		privateSym: goja.NewSymbol("jsenv.private"),
		handledSym: goja.NewSymbol("jsenv.handled"),
		id:         engineIDs.Add(1),
		version:    jsenv.Version,
	}
	e.ctors = newConstructors(rt)
	if cfg.console {
		if err := e.enableConsole(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Runtime returns the wrapped runtime.
func (e *Engine) Runtime() *goja.Runtime { return e.rt }

func (e *Engine) GetVersion() int { return e.version }

func (e *Engine) AddReference() { e.refs.Add(1) }

// Release drops a reference. The last release closes any inspector session.
// The runtime itself is not disposed, as it belongs to the host.
func (e *Engine) Release() {
	if e.refs.Add(-1) == 0 {
		if e.session != nil {
			e.session.Close()
		}
	}
}

func (e *Engine) HasException() bool { return e.hasExc }

func (e *Engine) GetException() jsenv.Exception { return e.exception }

func (e *Engine) SetException(exception jsenv.Exception) {
	e.exception = exception
	e.hasExc = exception.Type != jsenv.ExceptionNone
}

func (e *Engine) ClearException() {
	e.exception = jsenv.Exception{}
	e.hasExc = false
}

// recordError stores err as the current exception, returning false.
func (e *Engine) recordError(err error) bool {
	var (
		jsErr  *goja.Exception
		synErr *goja.CompilerSyntaxError
		intErr *goja.InterruptedError
	)
	switch {
	case errors.As(err, &jsErr):
		msg := jsErr.Error()
		if v := jsErr.Value(); v != nil {
			msg = v.String()
		}
		e.SetException(jsenv.Exception{Type: jsenv.ExceptionScript, Message: msg})
	case errors.As(err, &synErr):
		e.SetException(jsenv.Exception{Type: jsenv.ExceptionScript, Message: "SyntaxError: " + synErr.Message})
	case errors.As(err, &intErr):
		e.SetException(jsenv.Exception{Type: jsenv.ExceptionNative, Message: intErr.Error()})
	default:
		e.SetException(jsenv.Exception{Type: jsenv.ExceptionNative, Message: err.Error()})
	}
	return false
}

// try runs fn, converting a thrown script exception into the engine's
// exception state.
func (e *Engine) try(fn func()) bool {
	if ex := e.rt.Try(fn); ex != nil {
		return e.recordError(ex)
	}
	return true
}

// enter marks the start of an outermost or nested engine turn, running any
// queued release callbacks at the outermost level.
func (e *Engine) enter() {
	if e.depth == 0 {
		e.RunPendingCallbacks()
	}
	e.depth++
}

func (e *Engine) leave() {
	e.depth--
	if e.depth != 0 {
		return
	}
	if e.interrupted {
		e.interrupted = false
		e.rt.ClearInterrupt()
	}
	if e.session != nil {
		e.session.turnEnded()
	}
}

// RunPendingCallbacks runs every queued release callback. It must not be
// called from within one.
func (e *Engine) RunPendingCallbacks() {
	for _, fn := range e.pending.drain() {
		fn()
	}
}

// ExecuteScript implements [jsenv.ScriptRunner].
func (e *Engine) ExecuteScript(code *jsenv.Value, result *jsenv.Value, fileName string, startLine int, flags jsenv.Flags) bool {
	src, ok := code.Text()
	if !ok {
		e.SetException(jsenv.Exception{Type: jsenv.ExceptionNative, Message: "script is not a string"})
		return false
	}
	if startLine < 1 {
		startLine = 1
	}

	e.enter()
	defer e.leave()

	compiled := strings.Repeat("\n", startLine-1) + src
	if flags&jsenv.FlagUnlisted == 0 {
		s := e.addScript(fileName, src, startLine)
		if e.session != nil || e.opts.instrumentAll {
			if e.installProbe() {
				if out, err := instrument(compiled, e.id, s.index); err == nil {
					compiled = out.source
					s.lines = out.lines
				}
			}
		}
		if e.session != nil {
			e.session.scriptParsed(s)
		}
	}

	prg, err := goja.Compile(fileName, compiled, false)
	if err != nil {
		return e.recordError(err)
	}
	v, err := e.rt.RunProgram(prg)
	if err != nil {
		return e.recordError(err)
	}
	if result != nil {
		e.fromJS(v, result, flags)
	}
	return true
}

func (e *Engine) PushScope() {
	e.scopes = append(e.scopes, nil)
}

func (e *Engine) PopScope() {
	if len(e.scopes) == 0 {
		logging.Warnf(logTag, "PopScope without matching PushScope")
		return
	}
	e.scopes[len(e.scopes)-1] = nil
	e.scopes = e.scopes[:len(e.scopes)-1]
}

// retain keeps obj alive until the current scope is popped. Objects created
// outside any scope are kept alive only by their holders.
func (e *Engine) retain(obj *goja.Object) *goja.Object {
	if obj != nil && len(e.scopes) != 0 {
		top := len(e.scopes) - 1
		e.scopes[top] = append(e.scopes[top], obj)
	}
	return obj
}

// callbackQueue receives work from garbage collector cleanups, which run on
// their own goroutine. It must not reference the engine, or the objects whose
// cleanups feed it.
type callbackQueue struct {
	fns []func()
	mu  sync.Mutex
}

func (x *callbackQueue) push(fn func()) {
	x.mu.Lock()
	x.fns = append(x.fns, fn)
	x.mu.Unlock()
}

func (x *callbackQueue) drain() []func() {
	x.mu.Lock()
	defer x.mu.Unlock()
	fns := x.fns
	x.fns = nil
	return fns
}

func (x *callbackQueue) len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.fns)
}

func (e *Engine) String() string {
	return fmt.Sprintf("gojaenv.Engine(version=%d, scripts=%d)", e.version, len(e.scripts))
}
