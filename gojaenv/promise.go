// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaenv

import (
	"github.com/dop251/goja"
	"github.com/joeycumines/go-jsenv"
)

// resolver is the engine's resolver object, settling one promise.
type resolver struct {
	promise *goja.Promise
	resolve func(any) error
	reject  func(any) error
}

func (r *resolver) promiseObject(rt *goja.Runtime) *goja.Object {
	return rt.ToValue(r.promise).(*goja.Object)
}

func (e *Engine) CreateResolver() jsenv.Object {
	p, resolve, reject := e.rt.NewPromise()
	return &resolver{promise: p, resolve: resolve, reject: reject}
}

func (e *Engine) GetPromiseFromResolver(obj jsenv.Object) jsenv.Object {
	r, ok := obj.(*resolver)
	if !ok || r == nil {
		return nil
	}
	return e.retain(r.promiseObject(e.rt))
}

func (e *Engine) settle(obj jsenv.Object, value *jsenv.Value, reject bool) bool {
	r, ok := obj.(*resolver)
	if !ok || r == nil {
		return false
	}
	fn := r.resolve
	if reject {
		fn = r.reject
	}
	if err := fn(e.toJS(value)); err != nil {
		return e.recordError(err)
	}
	return true
}

// Resolve implements [jsenv.Promises]. Settling an already settled promise
// has no effect, and still reports success.
func (e *Engine) Resolve(obj jsenv.Object, value *jsenv.Value) bool {
	return e.settle(obj, value, false)
}

func (e *Engine) Reject(obj jsenv.Object, value *jsenv.Value) bool {
	return e.settle(obj, value, true)
}

func (e *Engine) promise(obj jsenv.Object) (*goja.Object, *goja.Promise) {
	o := e.object(obj)
	if o == nil {
		return nil, nil
	}
	p, _ := o.Export().(*goja.Promise)
	if p == nil {
		return nil, nil
	}
	return o, p
}

func (e *Engine) chain(promise, fn jsenv.Object, method string) bool {
	o, _ := e.promise(promise)
	f := e.object(fn)
	if o == nil || f == nil {
		return false
	}
	var then goja.Callable
	if !e.try(func() { then, _ = goja.AssertFunction(o.Get(method)) }) || then == nil {
		return false
	}
	if _, err := then(o, f); err != nil {
		return e.recordError(err)
	}
	_ = o.DefineDataPropertySymbol(e.handledSym, e.rt.ToValue(true), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	return true
}

func (e *Engine) SetPromiseThen(promise, fn jsenv.Object) bool {
	return e.chain(promise, fn, "then")
}

func (e *Engine) SetPromiseCatch(promise, fn jsenv.Object) bool {
	return e.chain(promise, fn, "catch")
}

// PromiseHasHandler reports whether a handler was attached via SetPromiseThen
// or SetPromiseCatch. Handlers attached by scripts are not observed.
func (e *Engine) PromiseHasHandler(promise jsenv.Object) bool {
	o, _ := e.promise(promise)
	if o == nil {
		return false
	}
	v := o.GetSymbol(e.handledSym)
	return v != nil && v.ToBoolean()
}

func (e *Engine) GetPromiseState(promise jsenv.Object) jsenv.PromiseState {
	_, p := e.promise(promise)
	if p == nil {
		return jsenv.PromiseNoState
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return jsenv.PromiseFulfilled
	case goja.PromiseStateRejected:
		return jsenv.PromiseRejected
	default:
		return jsenv.PromisePending
	}
}

// GetPromiseResult stores the value of a settled promise, returning false
// while it is pending.
func (e *Engine) GetPromiseResult(promise jsenv.Object, value *jsenv.Value, flags jsenv.Flags) bool {
	_, p := e.promise(promise)
	if p == nil || p.State() == goja.PromiseStatePending {
		return false
	}
	e.fromJS(p.Result(), value, flags)
	return true
}
