// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaenv

import (
	"runtime"
	"weak"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-jsenv"
)

type (
	// strongRef keeps obj alive while registered with its engine.
	strongRef struct {
		obj *goja.Object
	}

	// weakRef observes an object without keeping it alive.
	weakRef struct {
		ptr      weak.Pointer[goja.Object]
		userData any
		cleanup  runtime.Cleanup
		callback jsenv.WeakReferenceCallback
	}

	// releaseInfo is the weakData passed to release callbacks of external
	// array buffers.
	releaseInfo struct {
		userData any
		data     []byte
	}

	// privateSlot holds the private data of an object, attached to it under
	// a symbol so that it shares the object's lifetime.
	privateSlot struct {
		data  any
		extra any
	}
)

func (e *Engine) NewObjectReference(obj jsenv.Object) jsenv.Object {
	o := e.object(obj)
	if o == nil {
		return nil
	}
	ref := &strongRef{obj: o}
	e.strong[ref] = struct{}{}
	return ref
}

// NewObjectWeakReference implements [jsenv.References]. The callback runs on
// a later engine turn, once obj has been collected, with the reference itself
// as its weakData.
func (e *Engine) NewObjectWeakReference(obj jsenv.Object, callback jsenv.WeakReferenceCallback, userData any) jsenv.Object {
	o := e.object(obj)
	if o == nil {
		return nil
	}
	ref := &weakRef{
		ptr:      weak.Make(o),
		userData: userData,
		callback: callback,
	}
	if callback != nil {
		queue := e.pending
		ref.cleanup = runtime.AddCleanup(o, func(ref *weakRef) {
			queue.push(func() { ref.callback(ref) })
		}, ref)
	}
	return ref
}

func (e *Engine) DeleteObjectReference(ref jsenv.Object) {
	switch r := ref.(type) {
	case *strongRef:
		delete(e.strong, r)
		r.obj = nil
	case *weakRef:
		if r != nil && r.callback != nil {
			r.cleanup.Stop()
		}
	}
}

// GetWeakReferenceCallbackInfo returns the user data registered with a weak
// reference or external array buffer. For weak references internal is the
// reference, for buffers it is the released byte slice.
func (e *Engine) GetWeakReferenceCallbackInfo(weakData any) (userData, internal any) {
	switch w := weakData.(type) {
	case *weakRef:
		return w.userData, w
	case *releaseInfo:
		return w.userData, w.data
	default:
		return nil, nil
	}
}

func (e *Engine) privateSlot(obj jsenv.Object, create bool) *privateSlot {
	o := e.object(obj)
	if o == nil {
		return nil
	}
	if v := o.GetSymbol(e.privateSym); v != nil {
		if slot, ok := v.Export().(*privateSlot); ok {
			return slot
		}
	}
	if !create {
		return nil
	}
	slot := &privateSlot{}
	if err := o.DefineDataPropertySymbol(e.privateSym, e.rt.ToValue(slot), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		return nil
	}
	return slot
}

func (e *Engine) GetObjectPrivateData(obj jsenv.Object) any {
	if slot := e.privateSlot(obj, false); slot != nil {
		return slot.data
	}
	return nil
}

func (e *Engine) SetObjectPrivateData(obj jsenv.Object, data any) bool {
	slot := e.privateSlot(obj, true)
	if slot == nil {
		return false
	}
	slot.data = data
	return true
}

func (e *Engine) GetObjectPrivateExtraData(obj jsenv.Object) any {
	if slot := e.privateSlot(obj, false); slot != nil {
		return slot.extra
	}
	return nil
}

func (e *Engine) SetObjectPrivateExtraData(obj jsenv.Object, data any) bool {
	slot := e.privateSlot(obj, true)
	if slot == nil {
		return false
	}
	slot.extra = data
	return true
}
