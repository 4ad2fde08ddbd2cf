// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaenv

import (
	"runtime"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-jsenv"
)

func (e *Engine) newTyped(t jsenv.TypedArrayType, args ...any) jsenv.Object {
	ctor := e.ctors.typed[t]
	if ctor == nil {
		return nil
	}
	values := make([]goja.Value, len(args))
	for i, arg := range args {
		values[i] = e.rt.ToValue(arg)
	}
	obj, err := e.rt.New(ctor, values...)
	if err != nil {
		e.recordError(err)
		return nil
	}
	return e.retain(obj)
}

func (e *Engine) NewTypedArray(t jsenv.TypedArrayType, count int) jsenv.Object {
	if count < 0 {
		return nil
	}
	return e.newTyped(t, count)
}

// NewTypedArrayArrayBuffer views count elements of buffer, starting at
// elementOffset elements in.
func (e *Engine) NewTypedArrayArrayBuffer(t jsenv.TypedArrayType, buffer jsenv.Object, elementOffset, count int) jsenv.Object {
	buf := e.object(buffer)
	if buf == nil || elementOffset < 0 || count < 0 {
		return nil
	}
	if _, ok := buf.Export().(goja.ArrayBuffer); !ok {
		return nil
	}
	return e.newTyped(t, buf, elementOffset*t.ElementSize(), count)
}

func (e *Engine) GetTypedArrayCount(obj jsenv.Object) int {
	if e.GetTypedArrayType(obj) == jsenv.NotTypedArray {
		return 0
	}
	return e.GetObjectLength(obj)
}

// viewBytes returns the bytes viewed by a typed array or data view, aliasing
// the underlying buffer.
func (e *Engine) viewBytes(o *goja.Object) []byte {
	var b []byte
	if err := e.rt.ExportTo(o, &b); err != nil {
		return nil
	}
	return b
}

func (e *Engine) GetTypedArrayPointer(obj jsenv.Object, elementOffset int) []byte {
	o := e.object(obj)
	if o == nil || elementOffset < 0 {
		return nil
	}
	t := e.typedArrayType(o)
	if t == jsenv.NotTypedArray {
		return nil
	}
	b := e.viewBytes(o)
	start := elementOffset * t.ElementSize()
	if start > len(b) {
		return nil
	}
	return b[start:]
}

func (e *Engine) GetTypedArrayArrayBuffer(obj jsenv.Object) jsenv.Object {
	o := e.object(obj)
	if o == nil {
		return nil
	}
	var buf *goja.Object
	e.rt.Try(func() { buf, _ = o.Get("buffer").(*goja.Object) })
	if buf == nil {
		return nil
	}
	return e.retain(buf)
}

func (e *Engine) NewArrayBuffer(length int) jsenv.Object {
	if length < 0 {
		return nil
	}
	return e.arrayBuffer(make([]byte, length))
}

func (e *Engine) arrayBuffer(data []byte) *goja.Object {
	return e.retain(e.rt.ToValue(e.rt.NewArrayBuffer(data)).(*goja.Object))
}

// NewArrayBufferExternal implements [jsenv.ArrayBuffers]. The release
// callback receives a weakData for which [Engine.GetWeakReferenceCallbackInfo]
// returns userData and data.
func (e *Engine) NewArrayBufferExternal(data []byte, release jsenv.WeakReferenceCallback, userData any) jsenv.Object {
	obj := e.arrayBuffer(data)
	if release != nil {
		queue := e.pending
		info := &releaseInfo{userData: userData, data: data}
		runtime.AddCleanup(obj, func(info *releaseInfo) {
			queue.push(func() { release(info) })
		}, info)
	}
	return obj
}

func (e *Engine) GetArrayBufferLength(obj jsenv.Object) int {
	return len(e.GetArrayBufferPointer(obj))
}

func (e *Engine) GetArrayBufferPointer(obj jsenv.Object) []byte {
	o := e.object(obj)
	if o == nil {
		return nil
	}
	if ab, ok := o.Export().(goja.ArrayBuffer); ok {
		return ab.Bytes()
	}
	return nil
}
