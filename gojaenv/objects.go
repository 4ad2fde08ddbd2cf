// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaenv

import (
	"strconv"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-jsenv"
)

// constructors caches the builtin constructors used to classify objects, so
// that scripts reassigning globals cannot confuse the engine.
type constructors struct {
	typed    map[jsenv.TypedArrayType]*goja.Object
	dataView *goja.Object
	array    *goja.Object
	error    *goja.Object
}

func newConstructors(rt *goja.Runtime) *constructors {
	c := &constructors{typed: make(map[jsenv.TypedArrayType]*goja.Object, len(jsenv.TypedArrayTypes))}
	for _, t := range jsenv.TypedArrayTypes {
		if obj, ok := rt.Get(t.String()).(*goja.Object); ok {
			c.typed[t] = obj
		}
	}
	c.dataView, _ = rt.Get("DataView").(*goja.Object)
	c.array, _ = rt.Get("Array").(*goja.Object)
	c.error, _ = rt.Get("Error").(*goja.Object)
	return c
}

func (e *Engine) instanceOf(obj, ctor *goja.Object) (ok bool) {
	if ctor == nil {
		return false
	}
	e.rt.Try(func() { ok = e.rt.InstanceOf(obj, ctor) })
	return ok
}

func (e *Engine) typedArrayType(obj *goja.Object) jsenv.TypedArrayType {
	for _, t := range jsenv.TypedArrayTypes {
		if e.instanceOf(obj, e.ctors.typed[t]) {
			return t
		}
	}
	return jsenv.NotTypedArray
}

// objectKind classifies a runtime object.
func (e *Engine) objectKind(obj *goja.Object) jsenv.Kind {
	switch obj.Export().(type) {
	case *goja.Promise:
		return jsenv.KindPromise
	case goja.ArrayBuffer:
		return jsenv.KindArrayBuffer
	}
	if _, ok := goja.AssertFunction(obj); ok {
		return jsenv.KindFunction
	}
	if obj.ClassName() == "Array" {
		return jsenv.KindArray
	}
	if e.typedArrayType(obj) != jsenv.NotTypedArray {
		return jsenv.KindTypedArray
	}
	if e.instanceOf(obj, e.ctors.dataView) {
		return jsenv.KindDataView
	}
	return jsenv.KindObject
}

func (e *Engine) GetObjectType(obj jsenv.Object) jsenv.Kind {
	if _, ok := obj.(*resolver); ok {
		return jsenv.KindResolver
	}
	o := e.object(obj)
	if o == nil {
		return jsenv.KindNull
	}
	return e.objectKind(o)
}

func (e *Engine) GetTypedArrayType(obj jsenv.Object) jsenv.TypedArrayType {
	o := e.object(obj)
	if o == nil {
		return jsenv.NotTypedArray
	}
	return e.typedArrayType(o)
}

func (e *Engine) GetGlobalObject() jsenv.Object {
	return e.rt.GlobalObject()
}

func (e *Engine) SetGlobal(key, value *jsenv.Value) bool {
	return e.SetObjectProperty(e.rt.GlobalObject(), key, value)
}

func (e *Engine) GetGlobal(key, value *jsenv.Value, flags jsenv.Flags) bool {
	return e.GetObjectProperty(e.rt.GlobalObject(), key, value, flags)
}

// get reads name from o, returning false if the property does not exist or
// its getter threw.
func (e *Engine) get(o *goja.Object, name string, value *jsenv.Value, flags jsenv.Flags) bool {
	var v goja.Value
	if !e.try(func() { v = o.Get(name) }) || v == nil {
		return false
	}
	if value != nil {
		e.fromJS(v, value, flags)
	}
	return true
}

func (e *Engine) set(o *goja.Object, name string, value *jsenv.Value) bool {
	if err := o.Set(name, e.toJS(value)); err != nil {
		return e.recordError(err)
	}
	return true
}

func (e *Engine) GetObjectProperty(obj jsenv.Object, key, value *jsenv.Value, flags jsenv.Flags) bool {
	o := e.object(obj)
	name, ok := e.key(key)
	if o == nil || !ok {
		return false
	}
	return e.get(o, name, value, flags)
}

func (e *Engine) SetObjectProperty(obj jsenv.Object, key, value *jsenv.Value) bool {
	o := e.object(obj)
	name, ok := e.key(key)
	if o == nil || !ok {
		return false
	}
	return e.set(o, name, value)
}

func (e *Engine) GetObjectPropertyNames(obj jsenv.Object) jsenv.Object {
	o := e.object(obj)
	if o == nil {
		return nil
	}
	keys := o.Keys()
	items := make([]any, len(keys))
	for i, k := range keys {
		items[i] = k
	}
	return e.retain(e.rt.NewArray(items...))
}

// GetObjectLength returns the length of an array-like, the byte length of an
// array buffer, or 0.
func (e *Engine) GetObjectLength(obj jsenv.Object) int {
	o := e.object(obj)
	if o == nil {
		return 0
	}
	if ab, ok := o.Export().(goja.ArrayBuffer); ok {
		return len(ab.Bytes())
	}
	var n int64
	e.rt.Try(func() {
		if v := o.Get("length"); v != nil {
			n = v.ToInteger()
		}
	})
	return int(max(n, 0))
}

func (e *Engine) GetObjectAtIndex(obj jsenv.Object, index int, value *jsenv.Value, flags jsenv.Flags) bool {
	o := e.object(obj)
	if o == nil || index < 0 {
		return false
	}
	return e.get(o, strconv.Itoa(index), value, flags)
}

func (e *Engine) SetObjectAtIndex(obj jsenv.Object, index int, value *jsenv.Value) bool {
	o := e.object(obj)
	if o == nil || index < 0 {
		return false
	}
	return e.set(o, strconv.Itoa(index), value)
}

func (e *Engine) NewObject() jsenv.Object {
	return e.retain(e.rt.NewObject())
}

func (e *Engine) NewArray(length int) jsenv.Object {
	arr := e.rt.NewArray()
	if length > 0 {
		_ = arr.Set("length", length)
	}
	return e.retain(arr)
}

func (e *Engine) NewArrayWithValues(args []jsenv.Value) jsenv.Object {
	items := make([]any, len(args))
	for i := range args {
		items[i] = e.toJS(&args[i])
	}
	return e.retain(e.rt.NewArray(items...))
}

// throw raises the engine's recorded exception in the runtime, or a generic
// error if there is none. It must be called from a native function.
func (e *Engine) throw(fallback string) {
	msg := fallback
	if e.hasExc {
		msg = e.exception.Message
		e.ClearException()
	}
	if e.ctors.error != nil {
		if obj, err := e.rt.New(e.ctors.error, e.rt.ToValue(msg)); err == nil {
			panic(obj)
		}
	}
	panic(e.rt.ToValue(msg))
}

// nativeFunction adapts a callback to a runtime function.
func (e *Engine) nativeFunction(name string, flags jsenv.Flags, call func(this *goja.Object, args []jsenv.Value, result *jsenv.Value) bool) *goja.Object {
	fn := func(fc goja.FunctionCall) goja.Value {
		this, _ := fc.This.(*goja.Object)
		args := e.fromJSArgs(fc.Arguments, flags)
		defer resetAll(args)
		var result jsenv.Value
		defer result.Reset()
		if !call(this, args, &result) {
			e.throw(name + " failed")
		}
		return e.toJS(&result)
	}
	obj := e.rt.ToValue(fn).(*goja.Object)
	if name != "" {
		_ = obj.DefineDataProperty("name", e.rt.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	}
	return obj
}

func (e *Engine) RegisterCallbackOnObject(obj jsenv.Object, domain string, callback jsenv.UserFunctionCallback, userData any, flags jsenv.Flags) bool {
	if callback == nil || domain == "" {
		return false
	}
	target := e.rt.GlobalObject()
	if obj != nil {
		if target = e.object(obj); target == nil {
			return false
		}
	}
	fn := e.nativeFunction(domain, flags, func(_ *goja.Object, args []jsenv.Value, result *jsenv.Value) bool {
		return callback(e, userData, target, args, result)
	})
	if err := target.Set(domain, fn); err != nil {
		return e.recordError(err)
	}
	return true
}

func (e *Engine) NewFunction(callback jsenv.FunctionCallback, userData any, flags jsenv.Flags) jsenv.Object {
	if callback == nil {
		return nil
	}
	return e.retain(e.nativeFunction("", flags, func(this *goja.Object, args []jsenv.Value, result *jsenv.Value) bool {
		var thisObj jsenv.Object
		if this != nil {
			thisObj = this
		}
		return callback(e, userData, thisObj, args, result)
	}))
}

func (e *Engine) CallFunction(fn, this jsenv.Object, args []jsenv.Value, result *jsenv.Value, flags jsenv.Flags) bool {
	f := e.object(fn)
	if f == nil {
		return false
	}
	callable, ok := goja.AssertFunction(f)
	if !ok {
		return false
	}
	thisVal := goja.Undefined()
	if this != nil {
		if o := e.object(this); o != nil {
			thisVal = o
		}
	}

	e.enter()
	defer e.leave()

	v, err := callable(thisVal, e.toJSArgs(args)...)
	if err != nil {
		return e.recordError(err)
	}
	if result != nil {
		e.fromJS(v, result, flags)
	}
	return true
}

func (e *Engine) CallFunctionAsConstructor(fn jsenv.Object, args []jsenv.Value) jsenv.Object {
	f := e.object(fn)
	if f == nil {
		return nil
	}
	e.enter()
	defer e.leave()
	obj, err := e.rt.New(f, e.toJSArgs(args)...)
	if err != nil {
		e.recordError(err)
		return nil
	}
	return e.retain(obj)
}
