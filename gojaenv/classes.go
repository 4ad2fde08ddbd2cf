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

// class is the engine's [jsenv.Class].
type class struct {
	super    *class
	ctor     *goja.Object
	proto    *goja.Object
	finalize jsenv.FinalizeCallback
	name     string
	init     jsenv.FunctionDefinition
}

// truncated returns the entries of a definition table before the first
// unnamed one.
func truncated[T any](table []T, name func(*T) string) []T {
	for i := range table {
		if name(&table[i]) == "" {
			return table[:i]
		}
	}
	return table
}

// CreateClass implements [jsenv.Classes]. A class name that is already
// registered is replaced for subsequent GetClass calls.
func (e *Engine) CreateClass(def *jsenv.ClassDefinition, super jsenv.Class) jsenv.Class {
	if def == nil || def.ClassName == "" {
		return nil
	}
	c := &class{
		name:     def.ClassName,
		init:     def.Constructor,
		finalize: def.Finalize,
	}
	if super != nil {
		s, ok := super.(*class)
		if !ok || s == nil {
			return nil
		}
		c.super = s
	}

	c.ctor = e.rt.ToValue(func(call goja.ConstructorCall) *goja.Object {
		e.construct(c, call.This, call.Arguments)
		return nil
	}).(*goja.Object)
	_ = c.ctor.DefineDataProperty("name", e.rt.ToValue(c.name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	c.proto, _ = c.ctor.Get("prototype").(*goja.Object)
	if c.proto == nil {
		return nil
	}
	if c.super != nil {
		if err := c.proto.SetPrototype(c.super.proto); err != nil {
			e.recordError(err)
			return nil
		}
		_ = c.ctor.SetPrototype(c.super.ctor)
	}

	for _, p := range truncated(def.Properties, func(p *jsenv.PropertyDefinition) string { return p.Name }) {
		if !e.defineAccessor(c.proto, p) {
			return nil
		}
	}
	for _, f := range truncated(def.Functions, func(f *jsenv.FunctionDefinition) string { return f.Name }) {
		method := e.method(f)
		if err := c.proto.DefineDataProperty(f.Name, method, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
			e.recordError(err)
			return nil
		}
	}

	e.classes[c.name] = c
	return c
}

func (e *Engine) method(f jsenv.FunctionDefinition) *goja.Object {
	return e.nativeFunction(f.Name, f.Flags, func(this *goja.Object, args []jsenv.Value, result *jsenv.Value) bool {
		var thisObj jsenv.Object
		if this != nil {
			thisObj = this
		}
		return f.Function(e, f.UserData, thisObj, args, result)
	})
}

func (e *Engine) defineAccessor(proto *goja.Object, p jsenv.PropertyDefinition) bool {
	var getter, setter goja.Value
	if p.Getter != nil {
		getter = e.rt.ToValue(func(fc goja.FunctionCall) goja.Value {
			this, _ := fc.This.(*goja.Object)
			var v jsenv.Value
			defer v.Reset()
			if !p.Getter(e, p.UserData, this, &v) {
				e.throw("get " + p.Name + " failed")
			}
			return e.toJS(&v)
		})
	}
	if p.Setter != nil {
		setter = e.rt.ToValue(func(fc goja.FunctionCall) goja.Value {
			this, _ := fc.This.(*goja.Object)
			var v jsenv.Value
			defer v.Reset()
			e.fromJS(fc.Argument(0), &v, p.Flags)
			if !p.Setter(e, p.UserData, this, &v) {
				e.throw("set " + p.Name + " failed")
			}
			return goja.Undefined()
		})
	}
	if err := proto.DefineAccessorProperty(p.Name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
		return e.recordError(err)
	}
	return true
}

// construct runs the constructor callbacks of c and its ancestors, outermost
// first, against a new instance, then arranges its finalizer.
func (e *Engine) construct(c *class, this *goja.Object, args []goja.Value) {
	chain := []*class{}
	for k := c; k != nil; k = k.super {
		chain = append(chain, k)
	}
	values := e.fromJSArgs(args, c.init.Flags)
	defer resetAll(values)
	for i := len(chain) - 1; i >= 0; i-- {
		k := chain[i]
		if k.init.Function == nil {
			continue
		}
		var result jsenv.Value
		ok := k.init.Function(e, k.init.UserData, this, values, &result)
		result.Reset()
		if !ok {
			e.throw(k.name + " constructor failed")
		}
	}
	e.track(c, this)
}

// track arranges for the finalizer of c, or the nearest ancestor with one,
// to receive the private data of obj once obj is collected.
func (e *Engine) track(c *class, obj *goja.Object) {
	var finalize jsenv.FinalizeCallback
	for k := c; k != nil && finalize == nil; k = k.super {
		finalize = k.finalize
	}
	if finalize == nil {
		return
	}
	slot := e.privateSlot(obj, true)
	if slot == nil {
		return
	}
	queue := e.pending
	runtime.AddCleanup(obj, func(slot *privateSlot) {
		queue.push(func() { finalize(slot.data, slot.extra) })
	}, slot)
}

func (e *Engine) GetClass(name string) jsenv.Class {
	if c, ok := e.classes[name]; ok {
		return c
	}
	return nil
}

// NewInstance creates an instance of class without running its constructor
// callbacks.
func (e *Engine) NewInstance(cls jsenv.Class) jsenv.Object {
	c, ok := cls.(*class)
	if !ok || c == nil {
		return nil
	}
	obj := e.rt.CreateObject(c.proto)
	e.track(c, obj)
	return e.retain(obj)
}

func (e *Engine) NewInstanceWithConstructor(cls jsenv.Class, args []jsenv.Value) jsenv.Object {
	c, ok := cls.(*class)
	if !ok || c == nil {
		return nil
	}
	return e.CallFunctionAsConstructor(c.ctor, args)
}

func (e *Engine) GetClassConstructorFunction(cls jsenv.Class) jsenv.Object {
	c, ok := cls.(*class)
	if !ok || c == nil {
		return nil
	}
	return c.ctor
}
