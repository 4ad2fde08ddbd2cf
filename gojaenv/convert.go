// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaenv

import (
	"math"
	"math/big"
	"strconv"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-jsenv"
)

// toJS converts v to a runtime value. Null, and objects foreign to this
// engine, convert to null.
func (e *Engine) toJS(v *jsenv.Value) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	switch v.Kind() {
	case jsenv.KindInt:
		return e.rt.ToValue(v.IntVal())
	case jsenv.KindUint:
		return e.rt.ToValue(v.UintVal())
	case jsenv.KindFloat:
		return e.rt.ToValue(v.FloatVal())
	case jsenv.KindBool:
		return e.rt.ToValue(v.BoolVal())
	case jsenv.KindUTF8:
		return e.rt.ToValue(string(v.UTF8Str()))
	case jsenv.KindUTF16:
		return goja.StringFromUTF16(v.UTF16Str())
	case jsenv.KindResolver:
		if r, ok := v.ObjectVal().(*resolver); ok {
			return r.promiseObject(e.rt)
		}
		return goja.Null()
	default:
		if v.IsObject() {
			if obj := e.object(v.ObjectVal()); obj != nil {
				return obj
			}
		}
		return goja.Null()
	}
}

func (e *Engine) toJSArgs(args []jsenv.Value) []goja.Value {
	out := make([]goja.Value, len(args))
	for i := range args {
		out[i] = e.toJS(&args[i])
	}
	return out
}

// fromJS stores v in out. Strings are copied into owned buffers, UTF-8 if
// flags has [jsenv.FlagUseUTF8], otherwise UTF-16.
func (e *Engine) fromJS(v goja.Value, out *jsenv.Value, flags jsenv.Flags) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		out.SetNull()
		return
	}
	if obj, ok := v.(*goja.Object); ok {
		out.SetObject(e.retain(obj), e.objectKind(obj))
		return
	}
	if s, ok := v.(goja.String); ok {
		if flags&jsenv.FlagUseUTF8 != 0 {
			out.SetString(s.String())
			return
		}
		units := make([]uint16, s.Length())
		for i := range units {
			units[i] = s.CharAt(i)
		}
		out.SetUTF16(units, len(units), true)
		return
	}
	switch x := v.Export().(type) {
	case bool:
		out.SetBool(x)
	case int64:
		setNumber(out, float64(x))
	case float64:
		setNumber(out, x)
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		out.SetFloat(f)
	default:
		out.SetNull()
	}
}

// setNumber stores integral values as int or uint where they fit.
func setNumber(out *jsenv.Value, f float64) {
	switch {
	case f != math.Trunc(f) || (f == 0 && math.Signbit(f)):
		out.SetFloat(f)
	case f >= math.MinInt32 && f <= math.MaxInt32:
		out.SetInt(int32(f))
	case f > math.MaxInt32 && f <= math.MaxUint32:
		out.SetUint(uint32(f))
	default:
		out.SetFloat(f)
	}
}

// fromJSArgs converts call arguments. The caller must Reset every element.
func (e *Engine) fromJSArgs(args []goja.Value, flags jsenv.Flags) []jsenv.Value {
	out := make([]jsenv.Value, len(args))
	for i, arg := range args {
		e.fromJS(arg, &out[i], flags)
	}
	return out
}

func resetAll(values []jsenv.Value) {
	for i := range values {
		values[i].Reset()
	}
}

// key returns the property name held by v, which may be a string or a
// number.
func (e *Engine) key(v *jsenv.Value) (string, bool) {
	if v == nil {
		return "", false
	}
	switch v.Kind() {
	case jsenv.KindUTF8, jsenv.KindUTF16:
		return v.Text()
	case jsenv.KindInt:
		return strconv.FormatInt(int64(v.IntVal()), 10), true
	case jsenv.KindUint:
		return strconv.FormatUint(uint64(v.UintVal()), 10), true
	case jsenv.KindFloat:
		return e.rt.ToValue(v.FloatVal()).String(), true
	default:
		return "", false
	}
}

// object resolves the object identified by obj, which may be a runtime
// object or one of the engine's reference wrappers. It returns nil for
// anything else, including collected weak references.
func (e *Engine) object(obj jsenv.Object) *goja.Object {
	switch o := obj.(type) {
	case *goja.Object:
		return o
	case *strongRef:
		if o != nil {
			return o.obj
		}
	case *weakRef:
		if o != nil {
			return o.ptr.Value()
		}
	case *resolver:
		if o != nil {
			return o.promiseObject(e.rt)
		}
	case *class:
		if o != nil {
			return o.ctor
		}
	}
	return nil
}
