// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jsenv

import (
	"bytes"
	"strconv"
	"unicode/utf16"
)

// Object is an opaque reference to an engine-managed object. Identity and
// equality are defined by the engine that produced it. A [Value] holding an
// Object never owns it; see [References].
type Object any

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Value is a tagged variant crossing the native/engine boundary.
//
// The zero value is null. Exactly one payload is meaningful for the current
// [Kind]; every Set method replaces the previous payload. Accessors for a
// kind other than the current one return zero values, which callers must not
// rely upon.
//
// A Value must not be copied, since it may own its string buffer.
type Value struct {
	_      noCopy
	alloc  Allocator
	obj    Object
	u8     []byte
	u16    []uint16
	f      float64
	length int
	i      int64
	kind   Kind
	owns   bool
	b      bool
}

// Kind returns the tag of the value.
func (x *Value) Kind() Kind { return x.kind }

// Len returns the declared length: bytes for UTF-8 strings, code units for
// UTF-16 strings, and the payload size for scalars.
func (x *Value) Len() int { return x.length }

// OwnsMemory reports whether the value owns its string buffer.
func (x *Value) OwnsMemory() bool { return x.owns }

// IsNull and the other Is methods report the kind of the value. IsInteger
// and IsNumber cover several kinds, and IsString covers both encodings.
func (x *Value) IsNull() bool    { return x.kind == KindNull }
func (x *Value) IsInt() bool     { return x.kind == KindInt }
func (x *Value) IsUint() bool    { return x.kind == KindUint }
func (x *Value) IsInteger() bool { return x.kind == KindInt || x.kind == KindUint }
func (x *Value) IsFloat() bool   { return x.kind == KindFloat }
func (x *Value) IsNumber() bool  { return x.IsInteger() || x.kind == KindFloat }
func (x *Value) IsBool() bool    { return x.kind == KindBool }
func (x *Value) IsString() bool  { return x.kind.IsString() }
func (x *Value) IsUTF8() bool    { return x.kind == KindUTF8 }
func (x *Value) IsUTF16() bool   { return x.kind == KindUTF16 }
func (x *Value) IsObject() bool  { return x.kind.IsObject() }

// IntVal returns the payload of a KindInt value, and zero for any other kind.
func (x *Value) IntVal() int32 {
	if x.kind != KindInt {
		return 0
	}
	return int32(x.i)
}

// UintVal returns the payload of a KindUint value, and zero for any other
// kind.
func (x *Value) UintVal() uint32 {
	if x.kind != KindUint {
		return 0
	}
	return uint32(x.i)
}

// FloatVal returns the payload of a KindFloat value, and zero for any other
// kind. Use [Value.Float] to widen integers.
func (x *Value) FloatVal() float64 {
	if x.kind != KindFloat {
		return 0
	}
	return x.f
}

// BoolVal returns the payload of a KindBool value, and false for any other
// kind.
func (x *Value) BoolVal() bool {
	return x.kind == KindBool && x.b
}

// UTF8Str returns the UTF-8 payload, excluding any terminator.
func (x *Value) UTF8Str() []byte {
	if x.kind != KindUTF8 {
		return nil
	}
	return x.u8[:x.length]
}

// UTF16Str returns the UTF-16 payload, excluding any terminator.
func (x *Value) UTF16Str() []uint16 {
	if x.kind != KindUTF16 {
		return nil
	}
	return x.u16[:x.length]
}

// ObjectVal returns the referenced object, or nil for non-object kinds.
func (x *Value) ObjectVal() Object {
	if !x.kind.IsObject() {
		return nil
	}
	return x.obj
}

// Text returns either string kind as a Go string, and false otherwise.
func (x *Value) Text() (string, bool) {
	switch x.kind {
	case KindUTF8:
		return string(x.u8[:x.length]), true
	case KindUTF16:
		return string(utf16.Decode(x.u16[:x.length])), true
	default:
		return "", false
	}
}

// Float returns any numeric kind as a float64.
func (x *Value) Float() (float64, bool) {
	switch x.kind {
	case KindInt, KindUint:
		return float64(x.i), true
	case KindFloat:
		return x.f, true
	default:
		return 0, false
	}
}

// String formats the value for display. Strings are returned as is, and
// objects by kind.
func (x *Value) String() string {
	switch x.kind {
	case KindNull:
		return "null"
	case KindInt, KindUint:
		return strconv.FormatInt(x.i, 10)
	case KindFloat:
		return strconv.FormatFloat(x.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(x.b)
	case KindUTF8, KindUTF16:
		s, _ := x.Text()
		return s
	default:
		return "[" + x.kind.String() + "]"
	}
}

// Reset releases any owned buffer and sets the value to null.
func (x *Value) Reset() {
	x.release()
	x.clear(KindNull)
}

// SetNull is [Value.Reset].
func (x *Value) SetNull() { x.Reset() }

// SetInt releases any owned buffer and stores v, with a length of 4.
func (x *Value) SetInt(v int32) {
	x.release()
	x.clear(KindInt)
	x.i = int64(v)
	x.length = 4
}

// SetUint releases any owned buffer and stores v, with a length of 4.
func (x *Value) SetUint(v uint32) {
	x.release()
	x.clear(KindUint)
	x.i = int64(v)
	x.length = 4
}

// SetFloat releases any owned buffer and stores v, with a length of 8.
func (x *Value) SetFloat(v float64) {
	x.release()
	x.clear(KindFloat)
	x.f = v
	x.length = 8
}

// SetBool releases any owned buffer and stores v, with a length of 1.
func (x *Value) SetBool(v bool) {
	x.release()
	x.clear(KindBool)
	x.b = v
	x.length = 1
}

// SetUTF8 stores a UTF-8 string. A negative length means the length is
// computed from content, up to the first NUL byte. If dup is true the value
// owns an independent, NUL-terminated copy; otherwise it borrows b, which
// must outlive the value.
func (x *Value) SetUTF8(b []byte, length int, dup bool) {
	length = declaredLength(length, len(b), func() int {
		if i := bytes.IndexByte(b, 0); i >= 0 {
			return i
		}
		return len(b)
	})
	var (
		alloc   Allocator
		payload []byte
	)
	if dup {
		alloc = currentAllocator()
		payload = alloc.AllocUTF8(length + 1)
		copy(payload, b[:length])
		payload[length] = 0
	} else {
		payload = b[:length]
	}
	// the old buffer may be the source, so release only after copying
	x.release()
	x.clear(KindUTF8)
	x.u8 = payload
	x.length = length
	x.owns = dup
	x.alloc = alloc
}

// SetUTF16 stores a UTF-16 string, with the same length and ownership rules
// as [Value.SetUTF8], counted in code units.
func (x *Value) SetUTF16(s []uint16, length int, dup bool) {
	length = declaredLength(length, len(s), func() int {
		for i, c := range s {
			if c == 0 {
				return i
			}
		}
		return len(s)
	})
	var (
		alloc   Allocator
		payload []uint16
	)
	if dup {
		alloc = currentAllocator()
		payload = alloc.AllocUTF16(length + 1)
		copy(payload, s[:length])
		payload[length] = 0
	} else {
		payload = s[:length]
	}
	x.release()
	x.clear(KindUTF16)
	x.u16 = payload
	x.length = length
	x.owns = dup
	x.alloc = alloc
}

// SetString stores an owned UTF-8 copy of s.
func (x *Value) SetString(s string) {
	alloc := currentAllocator()
	payload := alloc.AllocUTF8(len(s) + 1)
	copy(payload, s)
	payload[len(s)] = 0
	x.release()
	x.clear(KindUTF8)
	x.u8 = payload
	x.length = len(s)
	x.owns = true
	x.alloc = alloc
}

// SetObject stores an object reference of the given kind. Kinds that are
// not object kinds are stored as [KindObject]. The value never owns obj.
func (x *Value) SetObject(obj Object, kind Kind) {
	if !kind.IsObject() {
		kind = KindObject
	}
	x.release()
	x.clear(kind)
	x.obj = obj
}

// Set assigns src to the receiver. Strings are copied if dup is true, and
// borrowed from src otherwise. Self-assignment is permitted.
func (x *Value) Set(src *Value, dup bool) {
	switch src.kind {
	case KindNull:
		x.SetNull()
	case KindInt:
		x.SetInt(int32(src.i))
	case KindUint:
		x.SetUint(uint32(src.i))
	case KindFloat:
		x.SetFloat(src.f)
	case KindBool:
		x.SetBool(src.b)
	case KindUTF8:
		if x == src && !dup {
			return
		}
		x.SetUTF8(src.u8, src.length, dup)
	case KindUTF16:
		if x == src && !dup {
			return
		}
		x.SetUTF16(src.u16, src.length, dup)
	default:
		x.SetObject(src.obj, src.kind)
	}
}

func (x *Value) release() {
	if !x.owns {
		return
	}
	switch x.kind {
	case KindUTF8:
		x.alloc.FreeUTF8(x.u8)
	case KindUTF16:
		x.alloc.FreeUTF16(x.u16)
	}
	x.owns = false
}

func (x *Value) clear(kind Kind) {
	x.alloc = nil
	x.obj = nil
	x.u8 = nil
	x.u16 = nil
	x.f = 0
	x.i = 0
	x.length = 0
	x.b = false
	x.owns = false
	x.kind = kind
}

func declaredLength(length, capacity int, compute func() int) int {
	if length < 0 {
		return compute()
	}
	if length > capacity {
		return capacity
	}
	return length
}
