// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jsenv

import (
	"strconv"
)

// Kind is the tag of a [Value].
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindUint
	KindFloat
	KindBool
	KindUTF8
	KindUTF16
	KindObject
	KindFunction
	KindArray
	KindTypedArray
	KindArrayBuffer
	KindDataView
	KindPromise
	KindResolver
)

var kindNames = [...]string{
	KindNull:        "null",
	KindInt:         "int",
	KindUint:        "uint",
	KindFloat:       "float",
	KindBool:        "boolean",
	KindUTF8:        "utf8",
	KindUTF16:       "utf16",
	KindObject:      "object",
	KindFunction:    "function",
	KindArray:       "array",
	KindTypedArray:  "typedarray",
	KindArrayBuffer: "arraybuffer",
	KindDataView:    "dataview",
	KindPromise:     "promise",
	KindResolver:    "resolver",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsObject reports whether the kind carries an opaque [Object] reference.
func (k Kind) IsObject() bool {
	return k >= KindObject && k <= KindResolver
}

// IsString reports whether the kind is one of the string kinds.
func (k Kind) IsString() bool {
	return k == KindUTF8 || k == KindUTF16
}

// TypedArrayType identifies the element type of a typed array.
type TypedArrayType int

const (
	NotTypedArray TypedArrayType = iota
	Int8Array
	Int16Array
	Int32Array
	Int64Array
	Uint8Array
	Uint8ClampedArray
	Uint16Array
	Uint32Array
	Uint64Array
	Float32Array
	Float64Array
)

var typedArrayInfo = [...]struct {
	name string
	size int
}{
	NotTypedArray:     {"", 0},
	Int8Array:         {"Int8Array", 1},
	Int16Array:        {"Int16Array", 2},
	Int32Array:        {"Int32Array", 4},
	Int64Array:        {"BigInt64Array", 8},
	Uint8Array:        {"Uint8Array", 1},
	Uint8ClampedArray: {"Uint8ClampedArray", 1},
	Uint16Array:       {"Uint16Array", 2},
	Uint32Array:       {"Uint32Array", 4},
	Uint64Array:       {"BigUint64Array", 8},
	Float32Array:      {"Float32Array", 4},
	Float64Array:      {"Float64Array", 8},
}

// TypedArrayTypes lists every valid typed-array type, in declaration order.
var TypedArrayTypes = []TypedArrayType{
	Int8Array,
	Int16Array,
	Int32Array,
	Int64Array,
	Uint8Array,
	Uint8ClampedArray,
	Uint16Array,
	Uint32Array,
	Uint64Array,
	Float32Array,
	Float64Array,
}

// String returns the script-visible constructor name, e.g. "Uint8Array".
func (t TypedArrayType) String() string {
	if t.Valid() {
		return typedArrayInfo[t].name
	}
	if t == NotTypedArray {
		return "NotTypedArray"
	}
	return "TypedArrayType(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t names an actual typed-array type.
func (t TypedArrayType) Valid() bool {
	return t > NotTypedArray && int(t) < len(typedArrayInfo)
}

// ElementSize returns the size in bytes of one element, or 0 if t is not
// valid.
func (t TypedArrayType) ElementSize() int {
	if t.Valid() {
		return typedArrayInfo[t].size
	}
	return 0
}

// PromiseState is the settlement state of a promise.
type PromiseState int

const (
	// PromiseNoState is reported for objects that are not promises.
	PromiseNoState PromiseState = iota - 1
	PromisePending
	PromiseFulfilled
	PromiseRejected
)

func (s PromiseState) String() string {
	switch s {
	case PromiseNoState:
		return "none"
	case PromisePending:
		return "pending"
	case PromiseFulfilled:
		return "fulfilled"
	case PromiseRejected:
		return "rejected"
	default:
		return "PromiseState(" + strconv.Itoa(int(s)) + ")"
	}
}
