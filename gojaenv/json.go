// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaenv

import (
	"strconv"

	"github.com/joeycumines/go-utilpkg/jsonenc"
)

// object incrementally encodes a JSON object.
type object struct {
	b []byte
}

func newObject() *object {
	return &object{b: append(make([]byte, 0, 128), '{')}
}

func (x *object) field(name string) {
	if len(x.b) > 1 {
		x.b = append(x.b, ',')
	}
	x.b = jsonenc.AppendString(x.b, name)
	x.b = append(x.b, ':')
}

func (x *object) Str(name, value string) *object {
	x.field(name)
	x.b = jsonenc.AppendString(x.b, value)
	return x
}

func (x *object) Int(name string, value int) *object {
	x.field(name)
	x.b = strconv.AppendInt(x.b, int64(value), 10)
	return x
}

func (x *object) Float(name string, value float64) *object {
	x.field(name)
	x.b = jsonenc.AppendFloat64(x.b, value)
	return x
}

func (x *object) Bool(name string, value bool) *object {
	x.field(name)
	x.b = strconv.AppendBool(x.b, value)
	return x
}

// Raw adds value, which must be valid JSON.
func (x *object) Raw(name, value string) *object {
	x.field(name)
	x.b = append(x.b, value...)
	return x
}

func (x *object) String() string {
	return string(append(x.b, '}'))
}

// array joins encoded JSON values.
func array(values []string) string {
	b := make([]byte, 0, 64)
	b = append(b, '[')
	for i, v := range values {
		if i != 0 {
			b = append(b, ',')
		}
		b = append(b, v...)
	}
	return string(append(b, ']'))
}

func stringArray(values []string) string {
	b := make([]byte, 0, 64)
	b = append(b, '[')
	for i, v := range values {
		if i != 0 {
			b = append(b, ',')
		}
		b = jsonenc.AppendString(b, v)
	}
	return string(append(b, ']'))
}
