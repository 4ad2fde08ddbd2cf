// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostapi

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/joeycumines/go-jsenv/logging"
)

const logTag = "hostapi"

var (
	// ErrUnknownClass is returned when resolving against an unregistered
	// class name.
	ErrUnknownClass = errors.New("hostapi: unknown class")

	// ErrNotFound is returned when a class has no member with a name.
	ErrNotFound = errors.New("hostapi: member not found")

	// ErrInvalidLocator is returned for the zero [Locator], or one of the
	// wrong kind for the operation.
	ErrInvalidLocator = errors.New("hostapi: invalid locator")

	// ErrTarget is returned when the target of an instance member is not of
	// the class the member was resolved on.
	ErrTarget = errors.New("hostapi: invalid target")

	// ErrArgument is returned when a value cannot be converted to the type
	// of a field or parameter.
	ErrArgument = errors.New("hostapi: invalid argument")
)

var errorType = reflect.TypeFor[error]()

type (
	// Locator identifies a resolved field or method. The zero value is
	// invalid.
	Locator struct {
		// ID is the opaque identity of the member.
		ID any
		// Static is set for members that take no target.
		Static bool
	}

	// Registry is a set of host classes, safe for concurrent use.
	Registry struct {
		classes map[string]*class
		mu      sync.RWMutex
	}

	class struct {
		typ     reflect.Type // struct type
		statics map[string]reflect.Value
		name    string
	}

	fieldID struct {
		class *class
		index []int
		name  string
	}

	methodID struct {
		class *class
		name  string
	}

	staticFieldID struct {
		ptr  reflect.Value
		name string
	}

	staticMethodID struct {
		fn   reflect.Value
		name string
	}
)

// Valid reports whether l was returned by a successful resolve.
func (l Locator) Valid() bool { return l.ID != nil }

func (l Locator) String() string {
	var name string
	switch id := l.ID.(type) {
	case *fieldID:
		name = id.class.name + "." + id.name
	case *methodID:
		name = id.class.name + "." + id.name + "()"
	case *staticFieldID:
		name = id.name
	case *staticMethodID:
		name = id.name + "()"
	default:
		return "hostapi.Locator(invalid)"
	}
	return fmt.Sprintf("hostapi.Locator(%s, static=%t)", name, l.Static)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*class)}
}

// RegisterClass registers the struct type of sample, which may be a struct
// or a pointer to one, under name. Registering a name again replaces the
// class, discarding its static members.
func (r *Registry) RegisterClass(name string, sample any) error {
	t := reflect.TypeOf(sample)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("hostapi: register %q: %T is not a struct", name, sample)
	}
	r.mu.Lock()
	r.classes[name] = &class{
		typ:     t,
		statics: make(map[string]reflect.Value),
		name:    name,
	}
	r.mu.Unlock()

	logging.L().Debug().
		Str("tag", logTag).
		Str("class", name).
		Str("type", t.String()).
		Log("class registered")
	return nil
}

// RegisterStatic adds a static member to a registered class. A pointer
// becomes a static field, and a func becomes a static method.
func (r *Registry) RegisterStatic(className, member string, v any) error {
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Pointer && !rv.IsNil():
	case rv.Kind() == reflect.Func && !rv.IsNil():
	default:
		return fmt.Errorf("hostapi: static %s.%s: %T is not a pointer or func", className, member, v)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.classes[className]
	if c == nil {
		return fmt.Errorf("%w: %s", ErrUnknownClass, className)
	}
	c.statics[member] = rv
	return nil
}

func (r *Registry) class(name string) (*class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c := r.classes[name]; c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
}

// ResolveField returns the locator of an exported field of a class, or of a
// static field if static is set.
func (r *Registry) ResolveField(className, name string, static bool) (Locator, error) {
	c, err := r.class(className)
	if err != nil {
		return Locator{}, err
	}
	if static {
		r.mu.RLock()
		v, ok := c.statics[name]
		r.mu.RUnlock()
		if !ok || v.Kind() != reflect.Pointer {
			return Locator{}, fmt.Errorf("%w: static field %s.%s", ErrNotFound, className, name)
		}
		return Locator{ID: &staticFieldID{ptr: v, name: className + "." + name}, Static: true}, nil
	}
	f, ok := c.typ.FieldByName(name)
	if !ok || !f.IsExported() {
		return Locator{}, fmt.Errorf("%w: field %s.%s", ErrNotFound, className, name)
	}
	return Locator{ID: &fieldID{class: c, index: f.Index, name: name}}, nil
}

// ResolveMethod returns the locator of an exported method of a class,
// including those with pointer receivers, or of a static method if static
// is set.
func (r *Registry) ResolveMethod(className, name string, static bool) (Locator, error) {
	c, err := r.class(className)
	if err != nil {
		return Locator{}, err
	}
	if static {
		r.mu.RLock()
		v, ok := c.statics[name]
		r.mu.RUnlock()
		if !ok || v.Kind() != reflect.Func {
			return Locator{}, fmt.Errorf("%w: static method %s.%s", ErrNotFound, className, name)
		}
		return Locator{ID: &staticMethodID{fn: v, name: className + "." + name}, Static: true}, nil
	}
	if _, ok := reflect.PointerTo(c.typ).MethodByName(name); !ok {
		return Locator{}, fmt.Errorf("%w: method %s.%s", ErrNotFound, className, name)
	}
	return Locator{ID: &methodID{class: c, name: name}}, nil
}

// GetField reads a field. The target is ignored for static fields, and must
// otherwise be a value of, or pointer to, the class.
func (r *Registry) GetField(loc Locator, target any) (any, error) {
	switch id := loc.ID.(type) {
	case *staticFieldID:
		return id.ptr.Elem().Interface(), nil
	case *fieldID:
		v, err := id.class.instance(target, false)
		if err != nil {
			return nil, err
		}
		f, err := v.FieldByIndexErr(id.index)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTarget, id.name, err)
		}
		return f.Interface(), nil
	default:
		return nil, ErrInvalidLocator
	}
}

// SetField writes a field, converting value to its type. The target of an
// instance field must be a non-nil pointer to the class.
func (r *Registry) SetField(loc Locator, target, value any) error {
	var f reflect.Value
	switch id := loc.ID.(type) {
	case *staticFieldID:
		f = id.ptr.Elem()
	case *fieldID:
		v, err := id.class.instance(target, true)
		if err != nil {
			return err
		}
		if f, err = v.FieldByIndexErr(id.index); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrTarget, id.name, err)
		}
	default:
		return ErrInvalidLocator
	}
	if !f.CanSet() {
		return fmt.Errorf("%w: field is not settable", ErrTarget)
	}
	v, err := unbox(value, f.Type())
	if err != nil {
		return err
	}
	f.Set(v)
	return nil
}

// Invoke calls a method with args, converting each to its parameter type.
// The results are boxed, except for a trailing error result, which is
// returned as the error if non-nil, and omitted either way.
func (r *Registry) Invoke(loc Locator, target any, args ...any) ([]any, error) {
	var fn reflect.Value
	switch id := loc.ID.(type) {
	case *staticMethodID:
		fn = id.fn
	case *methodID:
		v, err := id.class.instance(target, false)
		if err != nil {
			return nil, err
		}
		if v.CanAddr() {
			v = v.Addr()
		}
		fn = v.MethodByName(id.name)
		if !fn.IsValid() {
			// pointer receiver, on a value target
			return nil, fmt.Errorf("%w: %s requires a pointer target", ErrTarget, id.name)
		}
	default:
		return nil, ErrInvalidLocator
	}

	in, err := unboxArgs(fn.Type(), args)
	if err != nil {
		return nil, err
	}
	return boxResults(fn.Type(), fn.Call(in))
}

// instance returns the struct value of target, which must be addressable if
// settable is set.
func (c *class) instance(target any, settable bool) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	if v.Kind() == reflect.Pointer && v.Type().Elem() == c.typ {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %s", ErrTarget, c.name)
		}
		return v.Elem(), nil
	}
	if !settable && v.IsValid() && v.Type() == c.typ {
		return v, nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %T is not a %s", ErrTarget, target, c.name)
}

func unboxArgs(fn reflect.Type, args []any) ([]reflect.Value, error) {
	n := fn.NumIn()
	if fn.IsVariadic() {
		if len(args) < n-1 {
			return nil, fmt.Errorf("%w: want at least %d arguments, got %d", ErrArgument, n-1, len(args))
		}
	} else if len(args) != n {
		return nil, fmt.Errorf("%w: want %d arguments, got %d", ErrArgument, n, len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var t reflect.Type
		if fn.IsVariadic() && i >= n-1 {
			t = fn.In(n - 1).Elem()
		} else {
			t = fn.In(i)
		}
		v, err := unbox(arg, t)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in[i] = v
	}
	return in, nil
}

func boxResults(fn reflect.Type, out []reflect.Value) ([]any, error) {
	var err error
	if n := len(out); n != 0 && fn.Out(n-1) == errorType {
		if e := out[n-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
		out = out[:n-1]
	}
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, err
}

// unbox converts a dynamic value to t. Numeric values convert between kinds
// when they fit exactly, and nil becomes the zero value of nillable types.
func unbox(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil is not a %s", ErrArgument, t)
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if isNumeric(v.Kind()) && isNumeric(t.Kind()) {
		c := v.Convert(t)
		if c.Convert(v.Type()).Equal(v) && sameSign(v, c) {
			return c, nil
		}
		return reflect.Value{}, fmt.Errorf("%w: %v does not fit %s", ErrArgument, value, t)
	}
	if v.Kind() == t.Kind() && v.Kind() != reflect.Struct && v.CanConvert(t) {
		// named primitive types, e.g. a string to a named string
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %T is not a %s", ErrArgument, value, t)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// sameSign guards conversions that round trip through two's complement,
// e.g. int(-1) to uint64.
func sameSign(a, b reflect.Value) bool {
	return negative(a) == negative(b)
}

func negative(v reflect.Value) bool {
	switch {
	case v.CanInt():
		return v.Int() < 0
	case v.CanFloat():
		return v.Float() < 0
	}
	return false
}
