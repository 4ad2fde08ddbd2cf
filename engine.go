// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jsenv

type (
	// Handle is the engine-native handle passed through [Load] to an engine
	// implementation. Its meaning is defined by the implementation.
	Handle any

	// Class is an opaque reference to a class registered via
	// [Classes.CreateClass].
	Class any

	// Flags modify engine operations. Unknown bits are ignored.
	Flags uint32

	// UserFunctionCallback handles a call to a function registered via
	// [Callbacks.RegisterCallbackOnObject].
	UserFunctionCallback func(e Engine, userData any, obj Object, args []Value, result *Value) bool

	// FunctionCallback handles a call to a native function or method. The
	// returned bool reports success; on failure the engine raises the
	// exception recorded via [ExceptionState.SetException], or a generic one.
	FunctionCallback func(e Engine, userData any, this Object, args []Value, result *Value) bool

	PropertyGetCallback func(e Engine, userData any, this Object, value *Value) bool

	PropertySetCallback func(e Engine, userData any, this Object, value *Value) bool

	// FinalizeCallback is invoked once an instance of a native class has been
	// collected, with the instance's private data.
	FinalizeCallback func(privateData, extraData any)

	// WeakReferenceCallback is invoked by the engine after the target of a
	// weak reference, or an external array buffer, is no longer in use.
	//
	// It runs on the engine goroutine, during a later engine turn, and must
	// not synchronously re-enter the engine. Defer any such work.
	WeakReferenceCallback func(weakData any)

	FunctionDefinition struct {
		Function FunctionCallback
		UserData any
		Name     string
		Flags    Flags
	}

	PropertyDefinition struct {
		Getter   PropertyGetCallback
		Setter   PropertySetCallback
		UserData any
		Name     string
		Flags    Flags
	}

	// ClassDefinition describes a native class. The Properties and
	// Functions tables end at their last element, or at the first entry with
	// an empty name, whichever comes first.
	ClassDefinition struct {
		Constructor FunctionDefinition
		Finalize    FinalizeCallback
		ClassName   string
		Properties  []PropertyDefinition
		Functions   []FunctionDefinition
	}
)

const (
	// FlagUseUTF8 requests UTF-8 string results where the engine has a choice.
	FlagUseUTF8 Flags = 1 << iota

	// FlagUnlisted runs a script without recording it, so inspector
	// sessions neither report it nor break in it.
	FlagUnlisted
)

type (
	// Engine is the full native-facing contract of a scripting engine
	// instance. It is composed of smaller capability interfaces, which
	// components should prefer to depend upon.
	Engine interface {
		VersionInfo
		ExceptionState
		ScriptRunner
		Inspectable
		Callbacks
		Classes
		ObjectTypes
		References
		PrivateData
		Globals
		Properties
		Functions
		Constructors
		TypedArrays
		ArrayBuffers
		Promises
		Scopes
		RefCounted
	}

	VersionInfo interface {
		// GetVersion returns the protocol version the engine was loaded with.
		GetVersion() int
	}

	// ExceptionState exposes the exception recorded by the last failing
	// operation. Exceptions never propagate as panics across this boundary.
	ExceptionState interface {
		HasException() bool
		GetException() Exception
		SetException(exception Exception)
		ClearException()
	}

	ScriptRunner interface {
		// ExecuteScript evaluates code, a string value, storing the
		// completion value in result. On failure it returns false and records
		// an exception.
		ExecuteScript(code *Value, result *Value, fileName string, startLine int, flags Flags) bool
	}

	Inspectable interface {
		// CreateInspectorSession creates a debugger session delivering to
		// client. A non-empty state restores a blob produced by
		// [InspectorSession.GetStateJSON].
		CreateInspectorSession(client InspectorClient, contextGroupID int, state string, recreated bool) InspectorSession
	}

	Callbacks interface {
		// RegisterCallbackOnObject installs a native function named domain on
		// obj, or on the global object if obj is nil.
		RegisterCallbackOnObject(obj Object, domain string, callback UserFunctionCallback, userData any, flags Flags) bool
	}

	Classes interface {
		CreateClass(def *ClassDefinition, super Class) Class
		GetClass(name string) Class
		NewInstance(class Class) Object
		NewInstanceWithConstructor(class Class, args []Value) Object
		GetClassConstructorFunction(class Class) Object
	}

	ObjectTypes interface {
		// GetObjectType returns the object kind of obj, or [KindNull] if obj
		// is not an object of this engine.
		GetObjectType(obj Object) Kind
		GetTypedArrayType(obj Object) TypedArrayType
	}

	References interface {
		// NewObjectReference returns a strong reference to obj, which keeps it
		// alive until the matching DeleteObjectReference.
		NewObjectReference(obj Object) Object
		// NewObjectWeakReference returns a reference that does not keep obj
		// alive. The callback, if any, is invoked once obj is collected.
		NewObjectWeakReference(obj Object, callback WeakReferenceCallback, userData any) Object
		DeleteObjectReference(ref Object)
		// GetWeakReferenceCallbackInfo unpacks the argument of a
		// [WeakReferenceCallback].
		GetWeakReferenceCallbackInfo(weakData any) (userData, internal any)
	}

	PrivateData interface {
		GetObjectPrivateData(obj Object) any
		SetObjectPrivateData(obj Object, data any) bool
		GetObjectPrivateExtraData(obj Object) any
		SetObjectPrivateExtraData(obj Object, data any) bool
	}

	Globals interface {
		GetGlobalObject() Object
		SetGlobal(key, value *Value) bool
		GetGlobal(key, value *Value, flags Flags) bool
	}

	// Properties provides key and index access. A false return means the
	// property does not exist or the operation failed, never that the
	// property is null.
	Properties interface {
		GetObjectProperty(obj Object, key, value *Value, flags Flags) bool
		SetObjectProperty(obj Object, key, value *Value) bool
		// GetObjectPropertyNames returns an array of the own enumerable
		// property names of obj.
		GetObjectPropertyNames(obj Object) Object
		GetObjectLength(obj Object) int
		GetObjectAtIndex(obj Object, index int, value *Value, flags Flags) bool
		SetObjectAtIndex(obj Object, index int, value *Value) bool
	}

	Functions interface {
		NewFunction(callback FunctionCallback, userData any, flags Flags) Object
		CallFunction(fn, this Object, args []Value, result *Value, flags Flags) bool
		CallFunctionAsConstructor(fn Object, args []Value) Object
	}

	Constructors interface {
		NewObject() Object
		NewArray(length int) Object
		NewArrayWithValues(args []Value) Object
	}

	TypedArrays interface {
		NewTypedArray(t TypedArrayType, count int) Object
		NewTypedArrayArrayBuffer(t TypedArrayType, buffer Object, elementOffset, count int) Object
		GetTypedArrayCount(obj Object) int
		// GetTypedArrayPointer returns the bytes of obj starting at
		// elementOffset, aliasing the backing buffer.
		GetTypedArrayPointer(obj Object, elementOffset int) []byte
		GetTypedArrayArrayBuffer(obj Object) Object
	}

	ArrayBuffers interface {
		NewArrayBuffer(length int) Object
		// NewArrayBufferExternal wraps caller-owned bytes. The engine never
		// frees them; it invokes release, if set, once it stops using them.
		NewArrayBufferExternal(data []byte, release WeakReferenceCallback, userData any) Object
		GetArrayBufferLength(obj Object) int
		GetArrayBufferPointer(obj Object) []byte
	}

	// Promises controls promises and their resolvers. Settling a resolver
	// more than once is engine-defined.
	Promises interface {
		CreateResolver() Object
		GetPromiseFromResolver(resolver Object) Object
		Resolve(resolver Object, value *Value) bool
		Reject(resolver Object, value *Value) bool
		SetPromiseThen(promise, fn Object) bool
		SetPromiseCatch(promise, fn Object) bool
		PromiseHasHandler(promise Object) bool
		GetPromiseState(promise Object) PromiseState
		GetPromiseResult(promise Object, value *Value, flags Flags) bool
	}

	// Scopes brackets short-lived references so the engine may reclaim them
	// in bulk. Every PushScope must be paired with a PopScope; see
	// [WithScope].
	Scopes interface {
		PushScope()
		PopScope()
	}

	RefCounted interface {
		AddReference()
		Release()
	}
)

// WithScope runs fn inside a PushScope/PopScope pair, popping the scope on
// every exit path, including panics.
func WithScope(s Scopes, fn func()) {
	s.PushScope()
	defer s.PopScope()
	fn()
}

// Execute evaluates a Go string of code, see [ScriptRunner.ExecuteScript].
func Execute(e ScriptRunner, code string, result *Value, fileName string, startLine int) bool {
	var v Value
	v.SetUTF8([]byte(code), len(code), false)
	return e.ExecuteScript(&v, result, fileName, startLine, FlagUseUTF8)
}
