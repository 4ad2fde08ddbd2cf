// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaenv

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/dop251/goja"
	"github.com/joeycumines/go-jsenv"
	"github.com/joeycumines/go-jsenv/logging"
	"github.com/tidwall/gjson"
)

// Protocol error codes, as used by the Chrome DevTools Protocol.
const (
	codeServerError    = -32000
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type protocolError struct {
	message string
	code    int
}

func (e *protocolError) Error() string { return e.message }

var errNotPaused = &protocolError{code: codeServerError, message: "Can only perform operation while paused."}

type handler func(s *session, params gjson.Result) (string, error)

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		"Runtime.enable":                  (*session).runtimeEnable,
		"Runtime.disable":                 (*session).runtimeDisable,
		"Runtime.evaluate":                (*session).runtimeEvaluate,
		"Runtime.runIfWaitingForDebugger": (*session).runIfWaitingForDebugger,
		"Debugger.enable":                 (*session).debuggerEnable,
		"Debugger.disable":                (*session).debuggerDisable,
		"Debugger.setBreakpointByUrl":     (*session).setBreakpointByURL,
		"Debugger.removeBreakpoint":       (*session).removeBreakpoint,
		"Debugger.pause":                  (*session).debuggerPause,
		"Debugger.resume":                 (*session).debuggerResume,
		"Debugger.stepOver":               stepHandler(stepOver),
		"Debugger.stepInto":               stepHandler(stepInto),
		"Debugger.stepOut":                stepHandler(stepOut),
		"Debugger.setSkipAllPauses":       (*session).setSkipAllPauses,
		"Debugger.getScriptSource":        (*session).getScriptSource,
		"Debugger.evaluateOnCallFrame":    (*session).evaluateOnCallFrame,
	}
}

// CanDispatchMethod reports whether method belongs to a protocol domain
// implemented by the session.
func (s *session) CanDispatchMethod(method string) bool {
	domain, _, _ := strings.Cut(method, ".")
	return domain == "Runtime" || domain == "Debugger"
}

// DispatchProtocolMessage implements [jsenv.InspectorSession]. Each command
// receives exactly one response, sent after any notifications its handler
// emits.
func (s *session) DispatchProtocolMessage(message string) {
	if s.closed() {
		return
	}
	s.state.CompareAndSwap(int32(jsenv.SessionCreated), int32(jsenv.SessionActive))

	if !gjson.Valid(message) {
		logging.L().Warning().
			Str("tag", logTag).
			Log("dropping malformed protocol message")
		return
	}
	msg := gjson.Parse(message)
	id := int(msg.Get("id").Int())
	method := msg.Get("method").String()

	h, ok := handlers[method]
	if !ok {
		s.respondError(id, &protocolError{code: codeMethodNotFound, message: fmt.Sprintf("'%s' wasn't found", method)})
		return
	}
	result, err := h(s, msg.Get("params"))
	if err != nil {
		s.respondError(id, err)
		return
	}
	if s.closed() {
		return
	}
	s.client.SendResponse(id, newObject().
		Int("id", id).
		Raw("result", result).
		String())
}

func (s *session) respondError(id int, err error) {
	var perr *protocolError
	if !errors.As(err, &perr) {
		perr = &protocolError{code: codeServerError, message: err.Error()}
	}
	s.client.SendResponse(id, newObject().
		Int("id", id).
		Raw("error", newObject().
			Int("code", perr.code).
			Str("message", perr.message).
			String()).
		String())
}

func (s *session) runtimeEnable(gjson.Result) (string, error) {
	s.runtimeEnabled = true
	s.notify("Runtime.executionContextCreated", newObject().
		Raw("context", newObject().
			Int("id", s.group).
			Str("origin", "").
			Str("name", "jsenv").
			Str("uniqueId", "jsenv-"+strconv.Itoa(s.group)).
			String()).
		String())
	return "{}", nil
}

func (s *session) runtimeDisable(gjson.Result) (string, error) {
	s.runtimeEnabled = false
	return "{}", nil
}

func (s *session) runtimeEvaluate(params gjson.Result) (string, error) {
	expr := params.Get("expression")
	if !expr.Exists() {
		return "", &protocolError{code: codeInvalidParams, message: "expression is required"}
	}
	return s.evaluate(nil, expr.String(), params.Get("returnByValue").Bool()), nil
}

func (s *session) runIfWaitingForDebugger(gjson.Result) (string, error) {
	s.client.RunIfWaitingForDebugger(s.group)
	return "{}", nil
}

func (s *session) debuggerEnable(gjson.Result) (string, error) {
	if !s.debuggerEnabled {
		s.debuggerEnabled = true
		for _, sc := range s.e.scripts {
			s.notify("Debugger.scriptParsed", scriptParsedParams(sc, s.group))
		}
		if s.paused && s.pausedParams != "" {
			s.notify("Debugger.paused", s.pausedParams)
		}
	}
	return newObject().Str("debuggerId", "jsenv-"+strconv.Itoa(s.group)).String(), nil
}

func (s *session) debuggerDisable(gjson.Result) (string, error) {
	s.debuggerEnabled = false
	s.CancelPauseOnNextStatement()
	s.Resume()
	return "{}", nil
}

// addBreakpoint creates a breakpoint from the parameters of
// Debugger.setBreakpointByUrl, resolving it against known scripts.
func (s *session) addBreakpoint(params gjson.Result) (*breakpoint, error) {
	line := params.Get("lineNumber")
	if !line.Exists() || line.Int() < 0 {
		return nil, &protocolError{code: codeInvalidParams, message: "lineNumber is required"}
	}
	bp := &breakpoint{
		url:       params.Get("url").String(),
		urlRegex:  params.Get("urlRegex").String(),
		condition: params.Get("condition").String(),
		line:      int(line.Int()),
	}
	switch {
	case bp.urlRegex != "":
		re, err := regexp2.Compile(bp.urlRegex, regexp2.ECMAScript)
		if err != nil {
			return nil, &protocolError{code: codeInvalidParams, message: "Invalid urlRegex: " + err.Error()}
		}
		bp.re = re
		bp.id = fmt.Sprintf("4:%d:0:%s", bp.line, bp.urlRegex)
	case params.Get("url").Exists():
		bp.id = fmt.Sprintf("1:%d:0:%s", bp.line, bp.url)
	default:
		return nil, &protocolError{code: codeInvalidParams, message: "Either url or urlRegex must be specified."}
	}
	if _, ok := s.breakpoints[bp.id]; ok {
		return nil, &protocolError{code: codeServerError, message: "Breakpoint at specified location already exists."}
	}
	for _, sc := range s.e.scripts {
		bp.resolve(sc)
	}
	s.breakpoints[bp.id] = bp
	return bp, nil
}

func (s *session) setBreakpointByURL(params gjson.Result) (string, error) {
	bp, err := s.addBreakpoint(params)
	if err != nil {
		return "", err
	}
	var locations []string
	for _, sc := range s.e.scripts {
		if line, ok := bp.resolved[sc.index]; ok {
			locations = append(locations, location(sc, line))
		}
	}
	return newObject().
		Str("breakpointId", bp.id).
		Raw("locations", array(locations)).
		String(), nil
}

func (s *session) removeBreakpoint(params gjson.Result) (string, error) {
	delete(s.breakpoints, params.Get("breakpointId").String())
	return "{}", nil
}

func (s *session) debuggerPause(gjson.Result) (string, error) {
	if !s.paused {
		s.SchedulePauseOnNextStatement("other", "")
	}
	return "{}", nil
}

func (s *session) debuggerResume(gjson.Result) (string, error) {
	if !s.paused {
		return "", errNotPaused
	}
	s.Resume()
	return "{}", nil
}

func stepHandler(mode stepMode) handler {
	return func(s *session, _ gjson.Result) (string, error) {
		if !s.stepAndResume(mode) {
			return "", errNotPaused
		}
		return "{}", nil
	}
}

func (s *session) setSkipAllPauses(params gjson.Result) (string, error) {
	s.SetSkipAllPauses(params.Get("skip").Bool())
	return "{}", nil
}

func (s *session) getScriptSource(params gjson.Result) (string, error) {
	id := params.Get("scriptId").String()
	sc := s.e.scriptByID(id)
	if sc == nil {
		return "", &protocolError{code: codeServerError, message: "No script for id: " + id}
	}
	return newObject().Str("scriptSource", sc.source).String(), nil
}

func (s *session) evaluateOnCallFrame(params gjson.Result) (string, error) {
	if !s.paused {
		return "", errNotPaused
	}
	frameID := params.Get("callFrameId").String()
	if _, err := strconv.Atoi(frameID); err != nil {
		return "", &protocolError{code: codeServerError, message: "Invalid call frame id"}
	}
	var eval goja.Callable
	if frameID == "0" {
		eval = s.frame.eval
	}
	return s.evaluate(eval, params.Get("expression").String(), params.Get("returnByValue").Bool()), nil
}

// evaluate runs expr, in the scope captured by eval if non-nil, otherwise
// globally, encoding the result or exception.
func (s *session) evaluate(eval goja.Callable, expr string, byValue bool) string {
	var (
		v   goja.Value
		err error
	)
	if eval != nil {
		v, err = eval(goja.Undefined(), s.e.rt.ToValue(expr))
	} else {
		v, err = s.e.rt.RunString(expr)
	}
	if err == nil {
		return newObject().Raw("result", s.remoteObject(v, byValue)).String()
	}

	var (
		jsErr     *goja.Exception
		exception goja.Value = s.e.rt.ToValue(err.Error())
	)
	if errors.As(err, &jsErr) && jsErr.Value() != nil {
		exception = jsErr.Value()
	}
	remote := s.remoteObject(exception, false)
	return newObject().
		Raw("result", remote).
		Raw("exceptionDetails", newObject().
			Int("exceptionId", 1).
			Str("text", "Uncaught").
			Int("lineNumber", 0).
			Int("columnNumber", 0).
			Raw("exception", remote).
			String()).
		String()
}

// remoteObject encodes v as a protocol RemoteObject.
func (s *session) remoteObject(v goja.Value, byValue bool) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return `{"type":"undefined"}`
	case goja.IsNull(v):
		return `{"type":"object","subtype":"null","value":null}`
	}
	if o, ok := v.(*goja.Object); ok {
		return s.remoteObjectOf(o, byValue)
	}
	if sym, ok := v.(*goja.Symbol); ok {
		return newObject().Str("type", "symbol").Str("description", sym.String()).String()
	}

	switch x := v.Export().(type) {
	case bool:
		return newObject().Str("type", "boolean").Bool("value", x).String()
	case string:
		return newObject().Str("type", "string").Str("value", x).String()
	case int64:
		return newObject().Str("type", "number").Int("value", int(x)).Str("description", v.String()).String()
	case float64:
		obj := newObject().Str("type", "number")
		description := v.String()
		if x == 0 && math.Signbit(x) {
			description = "-0"
		}
		if math.IsNaN(x) || math.IsInf(x, 0) || description == "-0" {
			obj.Str("unserializableValue", description)
		} else {
			obj.Float("value", x)
		}
		return obj.Str("description", description).String()
	case *big.Int:
		return newObject().Str("type", "bigint").Str("unserializableValue", x.String()+"n").Str("description", x.String()+"n").String()
	}
	return newObject().Str("type", "undefined").Str("description", v.String()).String()
}

func (s *session) remoteObjectOf(o *goja.Object, byValue bool) string {
	kind := s.e.objectKind(o)
	if kind == jsenv.KindFunction {
		return newObject().
			Str("type", "function").
			Str("className", "Function").
			Str("description", s.describe(o, "function")).
			String()
	}
	if byValue {
		if b, err := o.MarshalJSON(); err == nil && gjson.ValidBytes(b) {
			return newObject().Str("type", "object").Raw("value", string(b)).String()
		}
	}

	obj := newObject().Str("type", "object")
	description := o.ClassName()
	switch kind {
	case jsenv.KindArray:
		obj.Str("subtype", "array")
		description = "Array(" + strconv.Itoa(s.e.GetObjectLength(o)) + ")"
	case jsenv.KindTypedArray:
		obj.Str("subtype", "typedarray")
		description = s.e.typedArrayType(o).String() + "(" + strconv.Itoa(s.e.GetObjectLength(o)) + ")"
	case jsenv.KindArrayBuffer:
		obj.Str("subtype", "arraybuffer")
	case jsenv.KindDataView:
		obj.Str("subtype", "dataview")
	case jsenv.KindPromise:
		obj.Str("subtype", "promise")
		description = "Promise"
	default:
		if s.e.instanceOf(o, s.e.ctors.error) {
			obj.Str("subtype", "error")
			description = s.describe(o, description)
		}
	}
	return obj.
		Str("className", o.ClassName()).
		Str("description", description).
		String()
}

// describe returns the string conversion of o, or fallback if it throws.
func (s *session) describe(o *goja.Object, fallback string) string {
	description := fallback
	if s.e.rt.Try(func() { description = o.String() }) != nil {
		return fallback
	}
	return description
}

// consoleAPICalled reports a console call, if the runtime domain is enabled.
func (s *session) consoleAPICalled(typ, msg string) {
	if s.closed() || !s.runtimeEnabled {
		return
	}
	s.notify("Runtime.consoleAPICalled", newObject().
		Str("type", typ).
		Raw("args", array([]string{newObject().Str("type", "string").Str("value", msg).String()})).
		Int("executionContextId", s.group).
		Float("timestamp", float64(time.Now().UnixNano())/1e6).
		String())
}
