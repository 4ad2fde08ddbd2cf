// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaenv

import (
	"slices"
	"strconv"
	"sync/atomic"

	"github.com/dlclark/regexp2"
	"github.com/dop251/goja"
	"github.com/joeycumines/go-jsenv"
	"github.com/joeycumines/go-jsenv/logging"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type stepMode int

const (
	stepNone stepMode = iota
	stepInto
	stepOver
	stepOut
)

type (
	// script is a unit of source executed by the engine.
	script struct {
		// lines is nil unless the script was instrumented
		lines     map[int]bool
		id        string
		url       string
		source    string
		index     int
		startLine int
		endLine   int
	}

	breakpoint struct {
		re        *regexp2.Regexp
		resolved  map[int]int
		id        string
		url       string
		urlRegex  string
		condition string
		line      int
	}

	pausedFrame struct {
		script *script
		eval   goja.Callable
		line   int
		depth  int
	}

	session struct {
		e               *Engine
		client          jsenv.InspectorClient
		breakpoints     map[string]*breakpoint
		frame           *pausedFrame
		pausedParams    string
		pauseReason     string
		pauseData       string
		group           int
		step            stepMode
		stepDepth       int
		state           atomic.Int32
		paused          bool
		pauseRequested  bool
		runtimeEnabled  bool
		debuggerEnabled bool
		skipAll         bool
	}
)

var _ jsenv.InspectorSession = (*session)(nil)

func (e *Engine) addScript(url, source string, startLine int) *script {
	s := &script{
		id:        strconv.Itoa(len(e.scripts) + 1),
		url:       url,
		source:    source,
		index:     len(e.scripts),
		startLine: startLine - 1,
	}
	s.endLine = s.startLine
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' {
			s.endLine++
		}
	}
	e.scripts = append(e.scripts, s)
	return s
}

func (e *Engine) scriptByID(id string) *script {
	n, err := strconv.Atoi(id)
	if err != nil || n < 1 || n > len(e.scripts) {
		return nil
	}
	return e.scripts[n-1]
}

// scriptByURL returns the most recent script with url.
func (e *Engine) scriptByURL(url string) *script {
	for i := len(e.scripts) - 1; i >= 0; i-- {
		if e.scripts[i].url == url {
			return e.scripts[i]
		}
	}
	return nil
}

// CreateInspectorSession implements [jsenv.Inspectable]. An engine has at
// most one open session; creating another closes the previous one.
func (e *Engine) CreateInspectorSession(client jsenv.InspectorClient, contextGroupID int, state string, recreated bool) jsenv.InspectorSession {
	if client == nil {
		return nil
	}
	if e.session != nil {
		e.session.Close()
	}
	s := &session{
		e:           e,
		client:      client,
		group:       contextGroupID,
		breakpoints: make(map[string]*breakpoint),
	}
	if state != "" {
		s.restore(state)
	}
	e.session = s
	logging.L().Debug().
		Str("tag", logTag).
		Int("group", contextGroupID).
		Bool("recreated", recreated).
		Log("inspector session created")
	return s
}

// installProbe points the global probe at this engine. The property stays
// configurable so that a later engine on the same runtime can claim it.
func (e *Engine) installProbe() bool {
	if e.probeFailed {
		return false
	}
	if e.probe == nil {
		e.probe = e.rt.ToValue(func(call goja.FunctionCall) goja.Value {
			if s := e.session; s != nil && uint64(call.Argument(0).ToInteger()) == e.id {
				eval, _ := goja.AssertFunction(call.Argument(4))
				s.probe(int(call.Argument(1).ToInteger()), int(call.Argument(2).ToInteger()), call.Argument(3).ToBoolean(), eval)
			}
			return goja.Undefined()
		}).(*goja.Object)
	}
	global := e.rt.GlobalObject()
	if v := global.Get(probeName); v != nil && v.SameAs(e.probe) {
		return true
	}
	if err := global.DefineDataProperty(probeName, e.probe, goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		e.probeFailed = true
		logging.L().Crit().
			Str("tag", logTag).
			Err(err).
			Log("failed to install debugger probe, scripts will not be instrumented")
		return false
	}
	return true
}

func (s *session) State() jsenv.SessionState {
	return jsenv.SessionState(s.state.Load())
}

func (s *session) closed() bool {
	return s.State() == jsenv.SessionClosed
}

// Close implements [jsenv.InspectorSession]. Closing a paused session quits
// the pause loop, after which the paused script is interrupted.
func (s *session) Close() {
	if s.closed() {
		return
	}
	s.state.Store(int32(jsenv.SessionClosed))
	if s.e.session == s {
		s.e.session = nil
	}
	if s.paused {
		s.client.QuitMessageLoopOnPause()
	}
}

func (s *session) SchedulePauseOnNextStatement(reason, details string) {
	s.pauseRequested = true
	s.pauseReason = reason
	s.pauseData = details
}

func (s *session) CancelPauseOnNextStatement() {
	s.pauseRequested = false
	s.pauseReason = ""
	s.pauseData = ""
}

// BreakProgram pauses immediately, if the debugger is enabled and not
// already paused. Outside of a script the paused state has no call frames.
func (s *session) BreakProgram(reason, details string) {
	if s.closed() || s.paused || !s.debuggerEnabled {
		return
	}
	s.pause(reason, details, nil, &pausedFrame{depth: s.depth()})
}

func (s *session) SetSkipAllPauses(skip bool) {
	s.skipAll = skip
}

func (s *session) Resume() {
	if s.paused {
		s.client.QuitMessageLoopOnPause()
	}
}

func (s *session) StepOver() {
	s.stepAndResume(stepOver)
}

func (s *session) stepAndResume(mode stepMode) bool {
	if !s.paused {
		return false
	}
	s.step = mode
	s.stepDepth = s.frame.depth
	s.Resume()
	return true
}

// OnFrontendReload drops breakpoints that never resolved to a location. The
// domains are disabled, so the new frontend's enable calls report the
// execution context, known scripts and any current pause.
func (s *session) OnFrontendReload() {
	s.runtimeEnabled = false
	s.debuggerEnabled = false
	for id, bp := range s.breakpoints {
		if len(bp.resolved) == 0 {
			delete(s.breakpoints, id)
		}
	}
}

// turnEnded is called once the outermost engine call returns.
func (s *session) turnEnded() {
	s.step = stepNone
}

func (s *session) depth() int {
	return len(s.e.rt.CaptureCallStack(0, nil))
}

// probe is reached ahead of every instrumented statement.
func (s *session) probe(index, line int, debugger bool, eval goja.Callable) {
	if s.closed() || s.paused || !s.debuggerEnabled || s.skipAll {
		return
	}
	if index < 0 || index >= len(s.e.scripts) {
		return
	}
	sc := s.e.scripts[index]
	frame := &pausedFrame{script: sc, line: line, eval: eval, depth: -1}

	var (
		reason, data string
		hit          []string
	)
	switch {
	case s.pauseRequested:
		reason, data = s.pauseReason, s.pauseData
	case debugger:
		reason = "other"
	default:
		if s.step != stepNone {
			frame.depth = s.depth()
			switch s.step {
			case stepInto:
				reason = "step"
			case stepOver:
				if frame.depth <= s.stepDepth {
					reason = "step"
				}
			case stepOut:
				if frame.depth < s.stepDepth {
					reason = "step"
				}
			}
		}
		if reason == "" {
			if hit = s.hits(frame); len(hit) != 0 {
				reason = "other"
			}
		}
	}
	if reason == "" {
		return
	}
	if frame.depth < 0 {
		frame.depth = s.depth()
	}
	s.pause(reason, data, hit, frame)
}

// hits returns the ids of the breakpoints at the frame's location whose
// conditions hold.
func (s *session) hits(frame *pausedFrame) []string {
	var hit []string
	for _, id := range s.breakpointIDs() {
		bp := s.breakpoints[id]
		if line, ok := bp.resolved[frame.script.index]; !ok || line != frame.line {
			continue
		}
		if bp.condition != "" && frame.eval != nil {
			v, err := frame.eval(goja.Undefined(), s.e.rt.ToValue(bp.condition))
			if err != nil || !v.ToBoolean() {
				continue
			}
		}
		hit = append(hit, id)
	}
	return hit
}

func (s *session) breakpointIDs() []string {
	ids := make([]string, 0, len(s.breakpoints))
	for id := range s.breakpoints {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// pause blocks in the client's pause loop until resumed or closed.
func (s *session) pause(reason, data string, hit []string, frame *pausedFrame) {
	s.paused = true
	s.frame = frame
	s.step = stepNone
	s.CancelPauseOnNextStatement()

	params := newObject().
		Raw("callFrames", s.callFrames(frame)).
		Str("reason", reason)
	if data != "" && gjson.Valid(data) {
		params.Raw("data", data)
	}
	params.Raw("hitBreakpoints", stringArray(hit))
	s.pausedParams = params.String()
	s.notify("Debugger.paused", s.pausedParams)

	s.client.RunMessageLoopOnPause(s.group)

	s.paused = false
	s.frame = nil
	s.pausedParams = ""
	if s.closed() {
		s.e.rt.Interrupt(errSessionClosed)
		s.e.interrupted = true
		return
	}
	s.notify("Debugger.resumed", "{}")
}

// callFrames encodes the paused call stack. Only the top frame records a
// column-accurate scope for evaluation; lines are exact for every frame.
func (s *session) callFrames(frame *pausedFrame) string {
	var frames []string
	top := true
	for _, f := range s.e.rt.CaptureCallStack(0, nil) {
		if f.SrcName() == "<native>" {
			continue
		}
		sc := s.e.scriptByURL(f.SrcName())
		line := f.Position().Line - 1
		if top && frame.script != nil {
			sc, line = frame.script, frame.line
		}
		if sc == nil {
			continue
		}
		id := strconv.Itoa(len(frames))
		frames = append(frames, newObject().
			Str("callFrameId", id).
			Str("functionName", f.FuncName()).
			Raw("location", newObject().
				Str("scriptId", sc.id).
				Int("lineNumber", line).
				Int("columnNumber", 0).
				String()).
			Str("url", sc.url).
			Raw("scopeChain", "[]").
			Raw("this", `{"type":"undefined"}`).
			String())
		top = false
	}
	return array(frames)
}

func (s *session) notify(method, params string) {
	s.client.SendNotification(newObject().
		Str("method", method).
		Raw("params", params).
		String())
}

// scriptParsed resolves breakpoints against a new script, reporting it if
// the debugger is enabled.
func (s *session) scriptParsed(sc *script) {
	if s.closed() {
		return
	}
	if s.debuggerEnabled {
		s.notify("Debugger.scriptParsed", scriptParsedParams(sc, s.group))
	}
	for _, id := range s.breakpointIDs() {
		bp := s.breakpoints[id]
		if line, ok := bp.resolve(sc); ok && s.debuggerEnabled {
			s.notify("Debugger.breakpointResolved", newObject().
				Str("breakpointId", id).
				Raw("location", location(sc, line)).
				String())
		}
	}
}

func scriptParsedParams(sc *script, group int) string {
	return newObject().
		Str("scriptId", sc.id).
		Str("url", sc.url).
		Int("startLine", sc.startLine).
		Int("startColumn", 0).
		Int("endLine", sc.endLine).
		Int("endColumn", 0).
		Int("executionContextId", group).
		Str("hash", "").
		Int("length", len(sc.source)).
		String()
}

func location(sc *script, line int) string {
	return newObject().
		Str("scriptId", sc.id).
		Int("lineNumber", line).
		Int("columnNumber", 0).
		String()
}

func (bp *breakpoint) matches(sc *script) bool {
	if bp.re != nil {
		ok, err := bp.re.MatchString(sc.url)
		return err == nil && ok
	}
	return bp.url == sc.url
}

// resolve records the first statement line at or after the breakpoint line
// in sc, if any.
func (bp *breakpoint) resolve(sc *script) (int, bool) {
	if sc.lines == nil || !bp.matches(sc) {
		return 0, false
	}
	best := -1
	for line := range sc.lines {
		if line >= bp.line && (best < 0 || line < best) {
			best = line
		}
	}
	if best < 0 {
		return 0, false
	}
	if bp.resolved == nil {
		bp.resolved = make(map[int]int)
	}
	bp.resolved[sc.index] = best
	return best, true
}

// GetStateJSON implements [jsenv.InspectorSession], capturing the enabled
// domains, skip-all-pauses and breakpoints.
func (s *session) GetStateJSON() string {
	state := "{}"
	state, _ = sjson.Set(state, "runtimeEnabled", s.runtimeEnabled)
	state, _ = sjson.Set(state, "debuggerEnabled", s.debuggerEnabled)
	state, _ = sjson.Set(state, "skipAllPauses", s.skipAll)
	state, _ = sjson.SetRaw(state, "breakpoints", "[]")
	for i, id := range s.breakpointIDs() {
		bp := s.breakpoints[id]
		prefix := "breakpoints." + strconv.Itoa(i) + "."
		state, _ = sjson.Set(state, prefix+"id", bp.id)
		state, _ = sjson.Set(state, prefix+"lineNumber", bp.line)
		if bp.urlRegex != "" {
			state, _ = sjson.Set(state, prefix+"urlRegex", bp.urlRegex)
		} else {
			state, _ = sjson.Set(state, prefix+"url", bp.url)
		}
		if bp.condition != "" {
			state, _ = sjson.Set(state, prefix+"condition", bp.condition)
		}
	}
	return state
}

func (s *session) restore(state string) {
	if !gjson.Valid(state) {
		logging.L().Warning().
			Str("tag", logTag).
			Log("ignoring invalid inspector session state")
		return
	}
	parsed := gjson.Parse(state)
	s.runtimeEnabled = parsed.Get("runtimeEnabled").Bool()
	s.debuggerEnabled = parsed.Get("debuggerEnabled").Bool()
	s.skipAll = parsed.Get("skipAllPauses").Bool()
	parsed.Get("breakpoints").ForEach(func(_, v gjson.Result) bool {
		if _, err := s.addBreakpoint(v); err != nil {
			logging.L().Warning().
				Str("tag", logTag).
				Err(err).
				Log("dropping breakpoint from session state")
		}
		return true
	})
}
