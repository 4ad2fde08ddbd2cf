package gojaenv

import (
	"fmt"
	"testing"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-jsenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// fakeClient runs one handler per pause, in place of a blocking message loop.
type fakeClient struct {
	jsenv.UnimplementedInspectorClient
	t         *testing.T
	session   jsenv.InspectorSession
	responses map[int]gjson.Result
	events    []gjson.Result
	onPause   []func(paused gjson.Result)
	nextID    int
	waiting   int
	quit      bool
}

func (c *fakeClient) SendResponse(callID int, message string) {
	require.True(c.t, gjson.Valid(message), message)
	c.responses[callID] = gjson.Parse(message)
}

func (c *fakeClient) SendNotification(message string) {
	require.True(c.t, gjson.Valid(message), message)
	c.events = append(c.events, gjson.Parse(message))
}

func (c *fakeClient) RunMessageLoopOnPause(int) {
	if !assert.NotEmpty(c.t, c.onPause, "unexpected pause") {
		return
	}
	fn := c.onPause[0]
	c.onPause = c.onPause[1:]
	c.quit = false
	fn(c.last("Debugger.paused").Get("params"))
	assert.True(c.t, c.quit, "pause handler did not resume")
}

func (c *fakeClient) QuitMessageLoopOnPause() { c.quit = true }

func (c *fakeClient) RunIfWaitingForDebugger(int) { c.waiting++ }

func (c *fakeClient) send(method, params string) gjson.Result {
	c.nextID++
	msg := fmt.Sprintf(`{"id":%d,"method":%q`, c.nextID, method)
	if params != "" {
		msg += `,"params":` + params
	}
	c.session.DispatchProtocolMessage(msg + "}")
	return c.responses[c.nextID]
}

func (c *fakeClient) last(method string) gjson.Result {
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Get("method").String() == method {
			return c.events[i]
		}
	}
	return gjson.Result{}
}

func (c *fakeClient) count(method string) int {
	var n int
	for _, ev := range c.events {
		if ev.Get("method").String() == method {
			n++
		}
	}
	return n
}

func newSession(t *testing.T, opts ...Option) (*Engine, *fakeClient) {
	t.Helper()
	e := newTestEngine(t, opts...)
	c := &fakeClient{t: t, responses: make(map[int]gjson.Result)}
	c.session = e.CreateInspectorSession(c, 1, "", false)
	require.NotNil(t, c.session)
	return e, c
}

func TestSession_dispatch(t *testing.T) {
	_, c := newSession(t)
	assert.Equal(t, jsenv.SessionCreated, c.session.State())

	resp := c.send("Profiler.enable", "")
	assert.Equal(t, jsenv.SessionActive, c.session.State())
	assert.Equal(t, int64(1), resp.Get("id").Int())
	assert.Equal(t, int64(codeMethodNotFound), resp.Get("error.code").Int())
	assert.Equal(t, "'Profiler.enable' wasn't found", resp.Get("error.message").String())

	assert.True(t, c.session.CanDispatchMethod("Runtime.evaluate"))
	assert.True(t, c.session.CanDispatchMethod("Debugger.anything"))
	assert.False(t, c.session.CanDispatchMethod("Profiler.enable"))

	c.session.DispatchProtocolMessage("not json")
	assert.Len(t, c.responses, 1)

	resp = c.send("Debugger.resume", "")
	assert.Equal(t, "Can only perform operation while paused.", resp.Get("error.message").String())
	resp = c.send("Debugger.stepOver", "")
	assert.Equal(t, int64(codeServerError), resp.Get("error.code").Int())

	c.session.Close()
	c.session.Close()
	assert.Equal(t, jsenv.SessionClosed, c.session.State())
	assert.False(t, c.send("Runtime.enable", "").Exists())
}

func TestSession_runtimeDomain(t *testing.T) {
	e, c := newSession(t)

	resp := c.send("Runtime.enable", "")
	assert.Equal(t, "{}", resp.Get("result").Raw)
	created := c.last("Runtime.executionContextCreated")
	require.True(t, created.Exists())
	assert.Equal(t, int64(1), created.Get("params.context.id").Int())

	run(t, e, "console.log('hi', 2)")
	called := c.last("Runtime.consoleAPICalled").Get("params")
	assert.Equal(t, "log", called.Get("type").String())
	assert.Equal(t, "hi 2", called.Get("args.0.value").String())
	assert.Equal(t, int64(1), called.Get("executionContextId").Int())

	c.send("Runtime.disable", "")
	run(t, e, "console.warn('quiet')")
	assert.Equal(t, 1, c.count("Runtime.consoleAPICalled"))

	c.send("Runtime.runIfWaitingForDebugger", "")
	assert.Equal(t, 1, c.waiting)
}

func TestSession_runtimeEvaluate(t *testing.T) {
	_, c := newSession(t)

	for _, tc := range []struct {
		expr, path, want string
	}{
		{`1 + 2`, "result.value", "3"},
		{`1 + 2`, "result.type", "number"},
		{`'x'`, "result.value", "x"},
		{`true`, "result.type", "boolean"},
		{`undefined`, "result.type", "undefined"},
		{`null`, "result.subtype", "null"},
		{`NaN`, "result.unserializableValue", "NaN"},
		{`-0`, "result.unserializableValue", "-0"},
		{`[1, 2]`, "result.subtype", "array"},
		{`[1, 2]`, "result.description", "Array(2)"},
		{`new Uint8Array(3)`, "result.description", "Uint8Array(3)"},
		{`Promise.resolve()`, "result.subtype", "promise"},
		{`(function named() {})`, "result.type", "function"},
		{`Symbol('s')`, "result.type", "symbol"},
		{`12n`, "result.unserializableValue", "12n"},
		{`new RangeError('r')`, "result.description", "RangeError: r"},
		{`({a: 1})`, "result.className", "Object"},
		{`throw new Error('bad')`, "exceptionDetails.exception.description", "Error: bad"},
		{`throw new Error('bad')`, "exceptionDetails.exception.subtype", "error"},
		{`throw 'raw'`, "exceptionDetails.exception.value", "raw"},
	} {
		params := fmt.Sprintf(`{"expression":%q}`, tc.expr)
		resp := c.send("Runtime.evaluate", params)
		assert.Equal(t, tc.want, resp.Get("result."+tc.path).String(), "%s %s", tc.expr, tc.path)
	}

	resp := c.send("Runtime.evaluate", `{"expression":"({a: [1, 'b']})","returnByValue":true}`)
	assert.JSONEq(t, `{"a":[1,"b"]}`, resp.Get("result.result.value").Raw)

	resp = c.send("Runtime.evaluate", `{}`)
	assert.Equal(t, int64(codeInvalidParams), resp.Get("error.code").Int())
}

func TestSession_debuggerEnableReportsScripts(t *testing.T) {
	e, c := newSession(t)
	run(t, e, "var early = 1;")
	assert.Equal(t, 0, c.count("Debugger.scriptParsed"))

	resp := c.send("Debugger.enable", "")
	assert.NotEmpty(t, resp.Get("result.debuggerId").String())
	parsed := c.last("Debugger.scriptParsed").Get("params")
	assert.Equal(t, "1", parsed.Get("scriptId").String())
	assert.Equal(t, "test.js", parsed.Get("url").String())

	run(t, e, "var late = 2;\nlate")
	parsed = c.last("Debugger.scriptParsed").Get("params")
	assert.Equal(t, "2", parsed.Get("scriptId").String())
	assert.Equal(t, int64(1), parsed.Get("endLine").Int())

	resp = c.send("Debugger.getScriptSource", `{"scriptId":"2"}`)
	assert.Equal(t, "var late = 2;\nlate", resp.Get("result.scriptSource").String())
	resp = c.send("Debugger.getScriptSource", `{"scriptId":"9"}`)
	assert.Equal(t, "No script for id: 9", resp.Get("error.message").String())
}

const functionScript = `function f(x) {
  var y = x * 2;
  return y + 1;
}
f(1);
f(20);`

func TestSession_breakpoint(t *testing.T) {
	e, c := newSession(t)
	c.send("Debugger.enable", "")

	resp := c.send("Debugger.setBreakpointByUrl", `{"url":"test.js","lineNumber":2,"condition":"x > 10"}`)
	id := resp.Get("result.breakpointId").String()
	assert.Equal(t, "1:2:0:test.js", id)
	assert.Equal(t, "[]", resp.Get("result.locations").Raw)

	resp = c.send("Debugger.setBreakpointByUrl", `{"url":"test.js","lineNumber":2}`)
	assert.Equal(t, int64(codeServerError), resp.Get("error.code").Int())
	resp = c.send("Debugger.setBreakpointByUrl", `{"lineNumber":2}`)
	assert.Equal(t, int64(codeInvalidParams), resp.Get("error.code").Int())

	c.onPause = append(c.onPause, func(paused gjson.Result) {
		assert.Equal(t, "other", paused.Get("reason").String())
		assert.Equal(t, id, paused.Get("hitBreakpoints.0").String())
		assert.Equal(t, int64(2), paused.Get("callFrames.0.location.lineNumber").Int())
		assert.Equal(t, "1", paused.Get("callFrames.0.location.scriptId").String())

		resp := c.send("Debugger.evaluateOnCallFrame", `{"callFrameId":"0","expression":"y"}`)
		assert.Equal(t, int64(40), resp.Get("result.result.value").Int())
		resp = c.send("Debugger.evaluateOnCallFrame", `{"callFrameId":"zero","expression":"y"}`)
		assert.True(t, resp.Get("error").Exists())

		c.send("Debugger.resume", "")
	})
	assert.Equal(t, int32(41), run(t, e, functionScript).IntVal())
	assert.Empty(t, c.onPause)
	assert.Equal(t, 1, c.count("Debugger.resumed"))

	resolved := c.last("Debugger.breakpointResolved").Get("params")
	assert.Equal(t, id, resolved.Get("breakpointId").String())
	assert.Equal(t, int64(2), resolved.Get("location.lineNumber").Int())

	c.send("Debugger.removeBreakpoint", fmt.Sprintf(`{"breakpointId":%q}`, id))
	run(t, e, functionScript)
	assert.Equal(t, 1, c.count("Debugger.paused"))
}

func TestSession_breakpointResolvesForward(t *testing.T) {
	e, c := newSession(t)
	c.send("Debugger.enable", "")
	run(t, e, "var a = 1;\n\n\nvar b = 2;")

	resp := c.send("Debugger.setBreakpointByUrl", `{"urlRegex":"^test\\.js$","lineNumber":1}`)
	assert.Equal(t, `4:1:0:^test\.js$`, resp.Get("result.breakpointId").String())
	assert.Equal(t, int64(3), resp.Get("result.locations.0.lineNumber").Int())

	resp = c.send("Debugger.setBreakpointByUrl", `{"urlRegex":"(","lineNumber":1}`)
	assert.Equal(t, int64(codeInvalidParams), resp.Get("error.code").Int())
}

const steppingScript = `function g() {
  return 1;
}
debugger;
var r = g();
r`

func TestSession_stepping(t *testing.T) {
	e, c := newSession(t)
	c.send("Debugger.enable", "")

	var lines []int64
	step := func(method string) func(gjson.Result) {
		return func(paused gjson.Result) {
			lines = append(lines, paused.Get("callFrames.0.location.lineNumber").Int())
			resp := c.send(method, "")
			assert.Equal(t, "{}", resp.Get("result").Raw, method)
		}
	}
	c.onPause = append(c.onPause,
		step("Debugger.stepOver"),
		step("Debugger.stepInto"),
		step("Debugger.stepOut"),
		step("Debugger.resume"),
	)
	assert.Equal(t, int32(1), run(t, e, steppingScript).IntVal())
	assert.Equal(t, []int64{3, 4, 1, 5}, lines)

	var reasons []string
	for _, ev := range c.events {
		if ev.Get("method").String() == "Debugger.paused" {
			reasons = append(reasons, ev.Get("params.reason").String())
		}
	}
	assert.Equal(t, []string{"other", "step", "step", "step"}, reasons)

	// steps do not carry over into the next script
	c.onPause = append(c.onPause, step("Debugger.stepOver"))
	run(t, e, "debugger;")
	run(t, e, "var after = 1;")
	assert.Equal(t, 5, c.count("Debugger.paused"))
}

func TestSession_pauseOnNextStatement(t *testing.T) {
	e, c := newSession(t)
	c.send("Debugger.enable", "")

	c.send("Debugger.pause", "")
	c.onPause = append(c.onPause, func(paused gjson.Result) {
		assert.Equal(t, "other", paused.Get("reason").String())
		assert.Equal(t, int64(0), paused.Get("callFrames.0.location.lineNumber").Int())
		c.session.Resume()
	})
	run(t, e, "var a = 1;\na")

	c.session.SchedulePauseOnNextStatement("ambiguous", `{"k":1}`)
	c.onPause = append(c.onPause, func(paused gjson.Result) {
		assert.Equal(t, "ambiguous", paused.Get("reason").String())
		assert.Equal(t, int64(1), paused.Get("data.k").Int())
		c.session.Resume()
	})
	run(t, e, "a")

	c.session.SchedulePauseOnNextStatement("cancelled", "")
	c.session.CancelPauseOnNextStatement()
	run(t, e, "a")
	assert.Equal(t, 2, c.count("Debugger.paused"))
}

func TestSession_skipAllPauses(t *testing.T) {
	e, c := newSession(t)
	c.send("Debugger.enable", "")
	c.send("Debugger.setSkipAllPauses", `{"skip":true}`)
	run(t, e, "debugger;")
	assert.Equal(t, 0, c.count("Debugger.paused"))

	c.session.SetSkipAllPauses(false)
	c.onPause = append(c.onPause, func(gjson.Result) { c.session.StepOver() })
	run(t, e, "debugger;")
	assert.Equal(t, 1, c.count("Debugger.paused"))
}

func TestSession_debuggerDisabled(t *testing.T) {
	e, c := newSession(t)
	run(t, e, "debugger;")
	c.session.BreakProgram("other", "")
	assert.Equal(t, 0, c.count("Debugger.paused"))

	c.send("Debugger.enable", "")
	c.onPause = append(c.onPause, func(paused gjson.Result) {
		assert.Equal(t, "other", paused.Get("reason").String())
		c.send("Debugger.disable", "")
	})
	run(t, e, "debugger;\ndebugger;")
	assert.Equal(t, 1, c.count("Debugger.paused"))
}

func TestSession_breakProgram(t *testing.T) {
	_, c := newSession(t)
	c.send("Debugger.enable", "")
	c.onPause = append(c.onPause, func(paused gjson.Result) {
		assert.Equal(t, "instrumentation", paused.Get("reason").String())
		c.send("Debugger.resume", "")
	})
	c.session.BreakProgram("instrumentation", "")
	assert.Equal(t, 1, c.count("Debugger.resumed"))
}

func TestSession_closeWhilePaused(t *testing.T) {
	e, c := newSession(t)
	c.send("Debugger.enable", "")
	c.onPause = append(c.onPause, func(gjson.Result) { c.session.Close() })

	var result jsenv.Value
	assert.False(t, jsenv.Execute(e, "debugger;\nglobalThis.after = 1;", &result, "close.js", 1))
	assert.Equal(t, jsenv.ExceptionNative, e.GetException().Type)
	assert.Nil(t, e.Runtime().Get("after"))
	assert.Nil(t, e.session)
	assert.Equal(t, 0, c.count("Debugger.resumed"))

	assert.Equal(t, int32(2), run(t, e, "1 + 1").IntVal())
}

func TestSession_state(t *testing.T) {
	_, c := newSession(t)
	c.send("Runtime.enable", "")
	c.send("Debugger.enable", "")
	c.send("Debugger.setBreakpointByUrl", `{"urlRegex":"^state","lineNumber":1,"condition":"true"}`)
	c.send("Debugger.setBreakpointByUrl", `{"url":"other.js","lineNumber":0}`)
	c.send("Debugger.setSkipAllPauses", `{"skip":true}`)

	state := c.session.GetStateJSON()
	parsed := gjson.Parse(state)
	assert.True(t, parsed.Get("debuggerEnabled").Bool())
	assert.True(t, parsed.Get("skipAllPauses").Bool())
	assert.Equal(t, int64(2), parsed.Get("breakpoints.#").Int())

	e2 := newTestEngine(t)
	c2 := &fakeClient{t: t, responses: make(map[int]gjson.Result)}
	c2.session = e2.CreateInspectorSession(c2, 2, state, true)
	require.NotNil(t, c2.session)
	assert.Equal(t, state, c2.session.GetStateJSON())

	c2.session.OnFrontendReload()
	assert.Equal(t, int64(0), gjson.Get(c2.session.GetStateJSON(), "breakpoints.#").Int())

	e3 := newTestEngine(t)
	s3 := e3.CreateInspectorSession(c2, 3, "not json", false)
	require.NotNil(t, s3)
	assert.False(t, gjson.Get(s3.GetStateJSON(), "debuggerEnabled").Bool())
}

func TestSession_restoredBreakpointHits(t *testing.T) {
	e, c := newSession(t)
	c.send("Debugger.enable", "")
	c.send("Debugger.setBreakpointByUrl", `{"url":"test.js","lineNumber":1}`)
	state := c.session.GetStateJSON()

	c2 := &fakeClient{t: t, responses: make(map[int]gjson.Result)}
	c2.session = e.CreateInspectorSession(c2, 1, state, true)
	assert.Equal(t, jsenv.SessionClosed, c.session.State())

	c2.onPause = append(c2.onPause, func(paused gjson.Result) {
		assert.Equal(t, "1:1:0:test.js", paused.Get("hitBreakpoints.0").String())
		c2.session.Resume()
	})
	run(t, e, "var a = 1;\nvar b = 2;")
	assert.Equal(t, 1, c2.count("Debugger.paused"))
	assert.Equal(t, 0, c.count("Debugger.paused"))

	// reload keeps resolved breakpoints
	c2.session.OnFrontendReload()
	assert.Equal(t, int64(1), gjson.Get(c2.session.GetStateJSON(), "breakpoints.#").Int())
}

func TestEngine_releaseClosesSession(t *testing.T) {
	e, err := New(goja.New())
	require.NoError(t, err)
	e.AddReference()
	c := &fakeClient{t: t, responses: make(map[int]gjson.Result)}
	s := e.CreateInspectorSession(c, 1, "", false)
	assert.Nil(t, e.CreateInspectorSession(nil, 1, "", false))
	e.Release()
	assert.Equal(t, jsenv.SessionClosed, s.State())
}

func TestInstrumentAll(t *testing.T) {
	e := newTestEngine(t, WithInstrumentAll(true))
	run(t, e, "var a = 1;\nvar b = 2;")
	require.Len(t, e.scripts, 1)
	assert.NotNil(t, e.scripts[0].lines)

	c := &fakeClient{t: t, responses: make(map[int]gjson.Result)}
	c.session = e.CreateInspectorSession(c, 1, "", false)
	c.send("Debugger.enable", "")
	resp := c.send("Debugger.setBreakpointByUrl", `{"url":"test.js","lineNumber":1}`)
	assert.Equal(t, int64(1), resp.Get("result.locations.0.lineNumber").Int())
}

func TestSession_sharedRuntime(t *testing.T) {
	rt := goja.New()
	attach := func() (*Engine, *fakeClient) {
		t.Helper()
		e, err := New(rt)
		require.NoError(t, err)
		e.AddReference()
		c := &fakeClient{t: t, responses: make(map[int]gjson.Result)}
		c.session = e.CreateInspectorSession(c, 1, "", false)
		require.NotNil(t, c.session)
		c.send("Debugger.enable", "")
		c.onPause = append(c.onPause, func(paused gjson.Result) {
			assert.Equal(t, "other", paused.Get("reason").String())
			c.session.Resume()
		})
		return e, c
	}

	e1, c1 := attach()
	run(t, e1, "function tick() {\n  return 1;\n}\ndebugger;")
	assert.Equal(t, 1, c1.count("Debugger.paused"))
	e1.Release()

	e2, c2 := attach()
	defer e2.Release()
	run(t, e2, "debugger;")
	assert.False(t, e2.probeFailed)
	assert.Equal(t, 1, c2.count("Debugger.paused"))

	// code instrumented for the released engine still runs, without pausing
	c2.session.SchedulePauseOnNextStatement("pending", "")
	tick, ok := goja.AssertFunction(rt.Get("tick"))
	require.True(t, ok)
	v, err := tick(goja.Undefined())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ToInteger())
	assert.Equal(t, 1, c2.count("Debugger.paused"))
	assert.Equal(t, 1, c1.count("Debugger.paused"))
	c2.session.CancelPauseOnNextStatement()
}

func TestSession_frontendReloadReplays(t *testing.T) {
	e, c := newSession(t)
	c.send("Runtime.enable", "")
	c.send("Debugger.enable", "")
	run(t, e, "var a = 1;")
	assert.Equal(t, 1, c.count("Debugger.scriptParsed"))

	c.send("Debugger.enable", "")
	assert.Equal(t, 1, c.count("Debugger.scriptParsed"))

	c.session.OnFrontendReload()
	assert.False(t, gjson.Get(c.session.GetStateJSON(), "debuggerEnabled").Bool())
	c.send("Runtime.enable", "")
	c.send("Debugger.enable", "")
	assert.Equal(t, 2, c.count("Runtime.executionContextCreated"))
	assert.Equal(t, 2, c.count("Debugger.scriptParsed"))

	// a reload while paused reports the pause again
	c.onPause = append(c.onPause, func(paused gjson.Result) {
		c.session.OnFrontendReload()
		c.send("Debugger.enable", "")
		assert.Equal(t, 2, c.count("Debugger.paused"))
		assert.Equal(t, paused.Raw, c.last("Debugger.paused").Get("params").Raw)
		c.send("Debugger.resume", "")
	})
	run(t, e, "debugger;")
	assert.Equal(t, 2, c.count("Debugger.paused"))
	assert.Equal(t, 1, c.count("Debugger.resumed"))
}

func TestSession_unlistedScripts(t *testing.T) {
	e, c := newSession(t)
	c.send("Debugger.enable", "")
	c.send("Debugger.setBreakpointByUrl", `{"url":"hidden.js","lineNumber":0}`)

	for i := 0; i < 3; i++ {
		var code, result jsenv.Value
		code.SetString("debugger;\n'quiet'")
		require.True(t, e.ExecuteScript(&code, &result, "hidden.js", 1, jsenv.FlagUnlisted))
		s, _ := result.Text()
		assert.Equal(t, "quiet", s)
		result.Reset()
	}
	assert.Empty(t, e.scripts)
	assert.Equal(t, 0, c.count("Debugger.scriptParsed"))
	assert.Equal(t, 0, c.count("Debugger.paused"))

	run(t, e, "1")
	require.Len(t, e.scripts, 1)
	assert.Equal(t, "1", e.scripts[0].id)
}
