// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package inspector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"unicode/utf16"

	"github.com/joeycumines/go-jsenv"
	"github.com/joeycumines/go-jsenv/internal/goid"
	"github.com/joeycumines/go-jsenv/logging"
)

const (
	// ContextGroupID is the context group of every session created by a
	// [Bridge].
	ContextGroupID = 1

	// SessionStateLabel is the initial state of every session created by a
	// [Bridge]. It is an empty state, so sessions start with no domains
	// enabled and no breakpoints.
	SessionStateLabel = "{}"

	// DiagnosticFileName names scripts run by
	// [Bridge.ExecuteDiagnosticScript]. They are run unlisted, see
	// [jsenv.FlagUnlisted].
	DiagnosticFileName = "<inspector>"

	logTag = "inspector"
)

// attachTable records engine goroutines, across all bridges.
var attachTable goid.Table

type (
	// Bridge connects one debuggable execution context to a [Peer]. It is
	// created by [New], and must be destroyed via [Bridge.Destroy].
	Bridge struct {
		peer    Peer
		opts    *bridgeOptions
		cond    *sync.Cond
		exec    Executor
		engine  jsenv.Engine
		session jsenv.InspectorSession
		queue   []item
		// engine goroutine, valid while attached
		goid      uint64
		handle    Handle
		sessionID atomic.Int64
		mu        sync.Mutex
		paused    int
		quit      bool
		draining  bool
		submitted bool
		attached  bool
		destroyed bool
	}

	// item is either an inbound message or a task.
	item struct {
		task      func()
		msg       string
		sessionID int
	}
)

// New creates a bridge delivering to peer, registering it in the handle
// table. The peer is released by [Bridge.Destroy].
func New(sessionID int, peer Peer, opts ...Option) (*Bridge, error) {
	cfg, err := resolveBridgeOptions(opts)
	if err != nil {
		return nil, err
	}
	b := &Bridge{
		peer: peer,
		opts: cfg,
	}
	b.cond = sync.NewCond(&b.mu)
	b.sessionID.Store(int64(sessionID))
	b.handle = register(b)
	return b, nil
}

// Handle returns the handle resolving to b, until it is destroyed.
func (b *Bridge) Handle() Handle { return b.handle }

// SessionID returns the session id most recently seen by
// [Bridge.HandleInboundMessage], or the one given to [New].
func (b *Bridge) SessionID() int { return int(b.sessionID.Load()) }

// AttachEngine loads an engine for handle and opens a session on it. The
// calling goroutine becomes the engine goroutine, and exec must run work on
// that same goroutine. The recreated flag is passed through to the engine,
// and should be set when attaching again after [Bridge.DetachEngine].
func (b *Bridge) AttachEngine(handle jsenv.Handle, exec Executor, recreated bool) error {
	if exec == nil {
		return ErrNilExecutor
	}
	b.mu.Lock()
	err := b.attachableLocked()
	b.mu.Unlock()
	if err != nil {
		return err
	}

	engine, err := jsenv.Load(handle, b.opts.version, b.opts.loader...)
	if err != nil {
		return fmt.Errorf("inspector: attach: %w", err)
	}
	session := engine.CreateInspectorSession(&client{b: b}, ContextGroupID, SessionStateLabel, recreated)
	if session == nil {
		jsenv.Release(engine)
		return ErrNoSession
	}

	b.mu.Lock()
	if err := b.attachableLocked(); err != nil {
		b.mu.Unlock()
		session.Close()
		jsenv.Release(engine)
		return err
	}
	b.goid, _ = attachTable.Attach()
	b.exec = exec
	b.engine = engine
	b.session = session
	b.attached = true
	b.mu.Unlock()

	logging.L().Debug().
		Str("tag", logTag).
		Int("session", b.SessionID()).
		Bool("recreated", recreated).
		Log("engine attached")
	return nil
}

func (b *Bridge) attachableLocked() error {
	if b.destroyed {
		return ErrDestroyed
	}
	if b.attached {
		return ErrAttached
	}
	return nil
}

// DetachEngine closes the session, then releases the engine. If the engine
// is paused, the paused script is interrupted. It is a no-op if nothing is
// attached.
func (b *Bridge) DetachEngine() {
	_ = b.do(context.Background(), b.detach)
}

func (b *Bridge) detach() {
	b.mu.Lock()
	if !b.attached {
		b.mu.Unlock()
		return
	}
	session, engine, id := b.session, b.engine, b.goid
	b.session = nil
	b.engine = nil
	b.attached = false
	b.mu.Unlock()

	session.Close()
	jsenv.Release(engine)
	attachTable.Detach(id)

	logging.L().Debug().
		Str("tag", logTag).
		Int("session", b.SessionID()).
		Log("engine detached")
}

// Destroy detaches any engine, releases the peer, and invalidates the
// handle. Subsequent calls are no-ops.
func (b *Bridge) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	b.mu.Unlock()

	unregister(b.handle)
	b.DetachEngine()
	if b.peer != nil {
		b.peer.Release()
	}
}

// HandleInboundMessage queues a protocol message for dispatch to the
// session. Messages are dispatched in the order they were received, and
// outbound traffic is addressed to the sessionID of the message last
// dispatched. With no engine attached, the message is dropped.
func (b *Bridge) HandleInboundMessage(sessionID int, message string) {
	b.mu.Lock()
	if !b.attached {
		b.mu.Unlock()
		b.sessionID.Store(int64(sessionID))
		b.warn("message dropped, no engine attached")
		return
	}
	b.queue = append(b.queue, item{msg: message, sessionID: sessionID})
	b.scheduleLocked()
}

// HandleInboundMessageUTF16 is [Bridge.HandleInboundMessage] for UTF-16
// frames.
func (b *Bridge) HandleInboundMessageUTF16(sessionID int, message []uint16) {
	b.HandleInboundMessage(sessionID, string(utf16.Decode(message)))
}

// OnFrontendReload informs the session that the debugger frontend reset.
func (b *Bridge) OnFrontendReload() {
	_ = b.do(context.Background(), func() {
		if session := b.currentSession(); session != nil {
			session.OnFrontendReload()
		}
	})
}

// SessionState returns the serialized state of the current session, or an
// empty string if none is attached.
func (b *Bridge) SessionState() (state string) {
	_ = b.do(context.Background(), func() {
		if session := b.currentSession(); session != nil {
			state = session.GetStateJSON()
		}
	})
	return state
}

// ExecuteDiagnosticScript evaluates code on the engine, returning its result
// if it is a string. Failures, including non-string results, are logged.
// It may be called from any goroutine, including while paused.
func (b *Bridge) ExecuteDiagnosticScript(ctx context.Context, code string) (string, bool) {
	var (
		result string
		ok     bool
	)
	if err := b.do(ctx, func() { result, ok = b.executeDiagnostic(code) }); err != nil {
		logging.L().Warning().
			Str("tag", logTag).
			Err(err).
			Log("diagnostic script abandoned")
		return "", false
	}
	return result, ok
}

func (b *Bridge) executeDiagnostic(src string) (string, bool) {
	b.mu.Lock()
	engine := b.engine
	b.mu.Unlock()
	if engine == nil {
		b.warn("diagnostic script skipped, no engine attached")
		return "", false
	}

	var code, result jsenv.Value
	defer result.Reset()
	code.SetUTF8([]byte(src), len(src), false)
	if !engine.ExecuteScript(&code, &result, DiagnosticFileName, 1, jsenv.FlagUseUTF8|jsenv.FlagUnlisted) {
		if engine.HasException() {
			logging.Errorf(logTag, "JS Exception: %s", engine.GetException().Message)
			engine.ClearException()
		}
		return "", false
	}
	if !result.IsString() {
		logging.L().Err().
			Str("tag", logTag).
			Str("kind", result.Kind().String()).
			Log("diagnostic script must return a string")
		return "", false
	}
	s, _ := result.Text()
	return s, true
}

// Engine returns the attached engine, or nil. It must only be used on the
// engine goroutine, and must not be released by the caller.
func (b *Bridge) Engine() jsenv.Engine {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine
}

func (b *Bridge) currentSession() jsenv.InspectorSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

func (b *Bridge) send(callID int, message string) {
	if b.peer != nil {
		b.peer.SendMessage(b.SessionID(), callID, message)
	}
}

func (b *Bridge) warn(msg string) {
	if _, ok := b.opts.warn.Allow(msg); !ok {
		return
	}
	logging.L().Warning().
		Str("tag", logTag).
		Int("session", b.SessionID()).
		Log(msg)
}

func (b *Bridge) onEngineLocked() bool {
	return b.attached && goid.Get() == b.goid
}

// do runs fn on the engine goroutine, waiting until it has run or ctx is
// done. Without an engine attached, fn runs on the caller.
func (b *Bridge) do(ctx context.Context, fn func()) error {
	b.mu.Lock()
	if !b.attached || b.onEngineLocked() {
		b.mu.Unlock()
		fn()
		return nil
	}
	done := make(chan struct{})
	b.queue = append(b.queue, item{task: func() {
		defer close(done)
		fn()
	}})
	b.scheduleLocked()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// scheduleLocked arranges for the queue to be drained, unlocking b.mu.
func (b *Bridge) scheduleLocked() {
	switch {
	case b.paused > 0:
		b.cond.Broadcast()
	case b.onEngineLocked():
		// a drain further up the stack picks it up
		if !b.draining {
			b.drainLocked()
		}
	case !b.submitted:
		b.submitLocked()
		return
	}
	b.mu.Unlock()
}

// submitLocked submits a drain to the executor, unlocking b.mu.
func (b *Bridge) submitLocked() {
	b.submitted = true
	exec := b.exec
	b.mu.Unlock()
	if err := exec.Submit(b.drain); err != nil {
		// nothing else will run the engine
		logging.L().Warning().
			Str("tag", logTag).
			Err(err).
			Log("executor rejected drain, draining on caller")
		b.drain()
	}
}

func (b *Bridge) drain() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = false
	if b.paused == 0 && !b.draining {
		b.drainLocked()
	}
}

func (b *Bridge) drainLocked() {
	b.draining = true
	for len(b.queue) != 0 {
		b.runLocked(b.pop())
	}
	b.draining = false
}

func (b *Bridge) pop() item {
	it := b.queue[0]
	b.queue[0] = item{}
	b.queue = b.queue[1:]
	return it
}

// runLocked runs it with b.mu released.
func (b *Bridge) runLocked(it item) {
	session := b.session
	b.mu.Unlock()
	defer b.mu.Lock()
	switch {
	case it.task != nil:
		it.task()
	case session != nil:
		b.sessionID.Store(int64(it.sessionID))
		session.DispatchProtocolMessage(it.msg)
	}
}

// runMessageLoopOnPause services the queue, on the engine goroutine, until
// quitMessageLoopOnPause is called.
func (b *Bridge) runMessageLoopOnPause() {
	b.mu.Lock()
	b.paused++
	for !b.quit {
		if len(b.queue) == 0 {
			b.cond.Wait()
			continue
		}
		b.runLocked(b.pop())
	}
	b.quit = false
	b.paused--
	if b.paused == 0 && len(b.queue) != 0 && !b.draining && !b.submitted && b.exec != nil {
		b.submitLocked()
		return
	}
	b.mu.Unlock()
}

func (b *Bridge) quitMessageLoopOnPause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paused > 0 {
		b.quit = true
		b.cond.Broadcast()
	}
}

func (b *Bridge) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Sprintf("inspector.Bridge(handle=%d, session=%d, attached=%t, queued=%d)", b.handle, b.sessionID.Load(), b.attached, len(b.queue))
}
