// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jsenv

// SessionState is the lifecycle state of an [InspectorSession].
type SessionState int32

const (
	// SessionCreated sessions exist but have not yet received traffic.
	SessionCreated SessionState = iota
	// SessionActive sessions exchange messages in both directions.
	SessionActive
	// SessionClosed sessions permit no further dispatch.
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// InspectorSession is a debugger protocol endpoint owned by an engine
// instance. It must only be used from the engine goroutine.
type InspectorSession interface {
	// DispatchProtocolMessage delivers one inbound protocol frame. It may be
	// called reentrantly from within [InspectorClient.RunMessageLoopOnPause].
	// The first dispatch moves the session from created to active.
	DispatchProtocolMessage(message string)

	// OnFrontendReload informs the session that the remote debugger reset.
	// Script identifiers remain valid; session-local state is revalidated.
	OnFrontendReload()

	CanDispatchMethod(method string) bool

	// GetStateJSON serializes session state. The format is engine-internal
	// and should be treated as an opaque blob.
	GetStateJSON() string

	// The execution-control methods below take effect immediately and never
	// block.

	SchedulePauseOnNextStatement(reason, details string)
	CancelPauseOnNextStatement()
	BreakProgram(reason, details string)
	SetSkipAllPauses(skip bool)
	Resume()
	StepOver()

	State() SessionState

	// Close moves the session to closed. It is idempotent.
	Close()
}

// InspectorClient is implemented by the host of a session, to receive
// outbound protocol traffic and pause control.
//
// Implementations should embed [UnimplementedInspectorClient], which
// provides no-op defaults for the optional hooks.
type InspectorClient interface {
	// SendResponse delivers an outbound frame. The call id is that of the
	// inbound command being answered, or 0 for unsolicited notifications.
	SendResponse(callID int, message string)
	SendNotification(message string)

	// RunMessageLoopOnPause blocks the engine goroutine while execution is
	// paused, dispatching inbound messages until [QuitMessageLoopOnPause].
	RunMessageLoopOnPause(contextGroupID int)
	QuitMessageLoopOnPause()
	RunIfWaitingForDebugger(contextGroupID int)

	MuteMetrics(contextGroupID int)
	UnmuteMetrics(contextGroupID int)
	BeginUserGesture()
	EndUserGesture()
	BeginEnsureAllContextsInGroup(contextGroupID int)
	EndEnsureAllContextsInGroup(contextGroupID int)

	mustEmbedUnimplementedInspectorClient()
}

// UnimplementedInspectorClient must be embedded by [InspectorClient]
// implementations. Only the optional hooks have defaults.
type UnimplementedInspectorClient struct{}

func (UnimplementedInspectorClient) RunIfWaitingForDebugger(int)       {}
func (UnimplementedInspectorClient) MuteMetrics(int)                   {}
func (UnimplementedInspectorClient) UnmuteMetrics(int)                 {}
func (UnimplementedInspectorClient) BeginUserGesture()                 {}
func (UnimplementedInspectorClient) EndUserGesture()                   {}
func (UnimplementedInspectorClient) BeginEnsureAllContextsInGroup(int) {}
func (UnimplementedInspectorClient) EndEnsureAllContextsInGroup(int)   {}

func (UnimplementedInspectorClient) mustEmbedUnimplementedInspectorClient() {}
