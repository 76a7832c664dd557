// Package host defines the contract between the call-flow engine and the
// softswitch that owns the actual telephony channel.
//
// The two primary abstractions are:
//
//   - [Platform] — accepts inbound calls from the switch and hands each one
//     to the engine as a [Call].
//   - [Session] — the per-call channel handle: media playback, DTMF
//     collection, variables, transfer primitives, and lifecycle.
//
// Implementations are provided by switch-specific adapter packages (e.g.
// host/eventsock for the outbound event-socket protocol) and by host/mock
// for tests. The interfaces are intentionally narrow so that the interpreter
// remains switch-agnostic.
//
// This package lives under pkg/ because external code (alternative switch
// adapters) is expected to implement [Platform] and [Session].
package host

import (
	"context"
	"time"
)

// Session represents one active call leg on the switch.
//
// All blocking methods (playback, digit collection, recording, sleep) hold
// the calling goroutine until the switch completes or fails the primitive;
// this is the engine's suspension point model. After the remote party hangs
// up, Ready reports false and every method becomes a no-op returning nil or
// zero values, so a flow in progress unwinds without special casing.
//
// Implementations must be safe for concurrent use, although the engine
// drives a session from a single goroutine.
type Session interface {
	// Ready reports whether the channel is still up.
	Ready() bool

	// Answered reports whether the call has been answered.
	Answered() bool

	// Answer answers the call. Answering an already answered call is a no-op.
	Answer() error

	// Hangup terminates the call. Hanging up twice is a no-op.
	Hangup() error

	// GetVariable reads a channel variable. The second return reports
	// whether the variable is set.
	GetVariable(name string) (string, bool)

	// SetVariable writes a channel variable.
	SetVariable(name, value string) error

	// UnsetVariable removes a channel variable.
	UnsetVariable(name string) error

	// Execute runs a dialplan application (bridge, callcenter, att_xfer, …).
	Execute(app, args string) error

	// StreamFile plays an audio file from an absolute path.
	StreamFile(path string) error

	// GetDigits collects up to max DTMF digits, stopping early on a
	// terminator digit or when timeout elapses between digits. Returns the
	// digits collected so far (possibly empty).
	GetDigits(max int, terminators string, timeout time.Duration) (string, error)

	// PlayAndGetDigits plays audio and collects digits in one primitive.
	// invalidAudio, when non-empty, is replayed by the switch on each
	// failed attempt up to tries.
	PlayAndGetDigits(min, max, tries int, timeout time.Duration, terminators, audio, invalidAudio string) (string, error)

	// RecordFile records caller audio to path. Recording stops at
	// maxSeconds, or after silenceSeconds below silenceThreshold.
	RecordFile(path string, maxSeconds, silenceThreshold, silenceSeconds int) error

	// Speak synthesizes text with the session's current TTS parameters.
	Speak(text string) error

	// SetTTSParams selects the TTS engine and voice for subsequent Speak calls.
	SetTTSParams(engine, voice string) error

	// Sleep pauses the call for the given duration.
	Sleep(d time.Duration) error

	// WaitForSilence blocks until the caller has been silent, tuned by the
	// switch's wait_for_silence semantics (threshold, hit count, timeout).
	WaitForSilence(silenceThreshold, hits int, listen time.Duration) error

	// UUID returns the switch's unique identifier for this call.
	UUID() string

	// CallerID returns the caller's number, or "" when unknown.
	CallerID() string

	// CallerName returns the caller's display name, or "" when unknown.
	CallerName() string

	// Domain returns the SIP domain the call arrived on, or "" when unknown.
	Domain() string

	// Global reads a switch global variable (script_dir, sounds_dir).
	Global(name string) string
}

// API executes out-of-band switch commands that are not bound to a call,
// such as "sofia_contact 1001@pbx.example" or "callcenter_config agent set
// status ...". The returned string is the switch's raw reply.
type API interface {
	ExecuteString(cmd string) (string, error)
}

// Call is one inbound call delivered by a [Platform].
type Call struct {
	// Session is the live channel handle.
	Session Session

	// IsCallback is true when this entry is a call-center re-entry: the
	// caller was queued earlier and the switch is handing the leg back
	// (agent bridged, queue timeout, or abandon).
	IsCallback bool
}

// Platform accepts inbound calls from a softswitch.
//
// A Platform is obtained from a switch-specific constructor and remains
// valid until Close is called or the context passed to Calls is cancelled.
type Platform interface {
	// Name identifies the adapter ("eventsock", "mock").
	Name() string

	// Calls starts accepting inbound calls and returns the delivery channel.
	// The channel is closed when ctx is cancelled or the platform shuts down.
	Calls(ctx context.Context) (<-chan Call, error)

	// API returns the out-of-band command interface for this switch.
	API() API

	// Close releases the adapter's resources. Safe to call more than once.
	Close() error
}
