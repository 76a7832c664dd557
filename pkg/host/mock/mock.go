// Package mock provides in-memory mock implementations of [host.Session],
// [host.API], and [host.Platform] for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call order and arguments, and they expose
// exported fields the test can set to control return values.
//
// Typical usage:
//
//	sess := mock.NewSession()
//	sess.QueueDigits("2")
//	// ... run the code under test ...
//	if got := sess.Played(); len(got) != 1 {
//	    t.Fatalf("played %v", got)
//	}
package mock

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/voxflow/voxflow/pkg/host"
)

// ─── Session ─────────────────────────────────────────────────────────────────

// Session is a scriptable mock implementation of [host.Session].
//
// Digit collection pops from the queue filled by [Session.QueueDigits]; an
// empty queue yields empty digits (a caller timeout). Every media and
// variable operation is recorded.
type Session struct {
	mu sync.Mutex

	// UUIDValue, CallerIDValue, CallerNameValue and DomainValue are returned
	// by the respective header accessors.
	UUIDValue       string
	CallerIDValue   string
	CallerNameValue string
	DomainValue     string

	// Globals backs [Session.Global]. Defaults to script/sounds dirs under
	// /tmp when left nil.
	Globals map[string]string

	// AnswerError, HangupError, ExecuteError, StreamError, SpeakError and
	// RecordError are returned by the corresponding methods when set.
	AnswerError  error
	HangupError  error
	ExecuteError error
	StreamError  error
	SpeakError   error
	RecordError  error

	answered bool
	hungUp   bool

	vars   map[string]string
	digits []string

	played     []string
	executed   []AppCall
	spoken     []string
	slept      []time.Duration
	recorded   []string
	ttsEngine  string
	ttsVoice   string
	hangupCnt  int
	answerCnt  int
	silenceCnt int
}

// AppCall records one Execute invocation.
type AppCall struct {
	App  string
	Args string
}

// NewSession returns a Session with sane defaults: not yet answered, ready,
// empty variable table.
func NewSession() *Session {
	return &Session{
		UUIDValue: "mock-uuid",
		vars:      make(map[string]string),
		Globals: map[string]string{
			"script_dir": "/tmp/scripts",
			"sounds_dir": "/tmp/sounds",
		},
	}
}

// QueueDigits appends a scripted DTMF response. Each digit-collection call
// consumes one entry.
func (s *Session) QueueDigits(d ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digits = append(s.digits, d...)
}

// SetVar seeds a channel variable before the test runs.
func (s *Session) SetVar(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
}

func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.hungUp
}

func (s *Session) Answered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answered && !s.hungUp
}

func (s *Session) Answer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answerCnt++
	if s.AnswerError != nil {
		return s.AnswerError
	}
	s.answered = true
	return nil
}

// Hangup marks the session as hung up. A second call is a no-op, matching
// the switch contract.
func (s *Session) Hangup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hungUp {
		return nil
	}
	if s.HangupError != nil {
		return s.HangupError
	}
	s.hungUp = true
	s.hangupCnt++
	return nil
}

func (s *Session) GetVariable(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[name]
	return v, ok
}

func (s *Session) SetVariable(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hungUp {
		return nil
	}
	s.vars[name] = value
	return nil
}

func (s *Session) UnsetVariable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vars, name)
	return nil
}

func (s *Session) Execute(app, args string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hungUp {
		return nil
	}
	s.executed = append(s.executed, AppCall{App: app, Args: args})
	return s.ExecuteError
}

func (s *Session) StreamFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hungUp {
		return nil
	}
	s.played = append(s.played, path)
	return s.StreamError
}

func (s *Session) GetDigits(max int, terminators string, timeout time.Duration) (string, error) {
	return s.popDigits(), nil
}

func (s *Session) PlayAndGetDigits(min, max, tries int, timeout time.Duration, terminators, audio, invalidAudio string) (string, error) {
	s.mu.Lock()
	if !s.hungUp {
		s.played = append(s.played, audio)
	}
	s.mu.Unlock()
	return s.popDigits(), nil
}

func (s *Session) popDigits() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hungUp || len(s.digits) == 0 {
		return ""
	}
	d := s.digits[0]
	s.digits = s.digits[1:]
	return d
}

func (s *Session) RecordFile(path string, maxSeconds, silenceThreshold, silenceSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hungUp {
		return nil
	}
	s.recorded = append(s.recorded, path)
	return s.RecordError
}

func (s *Session) Speak(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hungUp {
		return nil
	}
	s.spoken = append(s.spoken, text)
	return s.SpeakError
}

func (s *Session) SetTTSParams(engine, voice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttsEngine, s.ttsVoice = engine, voice
	return nil
}

func (s *Session) Sleep(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	return nil
}

func (s *Session) WaitForSilence(silenceThreshold, hits int, listen time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silenceCnt++
	return nil
}

func (s *Session) UUID() string       { return s.UUIDValue }
func (s *Session) CallerID() string   { return s.CallerIDValue }
func (s *Session) CallerName() string { return s.CallerNameValue }
func (s *Session) Domain() string     { return s.DomainValue }

func (s *Session) Global(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Globals[name]
}

// ─── Inspection helpers ──────────────────────────────────────────────────────

// Played returns the audio paths streamed so far, in order.
func (s *Session) Played() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.played...)
}

// Executed returns the dialplan applications run so far, in order.
func (s *Session) Executed() []AppCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AppCall(nil), s.executed...)
}

// Spoken returns the TTS texts spoken so far, in order.
func (s *Session) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

// Slept returns the sleep durations requested so far, in order.
func (s *Session) Slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

// Recorded returns the recording paths requested so far, in order.
func (s *Session) Recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.recorded...)
}

// TTSParams returns the last engine/voice pair set via SetTTSParams.
func (s *Session) TTSParams() (engine, voice string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttsEngine, s.ttsVoice
}

// HangupCount reports how many effective hangups occurred (no-op repeats
// are not counted).
func (s *Session) HangupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hangupCnt
}

// Var reads a channel variable without going through the contract method.
func (s *Session) Var(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vars[name]
}

// ─── API ─────────────────────────────────────────────────────────────────────

// API is a mock implementation of [host.API]. Replies maps a full command
// string to its response; unmatched commands return ReplyDefault.
type API struct {
	mu sync.Mutex

	// Replies maps command → reply.
	Replies map[string]string

	// ReplyDefault is returned for commands not present in Replies.
	ReplyDefault string

	// Error is returned by every ExecuteString call when set.
	Error error

	commands []string
}

func (a *API) ExecuteString(cmd string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands = append(a.commands, cmd)
	if a.Error != nil {
		return "", a.Error
	}
	if r, ok := a.Replies[cmd]; ok {
		return r, nil
	}
	return a.ReplyDefault, nil
}

// Commands returns every command executed so far, in order.
func (a *API) Commands() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.commands...)
}

// ─── Platform ────────────────────────────────────────────────────────────────

// Platform is a mock implementation of [host.Platform]. Feed calls into the
// Incoming channel; Calls hands the same channel to the engine.
type Platform struct {
	// Incoming is the call delivery channel. Defaults to an unbuffered
	// channel created by NewPlatform.
	Incoming chan host.Call

	// APIValue is returned by [Platform.API].
	APIValue *API

	// CallsError is returned by Calls when set.
	CallsError error

	closeOnce sync.Once
}

// NewPlatform returns a Platform with a buffered Incoming channel and an
// empty API mock.
func NewPlatform(buffer int) *Platform {
	return &Platform{
		Incoming: make(chan host.Call, buffer),
		APIValue: &API{},
	}
}

func (p *Platform) Name() string { return "mock" }

func (p *Platform) Calls(ctx context.Context) (<-chan host.Call, error) {
	if p.CallsError != nil {
		return nil, p.CallsError
	}
	return p.Incoming, nil
}

func (p *Platform) API() host.API { return p.APIValue }

func (p *Platform) Close() error {
	p.closeOnce.Do(func() { close(p.Incoming) })
	return nil
}

// NumberedSession returns a Session whose UUID carries a sequence number,
// convenient when a test feeds several calls through a Platform.
func NumberedSession(n int) *Session {
	s := NewSession()
	s.UUIDValue = "mock-uuid-" + strconv.Itoa(n)
	return s
}
