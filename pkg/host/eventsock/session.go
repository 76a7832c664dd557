package eventsock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// session implements [host.Session] over one per-call event-socket
// connection. Channel variables known at connect time are served locally;
// reads of other variables round-trip to the switch.
type session struct {
	c *conn

	uuid       string
	callerID   string
	callerName string
	domain     string

	globals map[string]string

	answered atomic.Bool
	hungUp   atomic.Bool

	mu       sync.Mutex
	snapshot map[string]string
}

func newSession(c *conn, hello *connectFrame) *session {
	id := hello.UUID
	if id == "" {
		// Some switch builds omit the UUID on forwarded legs.
		id = uuid.NewString()
	}
	s := &session{
		c:          c,
		uuid:       id,
		callerID:   hello.CallerID,
		callerName: hello.CallerName,
		domain:     hello.Domain,
		globals:    hello.Globals,
		snapshot:   hello.Variables,
	}
	s.answered.Store(hello.Answered)
	c.setOnHangup(func() { s.hungUp.Store(true) })
	return s
}

func (s *session) Ready() bool {
	return !s.hungUp.Load() && s.c.alive()
}

func (s *session) Answered() bool {
	return s.answered.Load() && s.Ready()
}

func (s *session) Answer() error {
	if !s.Ready() || s.answered.Load() {
		return nil
	}
	if _, err := s.c.request(frame{Type: "answer"}, defaultTimeout); err != nil {
		return err
	}
	s.answered.Store(true)
	return nil
}

func (s *session) Hangup() error {
	if s.hungUp.Swap(true) {
		return nil
	}
	_, err := s.c.request(frame{Type: "hangup"}, defaultTimeout)
	s.c.close()
	return err
}

func (s *session) GetVariable(name string) (string, bool) {
	if !s.Ready() {
		s.mu.Lock()
		defer s.mu.Unlock()
		v, ok := s.snapshot[name]
		return v, ok
	}
	rep, err := s.c.request(frame{Type: "getvar", Name: name}, defaultTimeout)
	if err != nil {
		return "", false
	}
	return rep.Value, rep.Present
}

func (s *session) SetVariable(name, value string) error {
	s.mu.Lock()
	if s.snapshot == nil {
		s.snapshot = make(map[string]string)
	}
	s.snapshot[name] = value
	s.mu.Unlock()
	if !s.Ready() {
		return nil
	}
	_, err := s.c.request(frame{Type: "setvar", Name: name, Value: value}, defaultTimeout)
	return err
}

func (s *session) UnsetVariable(name string) error {
	s.mu.Lock()
	delete(s.snapshot, name)
	s.mu.Unlock()
	if !s.Ready() {
		return nil
	}
	_, err := s.c.request(frame{Type: "unsetvar", Name: name}, defaultTimeout)
	return err
}

func (s *session) Execute(app, args string) error {
	if !s.Ready() {
		return nil
	}
	_, err := s.c.request(frame{Type: "execute", App: app, Args: args}, defaultTimeout)
	return err
}

func (s *session) StreamFile(path string) error {
	if !s.Ready() {
		return nil
	}
	_, err := s.c.request(frame{Type: "stream", Path: path}, defaultTimeout)
	return err
}

func (s *session) GetDigits(max int, terminators string, timeout time.Duration) (string, error) {
	if !s.Ready() {
		return "", nil
	}
	rep, err := s.c.request(frame{
		Type:    "getdigits",
		Max:     max,
		Term:    terminators,
		Timeout: int(timeout.Milliseconds()),
	}, timeout+defaultTimeout)
	if err != nil {
		return "", err
	}
	return rep.Value, nil
}

func (s *session) PlayAndGetDigits(min, max, tries int, timeout time.Duration, terminators, audio, invalidAudio string) (string, error) {
	if !s.Ready() {
		return "", nil
	}
	total := time.Duration(maxInt(tries, 1)) * (timeout + defaultTimeout)
	rep, err := s.c.request(frame{
		Type:    "playgather",
		Min:     min,
		Max:     max,
		Tries:   tries,
		Timeout: int(timeout.Milliseconds()),
		Term:    terminators,
		Audio:   audio,
		BadFile: invalidAudio,
	}, total)
	if err != nil {
		return "", err
	}
	return rep.Value, nil
}

func (s *session) RecordFile(path string, maxSeconds, silenceThreshold, silenceSeconds int) error {
	if !s.Ready() {
		return nil
	}
	_, err := s.c.request(frame{
		Type:    "record",
		Path:    path,
		MaxSec:  maxSeconds,
		Thresh:  silenceThreshold,
		Silence: silenceSeconds,
	}, time.Duration(maxSeconds)*time.Second+defaultTimeout)
	return err
}

func (s *session) Speak(text string) error {
	if !s.Ready() {
		return nil
	}
	_, err := s.c.request(frame{Type: "speak", Text: text}, defaultTimeout)
	return err
}

func (s *session) SetTTSParams(engine, voice string) error {
	if !s.Ready() {
		return nil
	}
	_, err := s.c.request(frame{Type: "tts_params", Engine: engine, Voice: voice}, defaultTimeout)
	return err
}

func (s *session) Sleep(d time.Duration) error {
	if !s.Ready() {
		return nil
	}
	_, err := s.c.request(frame{Type: "sleep", Timeout: int(d.Milliseconds())}, d+defaultTimeout)
	return err
}

func (s *session) WaitForSilence(silenceThreshold, hits int, listen time.Duration) error {
	if !s.Ready() {
		return nil
	}
	_, err := s.c.request(frame{
		Type:    "wait_silence",
		Thresh:  silenceThreshold,
		Hits:    hits,
		Timeout: int(listen.Milliseconds()),
	}, listen+defaultTimeout)
	return err
}

func (s *session) UUID() string       { return s.uuid }
func (s *session) CallerID() string   { return s.callerID }
func (s *session) CallerName() string { return s.callerName }
func (s *session) Domain() string     { return s.domain }

func (s *session) Global(name string) string {
	return s.globals[name]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
