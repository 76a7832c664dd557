// Package eventsock implements [host.Platform] for softswitches running in
// outbound event-socket mode.
//
// The switch dials the engine once per inbound call and keeps the connection
// open for the call's lifetime. Frames are JSON text messages over
// WebSocket: the engine sends commands ({"id":1,"type":"execute",...}) and
// the switch answers with a reply carrying the same id. The switch may also
// push unsolicited events, currently only the channel-hangup notification.
//
// A second, persistent connection on /control carries out-of-band API
// commands (sofia_contact, callcenter_config) that are not bound to a call.
package eventsock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/voxflow/voxflow/pkg/host"
)

// Option is a functional option for configuring the Platform.
type Option func(*Platform)

// WithLogger sets the logger used for connection lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(p *Platform) {
		if l != nil {
			p.log = l
		}
	}
}

// WithCallBuffer sets the capacity of the call delivery channel. The default
// is 16; calls arriving while the channel is full are rejected so the switch
// can fail over.
func WithCallBuffer(n int) Option {
	return func(p *Platform) {
		if n > 0 {
			p.buffer = n
		}
	}
}

// Platform accepts per-call WebSocket connections from the switch and hands
// each one to the engine as a [host.Call].
type Platform struct {
	addr   string
	log    *slog.Logger
	buffer int

	mu      sync.Mutex
	calls   chan host.Call
	control *conn
	server  *http.Server
	started bool
	closed  bool
}

// New creates a Platform that will listen on addr (host:port).
func New(addr string, opts ...Option) *Platform {
	p := &Platform{
		addr:   addr,
		log:    slog.With("component", "eventsock"),
		buffer: 16,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name identifies the adapter.
func (p *Platform) Name() string { return "eventsock" }

// Calls starts the listener and returns the call delivery channel. The
// channel is closed when ctx is cancelled or Close is called.
func (p *Platform) Calls(ctx context.Context) (<-chan host.Call, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("eventsock: platform closed")
	}
	if p.started {
		return p.calls, nil
	}

	ln, err := net.Listen("tcp", p.addr)
	if err != nil {
		return nil, fmt.Errorf("eventsock: listen %s: %w", p.addr, err)
	}

	p.calls = make(chan host.Call, p.buffer)
	mux := http.NewServeMux()
	mux.HandleFunc("/call", p.handleCall)
	mux.HandleFunc("/control", p.handleControl)
	p.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	p.started = true

	go func() {
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Error("serve failed", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = p.Close()
	}()

	p.log.Info("listening for switch connections", "addr", ln.Addr().String())
	return p.calls, nil
}

// API returns the out-of-band command interface. Commands fail until the
// switch has established its /control connection.
func (p *Platform) API() host.API { return apiHandle{p: p} }

// Close shuts the listener down and closes the call channel. Safe to call
// more than once.
func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.server != nil {
		_ = p.server.Close()
	}
	if p.control != nil {
		p.control.close()
	}
	if p.calls != nil {
		close(p.calls)
	}
	return nil
}

func (p *Platform) handleCall(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		p.log.Warn("call accept failed", "err", err)
		return
	}

	c := newConn(ws, p.log)
	hello, err := c.awaitConnect(r.Context())
	if err != nil {
		p.log.Warn("call handshake failed", "err", err)
		c.close()
		return
	}

	sess := newSession(c, hello)
	call := host.Call{Session: sess, IsCallback: hello.Callback}

	p.mu.Lock()
	calls, closed := p.calls, p.closed
	p.mu.Unlock()
	if closed {
		c.close()
		return
	}

	select {
	case calls <- call:
		p.log.Info("call accepted", "uuid", sess.UUID(), "callback", hello.Callback)
	default:
		p.log.Warn("call channel full; rejecting call", "uuid", hello.UUID)
		c.close()
		return
	}

	// Hold the handler until the connection dies so net/http does not tear
	// the hijacked socket down under the session.
	c.wait()
}

func (p *Platform) handleControl(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		p.log.Warn("control accept failed", "err", err)
		return
	}
	c := newConn(ws, p.log)

	p.mu.Lock()
	if p.control != nil {
		p.control.close()
	}
	p.control = c
	p.mu.Unlock()

	p.log.Info("control connection established", "remote", r.RemoteAddr)
	c.wait()
}

// apiHandle routes ExecuteString over the current control connection.
type apiHandle struct {
	p *Platform
}

func (a apiHandle) ExecuteString(cmd string) (string, error) {
	a.p.mu.Lock()
	c := a.p.control
	a.p.mu.Unlock()
	if c == nil || !c.alive() {
		return "", errors.New("eventsock: no control connection")
	}
	rep, err := c.request(frame{Type: "api", Cmd: cmd}, defaultTimeout)
	if err != nil {
		return "", err
	}
	return rep.Value, nil
}
