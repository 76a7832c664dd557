package eventsock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// defaultTimeout bounds a single command round trip when the command itself
// carries no longer deadline (digit collection, recording).
const defaultTimeout = 30 * time.Second

// frame is the JSON wire format in both directions. The engine fills Type
// and the command fields; the switch echoes ID on replies.
type frame struct {
	ID   int    `json:"id,omitempty"`
	Type string `json:"type,omitempty"`

	// Command fields.
	App     string `json:"app,omitempty"`
	Args    string `json:"args,omitempty"`
	Name    string `json:"name,omitempty"`
	Value   string `json:"value,omitempty"`
	Path    string `json:"path,omitempty"`
	Text    string `json:"text,omitempty"`
	Cmd     string `json:"cmd,omitempty"`
	Min     int    `json:"min,omitempty"`
	Max     int    `json:"max,omitempty"`
	Tries   int    `json:"tries,omitempty"`
	Timeout int    `json:"timeout_ms,omitempty"`
	Term    string `json:"terminators,omitempty"`
	Audio   string `json:"audio,omitempty"`
	BadFile string `json:"invalid_audio,omitempty"`
	Engine  string `json:"engine,omitempty"`
	Voice   string `json:"voice,omitempty"`
	MaxSec  int    `json:"max_seconds,omitempty"`
	Thresh  int    `json:"silence_threshold,omitempty"`
	Silence int    `json:"silence_seconds,omitempty"`
	Hits    int    `json:"hits,omitempty"`

	// Reply fields.
	OK      bool   `json:"ok,omitempty"`
	Present bool   `json:"present,omitempty"`
	Error   string `json:"error,omitempty"`
}

// connectFrame is the first message the switch sends on a /call connection.
type connectFrame struct {
	Type       string            `json:"type"`
	UUID       string            `json:"uuid"`
	CallerID   string            `json:"caller_id"`
	CallerName string            `json:"caller_name"`
	Domain     string            `json:"domain"`
	Answered   bool              `json:"answered"`
	Callback   bool              `json:"callback"`
	Globals    map[string]string `json:"globals"`
	Variables  map[string]string `json:"variables"`
}

// conn wraps one WebSocket connection with request/reply correlation.
type conn struct {
	ws  *websocket.Conn
	log *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int
	pending map[int]chan frame
	hello   chan *connectFrame
	dead    bool
	done    chan struct{}

	// onHangup, when set, is invoked once when the switch pushes a hangup
	// event or the connection drops.
	onHangup func()
}

func newConn(ws *websocket.Conn, log *slog.Logger) *conn {
	c := &conn{
		ws:      ws,
		log:     log,
		pending: make(map[int]chan frame),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// awaitConnect reads the handshake frame the switch must send first.
func (c *conn) awaitConnect(ctx context.Context) (*connectFrame, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	select {
	case f := <-c.handshakeCh():
		return f, nil
	case <-c.done:
		return nil, errors.New("eventsock: connection closed during handshake")
	case <-ctx.Done():
		return nil, fmt.Errorf("eventsock: handshake: %w", ctx.Err())
	}
}

// handshakeCh returns the channel the read loop delivers the connect frame on.
func (c *conn) handshakeCh() chan *connectFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hello == nil {
		c.hello = make(chan *connectFrame, 1)
	}
	return c.hello
}

func (c *conn) readLoop() {
	defer c.close()
	for {
		_, data, err := c.ws.Read(context.Background())
		if err != nil {
			return
		}

		// Handshake frames carry type "connect" and no id.
		var probe struct {
			ID   int    `json:"id"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			c.log.Warn("dropping malformed frame", "err", err)
			continue
		}

		switch {
		case probe.Type == "connect":
			var hello connectFrame
			if err := json.Unmarshal(data, &hello); err != nil {
				c.log.Warn("dropping malformed connect frame", "err", err)
				continue
			}
			select {
			case c.handshakeCh() <- &hello:
			default:
			}
		case probe.Type == "hangup":
			c.fireHangup()
		default:
			var rep frame
			if err := json.Unmarshal(data, &rep); err != nil {
				c.log.Warn("dropping malformed reply", "err", err)
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[rep.ID]
			if ok {
				delete(c.pending, rep.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- rep
			}
		}
	}
}

// request sends a command frame and waits for its correlated reply.
func (c *conn) request(f frame, timeout time.Duration) (frame, error) {
	c.mu.Lock()
	if c.dead {
		c.mu.Unlock()
		return frame{}, errors.New("eventsock: connection closed")
	}
	c.nextID++
	f.ID = c.nextID
	ch := make(chan frame, 1)
	c.pending[f.ID] = ch
	c.mu.Unlock()

	data, err := json.Marshal(f)
	if err != nil {
		return frame{}, fmt.Errorf("eventsock: marshal frame: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	c.writeMu.Lock()
	err = c.ws.Write(ctx, websocket.MessageText, data)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
		return frame{}, fmt.Errorf("eventsock: write: %w", err)
	}

	select {
	case rep, ok := <-ch:
		if !ok {
			// close() tore down the pending table under us.
			return frame{}, errors.New("eventsock: connection closed")
		}
		if rep.Error != "" {
			return rep, errors.New("eventsock: switch error: " + rep.Error)
		}
		return rep, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
		return frame{}, fmt.Errorf("eventsock: command %q: %w", f.Type, ctx.Err())
	case <-c.done:
		return frame{}, errors.New("eventsock: connection closed")
	}
}

// setOnHangup registers the hangup callback. If the connection already died
// the callback fires immediately.
func (c *conn) setOnHangup(fn func()) {
	c.mu.Lock()
	dead := c.dead
	if !dead {
		c.onHangup = fn
	}
	c.mu.Unlock()
	if dead {
		fn()
	}
}

func (c *conn) alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.dead
}

func (c *conn) fireHangup() {
	c.mu.Lock()
	fn := c.onHangup
	c.onHangup = nil
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *conn) close() {
	c.mu.Lock()
	if c.dead {
		c.mu.Unlock()
		return
	}
	c.dead = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	close(c.done)
	c.mu.Unlock()
	c.fireHangup()
	_ = c.ws.Close(websocket.StatusNormalClosure, "done")
}

// wait blocks until the connection is closed.
func (c *conn) wait() {
	<-c.done
}
