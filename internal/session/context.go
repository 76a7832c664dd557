// Package session wraps a live switch session with the per-call state the
// interpreter needs: an immutable call header snapshot, a write-through
// variable cache, and the node visit counters that back the loop guard.
//
// A Context belongs to exactly one call and is driven from that call's
// goroutine; the mutex only protects against auxiliary readers (metrics,
// health dumps).
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxflow/voxflow/pkg/host"
)

// DefaultVisitBudget caps how often a single node may be visited during one
// call before the loop guard trips.
const DefaultVisitBudget = 10

// unknown is the placeholder stored for header fields the switch did not
// deliver.
const unknown = "unknown"

// Silence-probe tuning applied after answering, before the first prompt.
const (
	silenceThreshold = 500
	silenceHits      = 5
	silenceListen    = time.Second
)

var (
	// ErrNotReady is returned when an operation requires a live channel.
	ErrNotReady = errors.New("session: channel not ready")

	// ErrHungUp is returned when the remote party has already hung up.
	ErrHungUp = errors.New("session: call hung up")
)

// Context is the per-call variable and lifecycle state.
type Context struct {
	sess host.Session
	log  *slog.Logger

	uuid       string
	callerID   string
	callerName string
	domain     string
	startEpoch int64

	budget int

	mu     sync.Mutex
	cache  map[string]string
	visits map[int]int
}

// Option is a functional option for [New].
type Option func(*Context)

// WithVisitBudget overrides the per-node visit budget.
func WithVisitBudget(n int) Option {
	return func(c *Context) {
		if n > 0 {
			c.budget = n
		}
	}
}

// WithLogger sets the logger; the default is slog's default logger scoped
// with component=session.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// New snapshots the immutable call header from sess and returns a ready
// Context. Header fields the switch did not deliver default to "unknown";
// the call start time is taken from the wall clock.
func New(sess host.Session, opts ...Option) *Context {
	c := &Context{
		sess:       sess,
		log:        slog.With("component", "session"),
		uuid:       orUnknown(sess.UUID()),
		callerID:   orUnknown(sess.CallerID()),
		callerName: orUnknown(sess.CallerName()),
		domain:     orUnknown(sess.Domain()),
		startEpoch: time.Now().Unix(),
		budget:     DefaultVisitBudget,
		cache:      make(map[string]string),
		visits:     make(map[int]int),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("call_uuid", c.uuid)
	return c
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

// ─── Header accessors ────────────────────────────────────────────────────────

func (c *Context) UUID() string       { return c.uuid }
func (c *Context) CallerID() string   { return c.callerID }
func (c *Context) CallerName() string { return c.callerName }
func (c *Context) Domain() string     { return c.domain }

// StartEpoch returns the call start time as a Unix timestamp.
func (c *Context) StartEpoch() int64 { return c.startEpoch }

// Host returns the underlying switch session.
func (c *Context) Host() host.Session { return c.sess }

// Logger returns the call-scoped logger.
func (c *Context) Logger() *slog.Logger { return c.log }

// ─── Lifecycle ───────────────────────────────────────────────────────────────

// IsReady reports whether the channel is still up.
func (c *Context) IsReady() bool { return c.sess.Ready() }

// IsAnswered reports whether the call has been answered.
func (c *Context) IsAnswered() bool { return c.sess.Answered() }

// EnsureAnswered answers the call if needed and waits for the line to go
// quiet before the first prompt, so early media does not clip it.
func (c *Context) EnsureAnswered() error {
	if !c.sess.Ready() {
		return ErrNotReady
	}
	if c.sess.Answered() {
		return nil
	}
	if err := c.sess.Answer(); err != nil {
		return fmt.Errorf("session: answer: %w", err)
	}
	if err := c.sess.WaitForSilence(silenceThreshold, silenceHits, silenceListen); err != nil {
		// Not fatal: the prompt may clip, the call still works.
		c.log.Debug("wait_for_silence failed", "err", err)
	}
	return nil
}

// Hangup terminates the call. Safe to call more than once.
func (c *Context) Hangup() error { return c.sess.Hangup() }

// Cleanup releases per-call state. The switch session itself is owned by
// the platform adapter.
func (c *Context) Cleanup() {
	c.mu.Lock()
	c.cache = make(map[string]string)
	c.visits = make(map[int]int)
	c.mu.Unlock()
	c.log.Debug("session context cleaned up")
}

// ─── Variables ───────────────────────────────────────────────────────────────

// Get reads a channel variable. With useCache, a cached value is returned
// without consulting the switch; a cache miss reads through and populates
// the cache. Without useCache the switch is always consulted and the cache
// is left untouched. Absent variables yield def.
func (c *Context) Get(name, def string, useCache bool) string {
	if useCache {
		c.mu.Lock()
		if v, ok := c.cache[name]; ok {
			c.mu.Unlock()
			return v
		}
		c.mu.Unlock()
	}
	v, ok := c.sess.GetVariable(name)
	if !ok {
		return def
	}
	if useCache {
		c.mu.Lock()
		c.cache[name] = v
		c.mu.Unlock()
	}
	return v
}

// Set writes a channel variable to the switch and the cache (write-through).
func (c *Context) Set(name, value string) error {
	if err := c.sess.SetVariable(name, value); err != nil {
		return fmt.Errorf("session: set %q: %w", name, err)
	}
	c.mu.Lock()
	c.cache[name] = value
	c.mu.Unlock()
	return nil
}

// SetAny stringifies value the way the switch's string-only variable
// protocol requires, then behaves like [Context.Set].
func (c *Context) SetAny(name string, value any) error {
	return c.Set(name, fmt.Sprint(value))
}

// Unset removes a channel variable from the switch and the cache.
func (c *Context) Unset(name string) error {
	if err := c.sess.UnsetVariable(name); err != nil {
		return fmt.Errorf("session: unset %q: %w", name, err)
	}
	c.mu.Lock()
	delete(c.cache, name)
	c.mu.Unlock()
	return nil
}

// ClearCache drops every cached variable. Call after any code path that may
// have mutated switch variables behind the cache's back, e.g. when a bridge
// returns.
func (c *Context) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]string)
	c.mu.Unlock()
}

// ─── Visit tracking ──────────────────────────────────────────────────────────

// Visit increments and returns the visit count for nodeID.
func (c *Context) Visit(nodeID int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visits[nodeID]++
	return c.visits[nodeID]
}

// Visits returns the current visit count for nodeID.
func (c *Context) Visits(nodeID int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visits[nodeID]
}

// Budget returns the per-node visit budget for this call.
func (c *Context) Budget() int { return c.budget }
