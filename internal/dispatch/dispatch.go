// Package dispatch routes node opcodes to handler families.
//
// The opcode → family mapping is data-driven: [flow.Opcode.Family] seeds the
// default table and [Dispatcher.RegisterOperation] extends or overrides it
// at runtime. Families are constructed lazily on first use and cached, so a
// deployment that never transfers calls never builds the transfer family.
//
// Execute runs under a fault barrier: a panicking handler is converted into
// a [HandlerFailureError] and counted as failed instead of crashing the
// engine.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxflow/voxflow/internal/session"
	"github.com/voxflow/voxflow/pkg/flow"
)

// Navigator is the interpreter surface handlers use to move the call to its
// next node. Implemented by the engine; one Navigator per call.
type Navigator interface {
	// ExecuteNode runs the given node (subject to the visit budget).
	ExecuteNode(ctx context.Context, node *flow.Node) error

	// ExecuteNodeID resolves id in the active flow and runs it.
	ExecuteNodeID(ctx context.Context, id int) error

	// RouteDigits selects the child edge matching the collected digits and
	// runs it; no match falls through to invalid-input handling.
	RouteDigits(ctx context.Context, digits string, node *flow.Node) error

	// InvalidInput replays the node's invalid-input prompt (when defined)
	// and re-executes the node.
	InvalidInput(ctx context.Context, node *flow.Node) error

	// Hangup terminates the call.
	Hangup(ctx context.Context) error
}

// Env is the per-call environment handed to every handler invocation.
type Env struct {
	// Session is the call's variable context.
	Session *session.Context

	// Nav is the call's interpreter.
	Nav Navigator

	// Settings is the flow's general settings snapshot for this call.
	Settings flow.Settings
}

// Family executes all opcodes of one handler family. Implementations are
// process-wide and must be safe for concurrent calls; per-call state travels
// in [Env].
type Family interface {
	Execute(ctx context.Context, env *Env, op flow.Opcode, node *flow.Node) error
}

// Factory constructs a family on first use.
type Factory func() (Family, error)

// Recorder receives one event per Execute for metrics export. status is
// "ok", "failed", or "unknown_opcode".
type Recorder func(op flow.Opcode, family, status string, elapsed time.Duration)

// Dispatcher maps opcodes to handler families and tracks execution counters.
// Safe for concurrent use by all calls in the process.
type Dispatcher struct {
	log    *slog.Logger
	record Recorder

	mu        sync.RWMutex
	opFamily  map[flow.Opcode]string
	factories map[string]Factory
	families  map[string]Family

	stats stats
}

// Option is a functional option for [New].
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithRecorder installs a metrics callback invoked once per Execute.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.record = r }
}

// New creates a Dispatcher seeded with the default opcode → family table.
// Register a factory per family before executing.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:       slog.With("component", "dispatch"),
		opFamily:  make(map[flow.Opcode]string),
		factories: make(map[string]Factory),
		families:  make(map[string]Family),
	}
	for _, op := range flow.Opcodes() {
		d.opFamily[op] = op.Family()
	}
	for _, o := range opts {
		o(d)
	}
	d.stats.init(d.opFamily)
	return d
}

// RegisterFamily installs the factory for a family name. Re-registration
// logs a warning and overrides, dropping any cached instance.
func (d *Dispatcher) RegisterFamily(name string, f Factory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.factories[name]; exists {
		d.log.Warn("family re-registered; overriding", "family", name)
		delete(d.families, name)
	}
	d.factories[name] = f
}

// RegisterOperation binds an opcode to a family at runtime. Re-binding an
// already mapped opcode logs a warning and overrides.
func (d *Dispatcher) RegisterOperation(op flow.Opcode, family string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, exists := d.opFamily[op]; exists {
		d.log.Warn("operation re-registered; overriding", "op", op, "old_family", prev, "new_family", family)
	}
	d.opFamily[op] = family
	d.stats.ensureOp(op)
}

// Execute routes one node to its family handler.
//
// Counters are bumped before routing so rejected opcodes are visible in the
// totals. Panics inside the handler are translated to [HandlerFailureError].
func (d *Dispatcher) Execute(ctx context.Context, env *Env, op flow.Opcode, node *flow.Node) (err error) {
	start := time.Now()
	d.stats.hit(op)

	d.mu.RLock()
	familyName, known := d.opFamily[op]
	d.mu.RUnlock()
	if !known || familyName == "" {
		d.stats.fail()
		d.emit(op, familyName, "unknown_opcode", start)
		return &UnknownOpcodeError{Code: int(op)}
	}

	family, err := d.family(familyName)
	if err != nil {
		d.stats.fail()
		d.emit(op, familyName, "failed", start)
		return &HandlerFailureError{Op: op, Cause: err}
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panicked", "op", op, "family", familyName, "panic", r)
			err = &HandlerFailureError{Op: op, Cause: fmt.Errorf("panic: %v", r)}
		}
		if err != nil && !IsControl(err) {
			d.stats.fail()
			d.emit(op, familyName, "failed", start)
		} else {
			d.emit(op, familyName, "ok", start)
		}
	}()

	return family.Execute(ctx, env, op, node)
}

// family returns the cached instance for name, building it on first use.
func (d *Dispatcher) family(name string) (Family, error) {
	d.mu.RLock()
	if f, ok := d.families[name]; ok {
		d.mu.RUnlock()
		return f, nil
	}
	factory, ok := d.factories[name]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dispatch: no factory registered for family %q", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.families[name]; ok {
		return f, nil
	}
	f, err := factory()
	if err != nil {
		return nil, fmt.Errorf("dispatch: build family %q: %w", name, err)
	}
	d.families[name] = f
	d.log.Debug("family loaded", "family", name)
	return f, nil
}

func (d *Dispatcher) emit(op flow.Opcode, family, status string, start time.Time) {
	if d.record != nil {
		d.record(op, family, status, time.Since(start))
	}
}

// Stats returns a snapshot of the execution counters. Snapshots taken while
// calls are executing may be slightly inconsistent between fields.
func (d *Dispatcher) Stats() Stats {
	return d.stats.snapshot()
}
