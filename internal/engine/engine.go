// Package engine implements the call-flow interpreter: the walk from the
// start node along DTMF-keyed or linear edges until the call terminates.
//
// One Engine drives exactly one call. Node execution is delegated to the
// dispatcher; the engine owns routing, the per-node visit budget, and the
// call-center callback re-entry path. The flow document is snapshotted once
// at the start of the call, so a hot reload never changes a call midway.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/voxflow/voxflow/internal/config"
	"github.com/voxflow/voxflow/internal/dispatch"
	"github.com/voxflow/voxflow/internal/handlers"
	"github.com/voxflow/voxflow/internal/observe"
	"github.com/voxflow/voxflow/internal/session"
	"github.com/voxflow/voxflow/pkg/flow"
	"github.com/voxflow/voxflow/pkg/host"
)

// invalidInputPause separates the invalid-input prompt from the replayed
// node so the two prompts do not run into each other.
const invalidInputPause = 500 * time.Millisecond

// loopGuardApology is spoken before the forced hangup when a node exhausts
// its visit budget.
const loopGuardApology = "An application error has occurred. Please call again later."

// Engine interprets one call against the active flow. It implements
// [dispatch.Navigator].
type Engine struct {
	sess    *session.Context
	disp    *dispatch.Dispatcher
	store   *config.Store
	api     host.API
	metrics *observe.Metrics
	log     *slog.Logger

	soundsDir string
	ttsEngine string
	ttsVoice  string

	cfg *flow.Configuration
	env *dispatch.Env
}

// Option is a functional option for [New].
type Option func(*Engine)

// WithAPI provides the switch's command API, used for agent presence
// updates on callback re-entry.
func WithAPI(api host.API) Option {
	return func(e *Engine) { e.api = api }
}

// WithMetrics installs the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithSoundsDir overrides the switch's sounds_dir global.
func WithSoundsDir(dir string) Option {
	return func(e *Engine) { e.soundsDir = dir }
}

// WithTTS sets the fallback TTS engine and voice.
func WithTTS(engine, voice string) Option {
	return func(e *Engine) {
		e.ttsEngine = engine
		e.ttsVoice = voice
	}
}

// New creates an Engine for one call.
func New(sess *session.Context, disp *dispatch.Dispatcher, store *config.Store, opts ...Option) *Engine {
	e := &Engine{
		sess:      sess,
		disp:      disp,
		store:     store,
		log:       slog.With("component", "engine"),
		ttsEngine: "flite",
		ttsVoice:  "slt",
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With("call_uuid", sess.UUID())
	return e
}

// Run interprets a fresh inbound call from the flow's start node. A normal
// call end (hangup node, transfer, caller hangup) returns nil.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.prepare(); err != nil {
		e.log.Error("call rejected", "err", err)
		_ = e.sess.Hangup()
		return err
	}

	start := e.cfg.StartNode()
	if start == nil {
		e.log.Error("flow has no start node")
		_ = e.sess.Hangup()
		return ErrNoStartNode
	}

	if err := e.sess.EnsureAnswered(); err != nil {
		return err
	}
	e.log.Info("call started", "caller", e.sess.CallerID(), "start_node", start.ID)

	return e.finish(e.ExecuteNode(ctx, start))
}

// prepare snapshots the flow document and builds the per-call handler
// environment.
func (e *Engine) prepare() error {
	cfg := e.store.IVRFlow()
	if cfg == nil {
		return ErrNoFlow
	}
	e.cfg = cfg
	e.env = &dispatch.Env{Session: e.sess, Nav: e, Settings: cfg.Settings}
	return nil
}

// finish normalises the walk's outcome: control errors are a regular call
// end, anything else is a real failure.
func (e *Engine) finish(err error) error {
	if err == nil || dispatch.IsControl(err) {
		e.log.Info("call finished")
		return nil
	}
	return err
}

// ExecuteNode runs one node and continues the walk. Part of
// [dispatch.Navigator].
func (e *Engine) ExecuteNode(ctx context.Context, node *flow.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.sess.IsReady() {
		e.log.Info("channel gone, ending walk", "node", node.ID)
		return dispatch.ErrCallEnded
	}

	visits := e.sess.Visit(node.ID)
	if visits > e.sess.Budget() {
		return e.tripLoopGuard(ctx, node, visits)
	}

	e.log.Debug("executing node", "node", node.ID, "op", node.Operation, "visit", visits)
	if err := e.disp.Execute(ctx, e.env, node.Operation, node); err != nil {
		if dispatch.IsControl(err) {
			return err
		}
		e.log.Error("node execution failed", "node", node.ID, "op", node.Operation, "err", err)
		_ = e.sess.Hangup()
		return err
	}

	// Linear continuation: the handler did not route.
	if len(node.Children) == 0 {
		e.log.Info("flow leaf reached, hanging up", "node", node.ID)
		_ = e.sess.Hangup()
		return dispatch.ErrCallEnded
	}
	return e.ExecuteNodeID(ctx, node.Children[0].ChildNodeID)
}

// ExecuteNodeID resolves id in the active flow and runs it. Part of
// [dispatch.Navigator].
func (e *Engine) ExecuteNodeID(ctx context.Context, id int) error {
	next := e.cfg.NodeByID(id)
	if next == nil {
		e.log.Error("edge points to unknown node", "node", id)
		_ = e.sess.Hangup()
		return &EdgeResolutionError{NodeID: id}
	}
	return e.ExecuteNode(ctx, next)
}

// RouteDigits selects the child edge whose keys match the collected digits,
// in declared order, first match wins. No match falls through to
// invalid-input handling. Part of [dispatch.Navigator].
func (e *Engine) RouteDigits(ctx context.Context, digits string, node *flow.Node) error {
	key := strings.TrimSpace(digits)
	if key == "" {
		return e.InvalidInput(ctx, node)
	}
	for _, edge := range node.Children {
		if edge.Keys() == key {
			return e.ExecuteNodeID(ctx, edge.ChildNodeID)
		}
	}
	e.log.Debug("no edge for input", "node", node.ID, "input", key)
	return e.InvalidInput(ctx, node)
}

// InvalidInput plays the node's invalid-input prompt (when defined) and
// replays the node. The visit budget caps how often this can repeat. Part
// of [dispatch.Navigator].
func (e *Engine) InvalidInput(ctx context.Context, node *flow.Node) error {
	if node.InvalidInputAudioFile != "" {
		file := handlers.PromptPath(e.resolveSoundsDir(), node.InvalidInputAudioFile)
		if err := e.sess.Host().StreamFile(file); err != nil {
			e.log.Error("invalid-input prompt failed", "node", node.ID, "err", err)
		}
	}
	_ = e.sess.Host().Sleep(invalidInputPause)
	return e.ExecuteNode(ctx, node)
}

// Hangup terminates the call. Part of [dispatch.Navigator].
func (e *Engine) Hangup(ctx context.Context) error {
	if err := e.sess.Hangup(); err != nil {
		e.log.Debug("hangup failed", "err", err)
		return err
	}
	return nil
}

// tripLoopGuard ends a call whose flow keeps revisiting the same node. The
// caller hears a short apology instead of silence before the hangup.
func (e *Engine) tripLoopGuard(ctx context.Context, node *flow.Node, visits int) error {
	e.log.Error("infinite loop detected", "node", node.ID, "visits", visits, "budget", e.sess.Budget())
	if e.metrics != nil {
		e.metrics.LoopGuardTrips.Add(ctx, 1)
	}
	_ = e.sess.Host().SetTTSParams(e.ttsParams())
	_ = e.sess.Host().Speak(loopGuardApology)
	_ = e.sess.Hangup()
	return &LoopGuardError{NodeID: node.ID, Visits: visits}
}

// ttsParams resolves the engine and voice from the flow settings, falling
// back to the configured defaults.
func (e *Engine) ttsParams() (string, string) {
	var settings flow.Settings
	if e.cfg != nil {
		settings = e.cfg.Settings
	}
	return settings.String("tts_engine", e.ttsEngine), settings.String("tts_voice", e.ttsVoice)
}

// resolveSoundsDir returns the configured override or the switch global.
func (e *Engine) resolveSoundsDir() string {
	if e.soundsDir != "" {
		return e.soundsDir
	}
	return e.sess.Host().Global("sounds_dir")
}
