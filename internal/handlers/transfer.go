package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/voxflow/voxflow/internal/dispatch"
	"github.com/voxflow/voxflow/internal/validate"
	"github.com/voxflow/voxflow/pkg/flow"
)

// Call-center re-entry variables shared with the engine's callback path.
const (
	// CCLastNodeVar records the node that enqueued the caller so the
	// callback path can resume at its first child.
	CCLastNodeVar = "cc_last_nodeId"
)

// Transfer handles call movement: extension transfer (100), blind transfer
// (107), attended transfer (108), and call-center enqueue (101).
type Transfer struct {
	deps Deps
	log  *slog.Logger
}

// NewTransfer creates the transfer family handler.
func NewTransfer(deps Deps) *Transfer {
	return &Transfer{deps: deps, log: deps.logger(flow.FamilyTransfer)}
}

// Execute implements [dispatch.Family].
func (h *Transfer) Execute(ctx context.Context, env *dispatch.Env, op flow.Opcode, node *flow.Node) error {
	if err := env.Session.EnsureAnswered(); err != nil {
		return err
	}

	switch op {
	case flow.OpTransferExt:
		return h.bridge(env, node, "bridge")

	case flow.OpAttendedXfer:
		return h.bridge(env, node, "att_xfer")

	case flow.OpBlindTransfer:
		target := h.dialTarget(env, node)
		if target == "" {
			h.log.Error("no transfer target", "node", node.ID)
			return env.Nav.InvalidInput(ctx, node)
		}
		h.log.Info("blind transfer", "node", node.ID, "target", target)
		if err := env.Session.Host().Execute("transfer", target); err != nil {
			h.log.Error("blind transfer failed", "node", node.ID, "err", err)
			return env.Nav.InvalidInput(ctx, node)
		}
		// The call now belongs to the transfer target.
		return dispatch.ErrCallEnded

	case flow.OpEnqueue:
		return h.enqueue(env, node)

	default:
		return fmt.Errorf("transfer: unsupported opcode %s", op)
	}
}

// bridge connects the caller to an extension and, when the bridge returns
// (busy, no answer, far-end hangup), lets the flow continue linearly. The
// far end may have changed channel variables, so the cache is dropped.
func (h *Transfer) bridge(env *dispatch.Env, node *flow.Node, app string) error {
	target := h.dialTarget(env, node)
	if target == "" {
		h.log.Error("no transfer target", "node", node.ID)
		return nil
	}
	h.log.Info("bridging", "node", node.ID, "app", app, "target", target)
	if err := env.Session.Host().Execute(app, target); err != nil {
		h.log.Error("bridge failed", "node", node.ID, "target", target, "err", err)
	}
	env.Session.ClearCache()
	return nil
}

// enqueue hands the caller to the call-center subsystem. The current node ID
// is recorded first so the callback re-entry can resume at its first child.
func (h *Transfer) enqueue(env *dispatch.Env, node *flow.Node) error {
	queue := node.QueueName
	if queue == "" {
		queue = env.Settings.String("default_queue", "support")
	}

	if err := env.Session.Set(CCLastNodeVar, strconv.Itoa(node.ID)); err != nil {
		h.log.Error("record enqueue node failed", "node", node.ID, "err", err)
	}

	domain := env.Session.Domain()
	h.log.Info("enqueueing", "node", node.ID, "queue", queue, "domain", domain)
	if err := env.Session.Host().Execute("callcenter", queue+"@"+domain); err != nil {
		h.log.Error("enqueue failed", "node", node.ID, "queue", queue, "err", err)
		return nil
	}
	// Control returns through the call-center callback re-entry.
	return dispatch.ErrCallEnded
}

// dialTarget resolves the node's transfer target through the extension map,
// falling back to the literal value. Bare extensions are wrapped into a user
// dial string, phone numbers and full dial strings (user/..., sofia/...) are
// used as-is, and anything unroutable is rejected.
func (h *Transfer) dialTarget(env *dispatch.Env, node *flow.Node) string {
	target := expandVars(node.TransferTarget, env)
	if target == "" {
		return ""
	}
	if ext, ok := h.deps.Store.AgentExtensions().Dial(target); ok {
		target = ext
	}
	switch {
	case validate.Extension(target):
		return "user/" + target + "@" + env.Session.Domain()
	case validate.Phone(target):
		return target
	case strings.Contains(target, "/"):
		return target
	default:
		h.log.Warn("unroutable transfer target", "node", node.ID, "target", target)
		return ""
	}
}
