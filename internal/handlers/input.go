package handlers

import (
	"context"
	"log/slog"

	"github.com/voxflow/voxflow/internal/dispatch"
	"github.com/voxflow/voxflow/internal/validate"
	"github.com/voxflow/voxflow/pkg/flow"
)

// defaultInputVar receives collected digits when the node names no variable.
const defaultInputVar = "caller_input"

// Input handles raw DTMF collection: single collection (20) and multi-digit
// input (105).
type Input struct {
	deps Deps
	log  *slog.Logger
}

// NewInput creates the input family handler.
func NewInput(deps Deps) *Input {
	return &Input{deps: deps, log: deps.logger(flow.FamilyInput)}
}

// Execute implements [dispatch.Family].
func (h *Input) Execute(ctx context.Context, env *dispatch.Env, op flow.Opcode, node *flow.Node) error {
	if err := env.Session.EnsureAnswered(); err != nil {
		return err
	}
	digits := Collect(env, node, h.log)

	if len(digits) < node.MinDigits || !validate.DTMF(digits) {
		// Timeout, short input, or non-DTMF garbage: the interpreter
		// replays the node.
		return env.Nav.InvalidInput(ctx, node)
	}

	varName := node.VariableName
	if varName == "" {
		varName = defaultInputVar
	}
	if err := env.Session.Set(varName, digits); err != nil {
		h.log.Error("store digits failed", "node", node.ID, "var", varName, "err", err)
	}

	if hasKeyedChildren(node) {
		return env.Nav.RouteDigits(ctx, digits, node)
	}
	// Linear node: the interpreter takes the first child.
	return nil
}

// Collect runs the switch's digit collection for a node, degrading switch
// failures to empty digits. Shared with the tts family (331).
func Collect(env *dispatch.Env, node *flow.Node, log *slog.Logger) string {
	maxDigits := node.MaxDigits
	if maxDigits < 1 {
		maxDigits = 1
	}
	terminators := node.Terminator
	if terminators == "" {
		terminators = "#"
	}

	digits, err := env.Session.Host().GetDigits(maxDigits, terminators, digitTimeout(node))
	if err != nil {
		log.Error("digit collection failed", "node", node.ID, "err", err)
		return ""
	}
	return digits
}
