package handlers

import (
	"context"
	"log/slog"

	"github.com/voxflow/voxflow/internal/dispatch"
	"github.com/voxflow/voxflow/internal/validate"
	"github.com/voxflow/voxflow/pkg/flow"
)

// TTS handles speech synthesis: plain speak (330) and speak-then-collect
// (331).
type TTS struct {
	deps Deps
	log  *slog.Logger
}

// NewTTS creates the tts family handler.
func NewTTS(deps Deps) *TTS {
	return &TTS{deps: deps, log: deps.logger(flow.FamilyTTS)}
}

// Execute implements [dispatch.Family].
func (h *TTS) Execute(ctx context.Context, env *dispatch.Env, op flow.Opcode, node *flow.Node) error {
	if err := env.Session.EnsureAnswered(); err != nil {
		return err
	}

	h.speak(env, node)

	if op != flow.OpSpeakAndCollect {
		return nil
	}

	digits := Collect(env, node, h.log)
	if len(digits) < node.MinDigits || !validate.DTMF(digits) {
		return env.Nav.InvalidInput(ctx, node)
	}
	if node.VariableName != "" {
		if err := env.Session.Set(node.VariableName, digits); err != nil {
			h.log.Error("store digits failed", "node", node.ID, "err", err)
		}
	}
	if hasKeyedChildren(node) {
		return env.Nav.RouteDigits(ctx, digits, node)
	}
	return nil
}

// speak sets the engine and voice for this call, then renders the node's
// text with session variable substitution.
func (h *TTS) speak(env *dispatch.Env, node *flow.Node) {
	engine := env.Settings.String("tts_engine", h.deps.TTSEngine)
	voice := env.Settings.String("tts_voice", h.deps.TTSVoice)
	if err := env.Session.Host().SetTTSParams(engine, voice); err != nil {
		h.log.Error("set tts params failed", "node", node.ID, "err", err)
	}

	text := expandVars(node.TTSText, env)
	if text == "" {
		h.log.Warn("empty tts text", "node", node.ID)
		return
	}
	if err := env.Session.Host().Speak(text); err != nil {
		h.log.Error("speak failed", "node", node.ID, "err", err)
	}
}
