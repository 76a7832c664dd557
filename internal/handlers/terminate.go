package handlers

import (
	"context"
	"log/slog"

	"github.com/voxflow/voxflow/internal/dispatch"
	"github.com/voxflow/voxflow/pkg/flow"
)

// Termination handles the end-call opcode (200): an optional farewell
// prompt, then hangup.
type Termination struct {
	deps Deps
	log  *slog.Logger
}

// NewTermination creates the termination family handler.
func NewTermination(deps Deps) *Termination {
	return &Termination{deps: deps, log: deps.logger(flow.FamilyTermination)}
}

// Execute implements [dispatch.Family].
func (h *Termination) Execute(ctx context.Context, env *dispatch.Env, op flow.Opcode, node *flow.Node) error {
	if node.AudioFile != "" {
		if err := env.Session.Host().StreamFile(h.deps.promptPath(env, node.AudioFile)); err != nil {
			h.log.Error("farewell playback failed", "node", node.ID, "err", err)
		}
	} else if node.TTSText != "" {
		engine := env.Settings.String("tts_engine", h.deps.TTSEngine)
		voice := env.Settings.String("tts_voice", h.deps.TTSVoice)
		if err := env.Session.Host().SetTTSParams(engine, voice); err != nil {
			h.log.Error("set tts params failed", "node", node.ID, "err", err)
		}
		if err := env.Session.Host().Speak(expandVars(node.TTSText, env)); err != nil {
			h.log.Error("farewell tts failed", "node", node.ID, "err", err)
		}
	}

	h.log.Info("terminating call", "node", node.ID)
	_ = env.Nav.Hangup(ctx)
	return dispatch.ErrCallEnded
}
