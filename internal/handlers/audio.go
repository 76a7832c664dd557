package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voxflow/voxflow/internal/dispatch"
	"github.com/voxflow/voxflow/pkg/flow"
)

// recordedFileVar is the session variable the recording family stores the
// last recording path under; operation 11 plays it back.
const recordedFileVar = "recording_file"

// Audio handles the playback-centric opcodes: plain playback (10), playback
// of the caller's recording (11), play-then-collect (30), menu (31), and
// number read-out (50).
type Audio struct {
	deps Deps
	log  *slog.Logger
}

// NewAudio creates the audio family handler.
func NewAudio(deps Deps) *Audio {
	return &Audio{deps: deps, log: deps.logger(flow.FamilyAudio)}
}

// Execute implements [dispatch.Family].
func (h *Audio) Execute(ctx context.Context, env *dispatch.Env, op flow.Opcode, node *flow.Node) error {
	if err := env.Session.EnsureAnswered(); err != nil {
		return err
	}

	switch op {
	case flow.OpPlayAudio:
		h.play(env, node, h.deps.promptPath(env, node.AudioFile))
		return nil

	case flow.OpPlayRecorded:
		varName := node.VariableName
		if varName == "" {
			varName = recordedFileVar
		}
		file := env.Session.Get(varName, "", true)
		if file == "" {
			h.log.Warn("no recorded file to play", "node", node.ID, "var", varName)
			return nil
		}
		h.play(env, node, file)
		return nil

	case flow.OpPlayAndCollect, flow.OpMenu:
		return h.playAndCollect(ctx, env, node)

	case flow.OpReadDigits:
		return h.readDigits(env, node)

	default:
		return fmt.Errorf("audio: unsupported opcode %s", op)
	}
}

// play streams one file, degrading playback failures to a log line so the
// flow keeps moving.
func (h *Audio) play(env *dispatch.Env, node *flow.Node, path string) {
	if err := env.Session.Host().StreamFile(path); err != nil {
		h.log.Error("playback failed", "node", node.ID, "path", path, "err", err)
	}
}

// playAndCollect drives the switch's combined play-and-gather primitive and
// hands the collected digits to the interpreter for edge routing.
func (h *Audio) playAndCollect(ctx context.Context, env *dispatch.Env, node *flow.Node) error {
	minDigits := node.MinDigits
	if minDigits < 1 {
		minDigits = 1
	}
	maxDigits := node.MaxDigits
	if maxDigits < minDigits {
		maxDigits = minDigits
	}
	tries := node.Retries
	if tries < 1 {
		tries = 1
	}
	terminators := node.Terminator
	if terminators == "" {
		terminators = "#"
	}

	var invalid string
	if node.InvalidInputAudioFile != "" {
		invalid = h.deps.promptPath(env, node.InvalidInputAudioFile)
	}

	digits, err := env.Session.Host().PlayAndGetDigits(
		minDigits, maxDigits, tries,
		digitTimeout(node), terminators,
		h.deps.promptPath(env, node.AudioFile), invalid,
	)
	if err != nil {
		h.log.Error("play and collect failed", "node", node.ID, "err", err)
		digits = ""
	}

	if node.VariableName != "" && digits != "" {
		if err := env.Session.Set(node.VariableName, digits); err != nil {
			h.log.Error("store digits failed", "node", node.ID, "err", err)
		}
	}
	return env.Nav.RouteDigits(ctx, digits, node)
}

// readDigits reads a number sequence to the caller digit by digit using the
// switch's say engine.
func (h *Audio) readDigits(env *dispatch.Env, node *flow.Node) error {
	value := expandVars(node.TTSText, env)
	if value == "" && node.VariableName != "" {
		value = env.Session.Get(node.VariableName, "", true)
	}
	if value == "" {
		h.log.Warn("nothing to read", "node", node.ID)
		return nil
	}
	args := fmt.Sprintf("en number iterated %s", value)
	if err := env.Session.Host().Execute("say", args); err != nil {
		h.log.Error("say failed", "node", node.ID, "err", err)
	}
	return nil
}
