package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/voxflow/voxflow/internal/dispatch"
	"github.com/voxflow/voxflow/pkg/flow"
)

// Recording defaults applied when neither the node nor the recording type
// map carries values.
const (
	defaultMaxRecordSeconds = 120
	defaultSilenceThreshold = 200
	defaultSilenceSeconds   = 5
)

// Recording handles caller audio capture: plain recording (40) and
// recording with type options (341).
type Recording struct {
	deps Deps
	log  *slog.Logger
}

// NewRecording creates the recording family handler.
func NewRecording(deps Deps) *Recording {
	return &Recording{deps: deps, log: deps.logger(flow.FamilyRecording)}
}

// Execute implements [dispatch.Family].
func (h *Recording) Execute(ctx context.Context, env *dispatch.Env, op flow.Opcode, node *flow.Node) error {
	if err := env.Session.EnsureAnswered(); err != nil {
		return err
	}

	opts := flow.RecordingOptions{
		MaxSeconds:       node.MaxRecordSeconds,
		SilenceThreshold: defaultSilenceThreshold,
		SilenceSeconds:   defaultSilenceSeconds,
	}
	if op == flow.OpRecordOptions && node.RecordingType != "" {
		if typed, ok := h.deps.Store.RecordingConfig().Options(node.RecordingType); ok {
			if typed.MaxSeconds > 0 {
				opts.MaxSeconds = typed.MaxSeconds
			}
			if typed.SilenceThreshold > 0 {
				opts.SilenceThreshold = typed.SilenceThreshold
			}
			if typed.SilenceSeconds > 0 {
				opts.SilenceSeconds = typed.SilenceSeconds
			}
			opts.Beep = typed.Beep
		} else {
			h.log.Warn("unknown recording type", "node", node.ID, "type", node.RecordingType)
		}
	}
	if opts.MaxSeconds <= 0 {
		opts.MaxSeconds = defaultMaxRecordSeconds
	}

	target := h.recordPath(env, node)

	if opts.Beep {
		if err := env.Session.Host().Execute("gentones", "%(500,0,800)"); err != nil {
			h.log.Error("beep failed", "node", node.ID, "err", err)
		}
	}

	if err := env.Session.Host().RecordFile(target, opts.MaxSeconds, opts.SilenceThreshold, opts.SilenceSeconds); err != nil {
		h.log.Error("recording failed", "node", node.ID, "path", target, "err", err)
		return nil
	}

	if err := env.Session.Set(recordedFileVar, target); err != nil {
		h.log.Error("store recording path failed", "node", node.ID, "err", err)
	}
	_ = env.Session.SetAny("recording_max_seconds", opts.MaxSeconds)

	// File size is best effort: the file lives on the switch host and is
	// only visible here on co-located deployments.
	if info, err := os.Stat(target); err == nil {
		_ = env.Session.SetAny("recording_file_size", info.Size())
	}

	h.log.Info("recording stored", "node", node.ID, "path", target)
	return nil
}

// recordPath builds the target filename: the node's template (with %s
// expanding to the call UUID) under the flow's recording directory.
func (h *Recording) recordPath(env *dispatch.Env, node *flow.Node) string {
	name := node.RecordingName
	if name == "" {
		name = "recording_%s.wav"
	}
	if strings.Contains(name, "%s") {
		name = fmt.Sprintf(name, env.Session.UUID())
	}

	dir := env.Settings.String("recording_dir", "")
	if dir == "" {
		dir = path.Join(h.deps.soundsDir(env), "recordings")
	}
	return path.Join(dir, name)
}
