// Package handlers implements the node handler families the dispatcher
// routes opcodes to: audio, input, recording, transfer, api, logic, tts,
// and termination.
//
// Families are process-wide and stateless; everything per-call arrives in
// the [dispatch.Env]. Shared collaborators (flow store, auth manager, HTTP
// client, metrics) are injected once through [Deps].
//
// Error policy: a failing switch primitive is logged and degraded — the
// handler behaves as if input collection produced empty digits and lets the
// interpreter's invalid-input or terminal-edge logic take over. Only
// call-ending conditions surface as errors, wrapping [dispatch.ErrCallEnded].
package handlers

import (
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"time"

	"github.com/voxflow/voxflow/internal/auth"
	"github.com/voxflow/voxflow/internal/config"
	"github.com/voxflow/voxflow/internal/dispatch"
	"github.com/voxflow/voxflow/internal/observe"
	"github.com/voxflow/voxflow/pkg/flow"
)

// audioSubdir is where the flow editor deploys prompt files beneath the
// switch's sounds directory.
const audioSubdir = "ivr_audiofiles_tts_new"

// defaultDigitTimeout applies when a node carries no Timeout attribute.
const defaultDigitTimeout = 5 * time.Second

// Deps bundles the process-wide collaborators shared by all families.
type Deps struct {
	// Store serves the published flow documents and catalogs.
	Store *config.Store

	// Auth provides Authorization headers for endpoints that require them.
	Auth *auth.Manager

	// Metrics receives api/dispatch instrumentation. May be nil in tests.
	Metrics *observe.Metrics

	// HTTP is the outbound client for the api family. Defaults to a client
	// with a 15 second timeout when nil.
	HTTP *http.Client

	// SoundsDir overrides the switch's sounds_dir global when non-empty.
	SoundsDir string

	// TTSEngine and TTSVoice are the fallback TTS parameters when the
	// flow's general settings carry none.
	TTSEngine string
	TTSVoice  string

	// Log is the base logger. Defaults to slog's default logger.
	Log *slog.Logger
}

func (d Deps) logger(family string) *slog.Logger {
	l := d.Log
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", "handlers", "family", family)
}

func (d Deps) httpClient() *http.Client {
	if d.HTTP != nil {
		return d.HTTP
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// soundsDir resolves the sounds directory for this call: the configured
// override wins, then the switch global.
func (d Deps) soundsDir(env *dispatch.Env) string {
	if d.SoundsDir != "" {
		return d.SoundsDir
	}
	return env.Session.Host().Global("sounds_dir")
}

// promptPath resolves a prompt file name under the audio deployment dir.
func (d Deps) promptPath(env *dispatch.Env, file string) string {
	return PromptPath(d.soundsDir(env), file)
}

// PromptPath resolves a prompt file name under the audio deployment
// directory beneath soundsDir. Shared with the interpreter's invalid-input
// replay.
func PromptPath(soundsDir, file string) string {
	return path.Join(soundsDir, audioSubdir, file)
}

// digitTimeout returns the node's inter-digit timeout.
func digitTimeout(node *flow.Node) time.Duration {
	if node.TimeoutSeconds > 0 {
		return time.Duration(node.TimeoutSeconds) * time.Second
	}
	return defaultDigitTimeout
}

// hasKeyedChildren reports whether any edge of the node is DTMF-keyed.
func hasKeyedChildren(node *flow.Node) bool {
	for _, e := range node.Children {
		if e.Keys() != "" {
			return true
		}
	}
	return false
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.-]+)\}`)

// expandVars substitutes ${name} references with session variables. Unknown
// variables expand to the empty string.
func expandVars(s string, env *dispatch.Env) string {
	if s == "" {
		return s
	}
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := varPattern.FindStringSubmatch(m)[1]
		return env.Session.Get(name, "", true)
	})
}

// RegisterAll installs a factory for every family on the dispatcher.
func RegisterAll(d *dispatch.Dispatcher, deps Deps) {
	d.RegisterFamily(flow.FamilyAudio, func() (dispatch.Family, error) { return NewAudio(deps), nil })
	d.RegisterFamily(flow.FamilyInput, func() (dispatch.Family, error) { return NewInput(deps), nil })
	d.RegisterFamily(flow.FamilyRecording, func() (dispatch.Family, error) { return NewRecording(deps), nil })
	d.RegisterFamily(flow.FamilyTransfer, func() (dispatch.Family, error) { return NewTransfer(deps), nil })
	d.RegisterFamily(flow.FamilyAPI, func() (dispatch.Family, error) { return NewAPI(deps), nil })
	d.RegisterFamily(flow.FamilyLogic, func() (dispatch.Family, error) { return NewLogic(deps), nil })
	d.RegisterFamily(flow.FamilyTTS, func() (dispatch.Family, error) { return NewTTS(deps), nil })
	d.RegisterFamily(flow.FamilyTermination, func() (dispatch.Family, error) { return NewTermination(deps), nil })
}
