package handlers

import (
	"context"
	"testing"

	"github.com/voxflow/voxflow/pkg/flow"
)

func TestSpeakSetsParamsAndRendersText(t *testing.T) {
	deps, sess, _, env := testRig(t)
	sess.SetVar("name", "Ada")
	h := NewTTS(deps)

	node := &flow.Node{ID: 1, Operation: flow.OpSpeak, TTSText: "Welcome ${name}"}
	if err := h.Execute(context.Background(), env, flow.OpSpeak, node); err != nil {
		t.Fatal(err)
	}

	engine, voice := sess.TTSParams()
	if engine != "flite" || voice != "slt" {
		t.Errorf("tts params = %q/%q", engine, voice)
	}
	if spoken := sess.Spoken(); len(spoken) != 1 || spoken[0] != "Welcome Ada" {
		t.Errorf("spoken = %v", spoken)
	}
	if !sess.Answered() {
		t.Error("call not answered before speaking")
	}
}

func TestSpeakPrefersFlowSettings(t *testing.T) {
	deps, sess, _, env := testRig(t)
	env.Settings = flow.Settings{"tts_engine": "polly", "tts_voice": "Vicki"}
	h := NewTTS(deps)

	node := &flow.Node{ID: 1, Operation: flow.OpSpeak, TTSText: "Hallo"}
	if err := h.Execute(context.Background(), env, flow.OpSpeak, node); err != nil {
		t.Fatal(err)
	}
	engine, voice := sess.TTSParams()
	if engine != "polly" || voice != "Vicki" {
		t.Errorf("tts params = %q/%q, want flow settings to win", engine, voice)
	}
}

func TestSpeakSkipsEmptyText(t *testing.T) {
	deps, sess, _, env := testRig(t)
	h := NewTTS(deps)

	node := &flow.Node{ID: 1, Operation: flow.OpSpeak}
	if err := h.Execute(context.Background(), env, flow.OpSpeak, node); err != nil {
		t.Fatal(err)
	}
	if spoken := sess.Spoken(); len(spoken) != 0 {
		t.Errorf("spoken = %v, want nothing", spoken)
	}
}

func TestSpeakAndCollectStoresAndRoutes(t *testing.T) {
	deps, sess, nav, env := testRig(t)
	sess.QueueDigits("1")
	h := NewTTS(deps)

	node := &flow.Node{
		ID: 1, Operation: flow.OpSpeakAndCollect,
		TTSText: "Press one for sales", VariableName: "dept",
		Children: []flow.Edge{{ChildNodeID: 10, InputKeys: "1"}},
	}
	if err := h.Execute(context.Background(), env, flow.OpSpeakAndCollect, node); err != nil {
		t.Fatal(err)
	}

	if got := sess.Var("dept"); got != "1" {
		t.Errorf("stored = %q", got)
	}
	if len(nav.routed) != 1 || nav.routed[0] != "1" {
		t.Errorf("routed = %v", nav.routed)
	}
}

func TestSpeakAndCollectTimeoutGoesToInvalidInput(t *testing.T) {
	deps, _, nav, env := testRig(t)
	h := NewTTS(deps)

	node := &flow.Node{
		ID: 1, Operation: flow.OpSpeakAndCollect, TTSText: "Enter your PIN",
		Children: []flow.Edge{{ChildNodeID: 10, InputKeys: "1"}},
	}
	if err := h.Execute(context.Background(), env, flow.OpSpeakAndCollect, node); err != nil {
		t.Fatal(err)
	}
	if nav.invalid != 1 {
		t.Errorf("invalid = %d, want 1", nav.invalid)
	}
	if len(nav.routed) != 0 {
		t.Errorf("routed = %v, want none", nav.routed)
	}
}
