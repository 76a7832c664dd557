package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/voxflow/voxflow/internal/config"
	"github.com/voxflow/voxflow/internal/dispatch"
	"github.com/voxflow/voxflow/internal/session"
	"github.com/voxflow/voxflow/pkg/flow"
	"github.com/voxflow/voxflow/pkg/host/mock"
)

// navStub records every navigation call a handler makes.
type navStub struct {
	routed   []string
	execIDs  []int
	invalid  int
	hangups  int
	routeErr error
}

func (n *navStub) ExecuteNode(_ context.Context, node *flow.Node) error {
	n.execIDs = append(n.execIDs, node.ID)
	return nil
}

func (n *navStub) ExecuteNodeID(_ context.Context, id int) error {
	n.execIDs = append(n.execIDs, id)
	return nil
}

func (n *navStub) RouteDigits(_ context.Context, digits string, _ *flow.Node) error {
	n.routed = append(n.routed, digits)
	return n.routeErr
}

func (n *navStub) InvalidInput(context.Context, *flow.Node) error {
	n.invalid++
	return nil
}

func (n *navStub) Hangup(context.Context) error {
	n.hangups++
	return nil
}

const testFlowDoc = `{
	"IVRConfiguration": [{
		"IVRProcessFlow": [
			{"NodeId": 1, "OperationCode": 10, "IsStartNode": true},
			{"NodeId": 2, "OperationCode": 200}
		],
		"GeneralSettingValues": {}
	}]
}`

const testEndpointsDoc = `{
	"result": {
		"crm": {"url": "", "method": "POST", "auth_required": false}
	}
}`

const testExtensionsDoc = `{
	"reception": "5000",
	"sales":     {"Extension": "user/5001@pbx.qa"}
}`

const testRecordingDoc = `{
	"voicemail": {"beep": true, "max_seconds": 90, "silence_threshold": 300, "silence_seconds": 4}
}`

// newTestStore publishes a full document set from a temp directory.
func newTestStore(t *testing.T) *config.Store {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		config.DefaultIVRFile:        testFlowDoc,
		config.DefaultWebAPIFile:     testEndpointsDoc,
		config.DefaultExtensionsFile: testExtensionsDoc,
		config.DefaultRecordingFile:  testRecordingDoc,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	s := config.NewStore(dir)
	if err := s.LoadAll(); err != nil {
		t.Fatal(err)
	}
	return s
}

// testRig assembles a Deps, a scriptable switch session, and a recording
// navigator around one Env.
func testRig(t *testing.T) (Deps, *mock.Session, *navStub, *dispatch.Env) {
	t.Helper()
	sess := mock.NewSession()
	sess.DomainValue = "pbx.qa"
	nav := &navStub{}
	deps := Deps{
		Store:     newTestStore(t),
		SoundsDir: "/snd",
		TTSEngine: "flite",
		TTSVoice:  "slt",
	}
	env := &dispatch.Env{
		Session:  session.New(sess),
		Nav:      nav,
		Settings: flow.Settings{},
	}
	return deps, sess, nav, env
}

func TestPromptPathLayout(t *testing.T) {
	got := PromptPath("/usr/snd", "welcome.wav")
	want := "/usr/snd/ivr_audiofiles_tts_new/welcome.wav"
	if got != want {
		t.Errorf("PromptPath() = %q, want %q", got, want)
	}
}

func TestExpandVars(t *testing.T) {
	_, sess, _, env := testRig(t)
	sess.SetVar("name", "Ada")
	sess.SetVar("acct.id", "77")

	got := expandVars("Hello ${name}, account ${acct.id}, missing ${nope}.", env)
	want := "Hello Ada, account 77, missing ."
	if got != want {
		t.Errorf("expandVars() = %q, want %q", got, want)
	}
	if got := expandVars("", env); got != "" {
		t.Errorf("expandVars(empty) = %q", got)
	}
}

func TestRegisterAllCoversEveryFamily(t *testing.T) {
	deps, _, _, _ := testRig(t)
	d := dispatch.New()
	RegisterAll(d, deps)

	// Every supported opcode must reach a registered family. Terminal
	// opcodes end the walk, so control errors pass; each opcode gets a
	// fresh session because some hang up.
	for _, op := range flow.Opcodes() {
		env := &dispatch.Env{
			Session:  session.New(mock.NewSession()),
			Nav:      &navStub{},
			Settings: flow.Settings{},
		}
		node := &flow.Node{ID: 1, Operation: op}
		err := d.Execute(context.Background(), env, op, node)
		if err != nil && !dispatch.IsControl(err) {
			t.Errorf("op %s: %v", op, err)
		}
	}
}
