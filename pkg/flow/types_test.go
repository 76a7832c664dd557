package flow

import (
	"testing"
)

func TestDecodeRealDocumentShape(t *testing.T) {
	data := []byte(`{
		"IVRConfiguration": [{
			"IVRProcessFlow": [
				{"NodeId": 1, "NodeName": "greeting", "OperationCode": 10, "IsStartNode": true,
				 "AudioFile": "welcome.wav",
				 "ChildNodeConfig": [{"ChildNodeId": 2}]},
				{"NodeId": 2, "OperationCode": 31,
				 "ChildNodeConfig": [
					{"ChildNodeId": 3, "InputKeys": "1"},
					{"ChildNodeId": 4, "DTMFInput": " 2 "}
				 ]},
				{"NodeId": 3, "OperationCode": 200},
				{"NodeId": 4, "OperationCode": 200}
			],
			"GeneralSettingValues": {"tts_engine": "flite", "visit_budget": 10}
		}]
	}`)

	doc, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if err := Validate(doc); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	cfg := doc.Flow()
	if cfg == nil {
		t.Fatal("Flow() = nil")
	}
	start := cfg.StartNode()
	if start == nil || start.ID != 1 {
		t.Fatalf("StartNode() = %+v, want node 1", start)
	}
	if start.AudioFile != "welcome.wav" {
		t.Errorf("AudioFile = %q", start.AudioFile)
	}

	menu := cfg.NodeByID(2)
	if menu == nil {
		t.Fatal("NodeByID(2) = nil")
	}
	if got := menu.Children[0].Keys(); got != "1" {
		t.Errorf("edge 0 keys = %q, want %q", got, "1")
	}
	// Legacy field name, with surrounding whitespace.
	if got := menu.Children[1].Keys(); got != "2" {
		t.Errorf("edge 1 keys = %q, want %q", got, "2")
	}

	if got := cfg.Settings.String("tts_engine", ""); got != "flite" {
		t.Errorf(`Settings.String("tts_engine") = %q`, got)
	}
	if got := cfg.Settings.Int("visit_budget", 0); got != 10 {
		t.Errorf(`Settings.Int("visit_budget") = %d`, got)
	}
}

func TestEdgeKeysPrefersInputKeys(t *testing.T) {
	e := Edge{InputKeys: "3", DTMFInput: "9"}
	if got := e.Keys(); got != "3" {
		t.Errorf("Keys() = %q, want %q", got, "3")
	}
	if got := (Edge{}).Keys(); got != "" {
		t.Errorf("Keys() on linear edge = %q, want empty", got)
	}
}

func TestNodeByIDMissing(t *testing.T) {
	cfg := &Configuration{ProcessFlow: []Node{{ID: 1}}}
	if n := cfg.NodeByID(5); n != nil {
		t.Errorf("NodeByID(5) = %+v, want nil", n)
	}
}

func TestOpcodeFamilyCoversFullSet(t *testing.T) {
	for _, op := range Opcodes() {
		if op.Family() == "" {
			t.Errorf("opcode %s has no family", op)
		}
		if !op.IsValid() {
			t.Errorf("opcode %s not valid", op)
		}
	}
	if Opcode(999).IsValid() {
		t.Error("opcode 999 reported valid")
	}
	if got := len(Opcodes()); got != 19 {
		t.Errorf("supported opcode count = %d, want 19", got)
	}
}
