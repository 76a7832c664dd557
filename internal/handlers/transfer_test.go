package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/voxflow/voxflow/internal/dispatch"
	"github.com/voxflow/voxflow/pkg/flow"
)

func TestBridgeResolvesExtensionMapEntry(t *testing.T) {
	deps, sess, _, env := testRig(t)
	h := NewTransfer(deps)

	node := &flow.Node{ID: 1, Operation: flow.OpTransferExt, TransferTarget: "reception"}
	if err := h.Execute(context.Background(), env, flow.OpTransferExt, node); err != nil {
		t.Fatal(err)
	}

	execs := sess.Executed()
	if len(execs) != 1 || execs[0].App != "bridge" || execs[0].Args != "user/5000@pbx.qa" {
		t.Errorf("executed = %+v", execs)
	}
}

func TestBridgeKeepsFullDialStrings(t *testing.T) {
	deps, sess, _, env := testRig(t)
	h := NewTransfer(deps)

	// The sales entry already carries a dial prefix.
	node := &flow.Node{ID: 1, Operation: flow.OpAttendedXfer, TransferTarget: "sales"}
	if err := h.Execute(context.Background(), env, flow.OpAttendedXfer, node); err != nil {
		t.Fatal(err)
	}
	execs := sess.Executed()
	if len(execs) != 1 || execs[0].App != "att_xfer" || execs[0].Args != "user/5001@pbx.qa" {
		t.Errorf("executed = %+v", execs)
	}
}

func TestBridgeDropsVariableCacheOnReturn(t *testing.T) {
	deps, sess, _, env := testRig(t)
	sess.SetVar("mood", "before")
	if got := env.Session.Get("mood", "", true); got != "before" {
		t.Fatal("seed failed")
	}
	h := NewTransfer(deps)

	node := &flow.Node{ID: 1, Operation: flow.OpTransferExt, TransferTarget: "5000"}
	if err := h.Execute(context.Background(), env, flow.OpTransferExt, node); err != nil {
		t.Fatal(err)
	}

	// The far end may have rewritten variables while bridged.
	sess.SetVar("mood", "after")
	if got := env.Session.Get("mood", "", true); got != "after" {
		t.Errorf("Get() after bridge = %q, want fresh read", got)
	}
}

func TestBlindTransferEndsTheWalk(t *testing.T) {
	deps, sess, _, env := testRig(t)
	h := NewTransfer(deps)

	node := &flow.Node{ID: 1, Operation: flow.OpBlindTransfer, TransferTarget: "+4912345678"}
	err := h.Execute(context.Background(), env, flow.OpBlindTransfer, node)
	if !errors.Is(err, dispatch.ErrCallEnded) {
		t.Fatalf("Execute() = %v, want ErrCallEnded", err)
	}
	execs := sess.Executed()
	if len(execs) != 1 || execs[0].App != "transfer" {
		t.Errorf("executed = %+v", execs)
	}
}

func TestEnqueueRecordsNodeAndEndsWalk(t *testing.T) {
	deps, sess, _, env := testRig(t)
	h := NewTransfer(deps)

	node := &flow.Node{ID: 33, Operation: flow.OpEnqueue, QueueName: "billing"}
	err := h.Execute(context.Background(), env, flow.OpEnqueue, node)
	if !errors.Is(err, dispatch.ErrCallEnded) {
		t.Fatalf("Execute() = %v, want ErrCallEnded", err)
	}

	if got := sess.Var(CCLastNodeVar); got != "33" {
		t.Errorf("%s = %q, want 33", CCLastNodeVar, got)
	}
	execs := sess.Executed()
	if len(execs) != 1 || execs[0].App != "callcenter" || execs[0].Args != "billing@pbx.qa" {
		t.Errorf("executed = %+v", execs)
	}
}

func TestEnqueueDefaultsQueueFromSettings(t *testing.T) {
	deps, sess, _, env := testRig(t)
	env.Settings = flow.Settings{"default_queue": "frontdesk"}
	h := NewTransfer(deps)

	node := &flow.Node{ID: 1, Operation: flow.OpEnqueue}
	if err := h.Execute(context.Background(), env, flow.OpEnqueue, node); !errors.Is(err, dispatch.ErrCallEnded) {
		t.Fatal(err)
	}
	execs := sess.Executed()
	if len(execs) != 1 || execs[0].Args != "frontdesk@pbx.qa" {
		t.Errorf("executed = %+v", execs)
	}
}

func TestTransferTargetFromSessionVariable(t *testing.T) {
	deps, sess, _, env := testRig(t)
	sess.SetVar("chosen_ext", "5000")
	h := NewTransfer(deps)

	node := &flow.Node{ID: 1, Operation: flow.OpTransferExt, TransferTarget: "${chosen_ext}"}
	if err := h.Execute(context.Background(), env, flow.OpTransferExt, node); err != nil {
		t.Fatal(err)
	}
	execs := sess.Executed()
	if len(execs) != 1 || execs[0].Args != "user/5000@pbx.qa" {
		t.Errorf("executed = %+v", execs)
	}
}

func TestTransferRejectsUnroutableTarget(t *testing.T) {
	deps, sess, nav, env := testRig(t)
	h := NewTransfer(deps)

	// Not an extension, not a phone number, not a dial string.
	node := &flow.Node{ID: 1, Operation: flow.OpTransferExt, TransferTarget: "front desk"}
	if err := h.Execute(context.Background(), env, flow.OpTransferExt, node); err != nil {
		t.Fatal(err)
	}
	if execs := sess.Executed(); len(execs) != 0 {
		t.Errorf("executed = %+v, want no dial attempt", execs)
	}

	blind := &flow.Node{ID: 2, Operation: flow.OpBlindTransfer, TransferTarget: "front desk"}
	if err := h.Execute(context.Background(), env, flow.OpBlindTransfer, blind); err != nil {
		t.Fatal(err)
	}
	if nav.invalid != 1 {
		t.Errorf("invalid = %d, want 1", nav.invalid)
	}
}

func TestTransferDialsPhoneNumberAsIs(t *testing.T) {
	deps, sess, _, env := testRig(t)
	h := NewTransfer(deps)

	node := &flow.Node{ID: 1, Operation: flow.OpBlindTransfer, TransferTarget: "+4912345678"}
	if err := h.Execute(context.Background(), env, flow.OpBlindTransfer, node); !errors.Is(err, dispatch.ErrCallEnded) {
		t.Fatal(err)
	}
	execs := sess.Executed()
	if len(execs) != 1 || execs[0].Args != "+4912345678" {
		t.Errorf("executed = %+v", execs)
	}
}
