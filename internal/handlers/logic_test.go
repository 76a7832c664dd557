package handlers

import (
	"context"
	"testing"

	"github.com/voxflow/voxflow/pkg/flow"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		left, op, right string
		want            bool
	}{
		{"5", "==", "5", true},
		{"5", "==", "5.0", true}, // numeric, not lexical
		{"abc", "==", "abc", true},
		{"abc", "eq", "abd", false},
		{"5", "!=", "6", true},
		{"x", "ne", "x", false},
		{"10", ">", "9", true},
		{"9", "gt", "10", false}, // lexically "9" > "10", numerically not
		{"2", ">=", "2", true},
		{"1", "<", "2", true},
		{"b", "lt", "a", false},
		{"3", "<=", "3", true},
		{"hello world", "contains", "world", true},
		{"hello", "contains", "bye", false},
		{"x", "bogus", "x", false},
		{" 7 ", "==", "7", true}, // whitespace trimmed for numeric parse
	}
	for _, c := range cases {
		if got := evaluate(c.left, c.op, c.right); got != c.want {
			t.Errorf("evaluate(%q, %q, %q) = %v, want %v", c.left, c.op, c.right, got, c.want)
		}
	}
}

func TestLogicRoutesTrueEdge(t *testing.T) {
	deps, sess, nav, env := testRig(t)
	sess.SetVar("tier", "gold")
	h := NewLogic(deps)

	node := &flow.Node{
		ID: 1, Operation: flow.OpCondition,
		ConditionVariable: "tier", ConditionOperator: "==", ConditionValue: "gold",
		Children: []flow.Edge{
			{ChildNodeID: 10, InputKeys: "true"},
			{ChildNodeID: 20, InputKeys: "false"},
		},
	}
	if err := h.Execute(context.Background(), env, flow.OpCondition, node); err != nil {
		t.Fatal(err)
	}
	if len(nav.routed) != 1 || nav.routed[0] != "true" {
		t.Errorf("routed = %v", nav.routed)
	}
}

func TestLogicRoutesFalseEdge(t *testing.T) {
	deps, sess, nav, env := testRig(t)
	sess.SetVar("attempts", "3")
	h := NewLogic(deps)

	node := &flow.Node{
		ID: 1, Operation: flow.OpCondition,
		ConditionVariable: "attempts", ConditionOperator: "<", ConditionValue: "3",
	}
	if err := h.Execute(context.Background(), env, flow.OpCondition, node); err != nil {
		t.Fatal(err)
	}
	if len(nav.routed) != 1 || nav.routed[0] != "false" {
		t.Errorf("routed = %v", nav.routed)
	}
}

func TestLogicDefaultsToEquality(t *testing.T) {
	deps, sess, nav, env := testRig(t)
	sess.SetVar("lang", "de")
	h := NewLogic(deps)

	node := &flow.Node{
		ID: 1, Operation: flow.OpCondition,
		ConditionVariable: "lang", ConditionValue: "de",
	}
	if err := h.Execute(context.Background(), env, flow.OpCondition, node); err != nil {
		t.Fatal(err)
	}
	if len(nav.routed) != 1 || nav.routed[0] != "true" {
		t.Errorf("routed = %v", nav.routed)
	}
}

func TestLogicComparesAgainstExpandedValue(t *testing.T) {
	deps, sess, nav, env := testRig(t)
	sess.SetVar("input", "5000")
	sess.SetVar("home_ext", "5000")
	h := NewLogic(deps)

	node := &flow.Node{
		ID: 1, Operation: flow.OpCondition,
		ConditionVariable: "input", ConditionValue: "${home_ext}",
	}
	if err := h.Execute(context.Background(), env, flow.OpCondition, node); err != nil {
		t.Fatal(err)
	}
	if len(nav.routed) != 1 || nav.routed[0] != "true" {
		t.Errorf("routed = %v", nav.routed)
	}
}
