package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/voxflow/voxflow/internal/dispatch"
	"github.com/voxflow/voxflow/pkg/flow"
)

// Logic handles the conditional-branch opcode (120). The node compares a
// session variable against a literal and routes along the "true" or "false"
// edge.
type Logic struct {
	deps Deps
	log  *slog.Logger
}

// NewLogic creates the logic family handler.
func NewLogic(deps Deps) *Logic {
	return &Logic{deps: deps, log: deps.logger(flow.FamilyLogic)}
}

// Execute implements [dispatch.Family].
func (h *Logic) Execute(ctx context.Context, env *dispatch.Env, op flow.Opcode, node *flow.Node) error {
	left := env.Session.Get(node.ConditionVariable, "", true)
	right := expandVars(node.ConditionValue, env)
	operator := node.ConditionOperator
	if operator == "" {
		operator = "=="
	}

	result := evaluate(left, operator, right)
	h.log.Debug("condition evaluated",
		"node", node.ID, "var", node.ConditionVariable,
		"left", left, "op", operator, "right", right, "result", result)

	return env.Nav.RouteDigits(ctx, strconv.FormatBool(result), node)
}

// evaluate compares two values. When both sides parse as numbers the
// comparison is numeric, otherwise lexical.
func evaluate(left, operator, right string) bool {
	lf, lerr := strconv.ParseFloat(strings.TrimSpace(left), 64)
	rf, rerr := strconv.ParseFloat(strings.TrimSpace(right), 64)
	numeric := lerr == nil && rerr == nil

	switch operator {
	case "==", "=", "eq":
		if numeric {
			return lf == rf
		}
		return left == right
	case "!=", "ne":
		if numeric {
			return lf != rf
		}
		return left != right
	case ">", "gt":
		if numeric {
			return lf > rf
		}
		return left > right
	case ">=", "ge":
		if numeric {
			return lf >= rf
		}
		return left >= right
	case "<", "lt":
		if numeric {
			return lf < rf
		}
		return left < right
	case "<=", "le":
		if numeric {
			return lf <= rf
		}
		return left <= right
	case "contains":
		return strings.Contains(left, right)
	default:
		return false
	}
}
