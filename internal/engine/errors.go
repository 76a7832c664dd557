package engine

import (
	"errors"
	"fmt"

	"github.com/voxflow/voxflow/internal/dispatch"
)

// ErrNoStartNode is returned by Run when the active flow has no node flagged
// as start node.
var ErrNoStartNode = errors.New("engine: flow has no start node")

// ErrNoFlow is returned when no flow document has been published yet.
var ErrNoFlow = errors.New("engine: no flow loaded")

// LoopGuardError reports a call terminated because one node exceeded its
// visit budget. It unwraps to [dispatch.ErrCallEnded] so callers treat the
// trip as a (forced) call end.
type LoopGuardError struct {
	NodeID int
	Visits int
}

func (e *LoopGuardError) Error() string {
	return fmt.Sprintf("engine: node %d visited %d times, budget exhausted", e.NodeID, e.Visits)
}

func (e *LoopGuardError) Unwrap() error { return dispatch.ErrCallEnded }

// EdgeResolutionError reports a child node reference that does not resolve
// in the active flow.
type EdgeResolutionError struct {
	NodeID int
}

func (e *EdgeResolutionError) Error() string {
	return fmt.Sprintf("engine: child node %d not found in flow", e.NodeID)
}
