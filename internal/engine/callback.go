package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/voxflow/voxflow/internal/handlers"
)

// Call-center variables set by the queue subsystem before the callback leg
// re-enters the engine.
const (
	ccCancelReasonVar = "cc_cancel_reason"
	ccAgentBridgedVar = "cc_agent_bridged"
	ccAgentVar        = "cc_agent"
)

// ccTimeoutReason marks a queue wait that expired before an agent answered.
const ccTimeoutReason = "TIMEOUT"

const (
	timeoutApology  = "Sorry, the agents are not available or busy at this moment"
	timeoutFarewell = "Thank you"
	calmPause       = time.Second
)

// RunCallback interprets a call-center callback leg: a call that already
// passed through an enqueue node and is now re-entering the flow.
//
// Queue timeout gets a spoken apology and a hangup. A bridged agent leg
// updates the agent's presence and resumes the flow at the first child of
// the node that enqueued the caller. Anything else ends the call.
func (e *Engine) RunCallback(ctx context.Context) error {
	if err := e.prepare(); err != nil {
		e.log.Error("callback rejected", "err", err)
		_ = e.sess.Hangup()
		return err
	}
	if err := e.sess.EnsureAnswered(); err != nil {
		return err
	}

	// The queue subsystem wrote these behind the cache's back.
	reason := e.sess.Get(ccCancelReasonVar, "", false)
	bridged := e.sess.Get(ccAgentBridgedVar, "", false)
	agent := e.sess.Get(ccAgentVar, "", false)
	lastNode := e.sess.Get(handlers.CCLastNodeVar, "", false)

	e.log.Info("callback re-entry",
		"cancel_reason", reason, "bridged", bridged, "agent", agent, "last_node", lastNode)

	switch {
	case reason == ccTimeoutReason:
		e.speakTimeoutApology()
		_ = e.sess.Hangup()
		return nil

	case bridged == "true":
		e.updateAgentPresence(agent)
		return e.finish(e.resumeAfterEnqueue(ctx, lastNode))

	default:
		e.log.Info("callback leg not bridged, ending call")
		_ = e.sess.Hangup()
		return nil
	}
}

// speakTimeoutApology tells the caller no agent picked up. Every step is
// best effort; the hangup follows regardless.
func (e *Engine) speakTimeoutApology() {
	_ = e.sess.Host().SetTTSParams(e.ttsParams())
	_ = e.sess.Host().Sleep(calmPause)
	if err := e.sess.Host().Speak(timeoutApology); err != nil {
		e.log.Error("timeout apology failed", "err", err)
	}
	_ = e.sess.Host().Sleep(calmPause)
	_ = e.sess.Host().Speak(timeoutFarewell)
	_ = e.sess.Host().Sleep(calmPause)
}

// resumeAfterEnqueue continues the flow at the first child of the node that
// enqueued the caller.
func (e *Engine) resumeAfterEnqueue(ctx context.Context, lastNode string) error {
	id, err := strconv.Atoi(lastNode)
	if err != nil {
		e.log.Error("no usable enqueue node recorded", "value", lastNode)
		_ = e.sess.Hangup()
		return nil
	}
	node := e.cfg.NodeByID(id)
	if node == nil || len(node.Children) == 0 {
		e.log.Error("enqueue node has no continuation", "node", id)
		_ = e.sess.Hangup()
		return nil
	}
	return e.ExecuteNodeID(ctx, node.Children[0].ChildNodeID)
}
