package engine

import (
	"fmt"
	"strings"
)

// notRegisteredSentinel is what sofia_contact returns for an agent with no
// registered device.
const notRegisteredSentinel = "error/user_not_registered"

// updateAgentPresence refreshes the call-center status of the agent who just
// finished a bridged leg. Agents with no registered device are marked logged
// out; registered agents go back to Available/Waiting with a fresh contact.
//
// Presence is bookkeeping: every command is best effort and failures only
// log.
func (e *Engine) updateAgentPresence(agent string) {
	if e.api == nil || agent == "" {
		return
	}
	agentID := agent + "@" + e.sess.Domain()

	contact, err := e.api.ExecuteString("sofia_contact " + agentID)
	if err != nil {
		e.log.Warn("sofia_contact failed", "agent", agentID, "err", err)
		return
	}
	contact = strings.TrimSpace(contact)

	if strings.Contains(contact, notRegisteredSentinel) {
		e.ccConfig(fmt.Sprintf("callcenter_config agent set status '%s' 'Logged Out'", agentID))
		e.log.Info("agent marked logged out", "agent", agentID)
		return
	}

	e.ccConfig(fmt.Sprintf("callcenter_config agent set status '%s' 'Available'", agentID))
	e.ccConfig(fmt.Sprintf("callcenter_config agent set contact '%s' '%s'", agentID, contact))
	e.ccConfig(fmt.Sprintf("callcenter_config agent set state '%s' 'Waiting'", agentID))
	e.log.Info("agent presence refreshed", "agent", agentID)
}

func (e *Engine) ccConfig(cmd string) {
	if _, err := e.api.ExecuteString(cmd); err != nil {
		e.log.Warn("callcenter_config failed", "cmd", cmd, "err", err)
	}
}
