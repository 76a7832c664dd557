// Package flow defines the data model for IVR call flows: the JSON document
// shape served by the flow editor, the node graph an interpreter walks, and
// the auxiliary catalogs (web API endpoints, agent extensions, recording
// types) that handlers consult.
//
// Nodes are stored flat and reference each other by NodeId only — edges never
// hold pointers. This keeps the whole document immutable after decode and
// makes atomic replacement on reload a plain pointer swap.
//
// This package lives under pkg/ because external tooling (flow linters,
// migration scripts) is expected to decode and validate the same documents.
package flow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is the root of the flow configuration file.
type Document struct {
	// Configurations holds one entry per tenant profile. The engine executes
	// the first entry; additional entries are reserved for staged rollouts.
	Configurations []Configuration `json:"IVRConfiguration"`
}

// Configuration bundles one node graph with its general settings.
type Configuration struct {
	// ProcessFlow is the ordered node list. Order matters for start-node
	// discovery and for DTMF edge tie-breaking.
	ProcessFlow []Node `json:"IVRProcessFlow"`

	// Settings holds free-form key/value tuning (TTS engine and voice,
	// recording directory, queue defaults). See [Settings].
	Settings Settings `json:"GeneralSettingValues"`
}

// Node is one step of a call flow. A node performs exactly one operation,
// identified by Operation, and lists its successors in Children.
// Nodes are immutable after decode.
type Node struct {
	ID        int    `json:"NodeId"`
	Name      string `json:"NodeName,omitempty"`
	Operation Opcode `json:"OperationCode"`
	IsStart   bool   `json:"IsStartNode"`
	Children  []Edge `json:"ChildNodeConfig"`

	// Audio / prompt attributes.
	AudioFile             string `json:"AudioFile,omitempty"`
	InvalidInputAudioFile string `json:"InvalidInputAudioFile,omitempty"`
	TTSText               string `json:"TTSText,omitempty"`

	// Input collection attributes.
	MinDigits      int    `json:"MinDigits,omitempty"`
	MaxDigits      int    `json:"MaxDigits,omitempty"`
	Terminator     string `json:"Terminator,omitempty"`
	TimeoutSeconds int    `json:"Timeout,omitempty"`
	Retries        int    `json:"Retries,omitempty"`
	VariableName   string `json:"VariableName,omitempty"`

	// Web API attributes.
	APIEndpoint      string            `json:"APIEndpoint,omitempty"`
	APIURL           string            `json:"APIURL,omitempty"`
	APIMethod        string            `json:"APIMethod,omitempty"`
	APIBody          string            `json:"APIBody,omitempty"`
	ContentType      string            `json:"ContentType,omitempty"`
	ResponseMappings map[string]string `json:"ResponseMappings,omitempty"`

	// Transfer attributes.
	TransferTarget string `json:"TransferTarget,omitempty"`
	QueueName      string `json:"QueueName,omitempty"`

	// Recording attributes.
	RecordingName    string `json:"RecordingName,omitempty"`
	RecordingType    string `json:"RecordingType,omitempty"`
	MaxRecordSeconds int    `json:"MaxRecordSeconds,omitempty"`

	// Conditional-branch attributes (operation 120).
	ConditionVariable string `json:"ConditionVariable,omitempty"`
	ConditionOperator string `json:"ConditionOperator,omitempty"`
	ConditionValue    string `json:"ConditionValue,omitempty"`
}

// Edge links a node to one successor. InputKeys, when set, is the DTMF digit
// string that selects this edge; an edge without keys is linear.
//
// Older flow exports used the field name DTMFInput instead of InputKeys.
// Both are decoded; [Edge.Keys] resolves the effective value.
type Edge struct {
	ChildNodeID int    `json:"ChildNodeId"`
	InputKeys   string `json:"InputKeys,omitempty"`
	DTMFInput   string `json:"DTMFInput,omitempty"`
}

// Keys returns the DTMF key string for this edge, honoring the legacy
// DTMFInput field name, trimmed of surrounding whitespace. An empty result
// marks a linear edge.
func (e Edge) Keys() string {
	if e.InputKeys != "" {
		return strings.TrimSpace(e.InputKeys)
	}
	return strings.TrimSpace(e.DTMFInput)
}

// Decode parses a flow document from raw JSON. It does not validate; call
// [Validate] before publishing the document to callers.
func Decode(data []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("flow: decode document: %w", err)
	}
	return doc, nil
}

// Flow returns the active configuration (the first entry) or nil when the
// document has none.
func (d *Document) Flow() *Configuration {
	if d == nil || len(d.Configurations) == 0 {
		return nil
	}
	return &d.Configurations[0]
}

// NodeByID returns the node with the given ID, or nil when absent.
func (c *Configuration) NodeByID(id int) *Node {
	if c == nil {
		return nil
	}
	for i := range c.ProcessFlow {
		if c.ProcessFlow[i].ID == id {
			return &c.ProcessFlow[i]
		}
	}
	return nil
}

// StartNode returns the node flagged IsStartNode, or nil when none is set.
// [Validate] guarantees at most one exists in a published document.
func (c *Configuration) StartNode() *Node {
	if c == nil {
		return nil
	}
	for i := range c.ProcessFlow {
		if c.ProcessFlow[i].IsStart {
			return &c.ProcessFlow[i]
		}
	}
	return nil
}
