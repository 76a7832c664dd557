package flow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Endpoint describes one named web API target from the endpoint catalog.
type Endpoint struct {
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers,omitempty"`
	TimeoutMs    int               `json:"timeout,omitempty"`
	AuthRequired bool              `json:"auth_required,omitempty"`
}

// EndpointCatalog maps endpoint names to their targets. The catalog file
// wraps the mapping in a top-level "result" object.
type EndpointCatalog struct {
	Result map[string]Endpoint `json:"result"`
}

// DecodeEndpoints parses an endpoint catalog from raw JSON. A catalog
// without a "result" object is rejected.
func DecodeEndpoints(data []byte) (*EndpointCatalog, error) {
	// Distinguish "result missing" from "result empty": decode the envelope
	// first so a stray document shape fails loudly.
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("flow: decode endpoint catalog: %w", err)
	}
	raw, ok := envelope["result"]
	if !ok {
		return nil, fmt.Errorf("flow: endpoint catalog has no %q object", "result")
	}
	cat := &EndpointCatalog{}
	if err := json.Unmarshal(raw, &cat.Result); err != nil {
		return nil, fmt.Errorf("flow: decode endpoint catalog result: %w", err)
	}
	return cat, nil
}

// Lookup returns the endpoint registered under name.
func (c *EndpointCatalog) Lookup(name string) (Endpoint, bool) {
	if c == nil {
		return Endpoint{}, false
	}
	ep, ok := c.Result[name]
	return ep, ok
}

// ExtensionMap maps logical extension IDs to dial targets. Entries may be
// plain strings or objects carrying an "Extension" field; the map is
// otherwise opaque to the interpreter.
type ExtensionMap map[string]json.RawMessage

// DecodeExtensions parses an extension map. An empty map is valid.
func DecodeExtensions(data []byte) (ExtensionMap, error) {
	m := ExtensionMap{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("flow: decode extension map: %w", err)
	}
	return m, nil
}

// Dial returns the dial string for the given extension ID. String entries
// are returned as-is; object entries are searched for an "Extension" (or
// lowercase "extension") field.
func (m ExtensionMap) Dial(id string) (string, bool) {
	raw, ok := m[id]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), s != ""
	}
	var obj map[string]string
	if err := json.Unmarshal(raw, &obj); err == nil {
		if v, ok := obj["Extension"]; ok {
			return strings.TrimSpace(v), v != ""
		}
		if v, ok := obj["extension"]; ok {
			return strings.TrimSpace(v), v != ""
		}
	}
	return "", false
}

// RecordingOptions tunes a record-with-options node (operation 341).
type RecordingOptions struct {
	Beep             bool `json:"beep,omitempty"`
	MaxSeconds       int  `json:"max_seconds,omitempty"`
	SilenceThreshold int  `json:"silence_threshold,omitempty"`
	SilenceSeconds   int  `json:"silence_seconds,omitempty"`
}

// RecordingTypeMap maps recording type names to their options. Structure is
// opaque to the configuration store; only the recording handler interprets
// entries.
type RecordingTypeMap map[string]json.RawMessage

// DecodeRecordingTypes parses a recording type map.
func DecodeRecordingTypes(data []byte) (RecordingTypeMap, error) {
	m := RecordingTypeMap{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("flow: decode recording type map: %w", err)
	}
	return m, nil
}

// Options returns the decoded options for the given recording type, or false
// when the type is unknown or malformed.
func (m RecordingTypeMap) Options(name string) (RecordingOptions, bool) {
	raw, ok := m[name]
	if !ok {
		return RecordingOptions{}, false
	}
	var opts RecordingOptions
	if err := json.Unmarshal(raw, &opts); err != nil {
		return RecordingOptions{}, false
	}
	return opts, true
}
