package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/voxflow/voxflow/internal/dispatch"
	"github.com/voxflow/voxflow/internal/validate"
	"github.com/voxflow/voxflow/pkg/flow"
)

// defaultAPITimeout bounds a web API request when the endpoint catalog
// carries no timeout.
const defaultAPITimeout = 10 * time.Second

// errorEdgeKey is the InputKeys label of the edge taken when an API node
// fails; flows without one fall through to invalid-input handling.
const errorEdgeKey = "error"

// API handles the outbound web API opcodes: GET (111) and POST (112).
//
// The target is resolved against the endpoint catalog by name, falling back
// to the node's literal URL. Bodies are rendered from the node's template
// with ${var} session substitution; selected response fields persist back
// into session variables.
type API struct {
	deps Deps
	log  *slog.Logger
}

// NewAPI creates the api family handler.
func NewAPI(deps Deps) *API {
	return &API{deps: deps, log: deps.logger(flow.FamilyAPI)}
}

// Execute implements [dispatch.Family].
func (h *API) Execute(ctx context.Context, env *dispatch.Env, op flow.Opcode, node *flow.Node) error {
	if err := env.Session.EnsureAnswered(); err != nil {
		return err
	}

	endpointName, endpoint, ok := h.resolve(node)
	if !ok {
		h.log.Error("no endpoint or URL", "node", node.ID, "endpoint", node.APIEndpoint)
		return h.fail(ctx, env, node)
	}

	method := h.method(op, node, endpoint)
	start := time.Now()
	status, body, err := h.request(ctx, env, node, method, endpoint)
	elapsed := time.Since(start)

	if err != nil {
		h.deps.Metrics.RecordAPIRequest(ctx, endpointName, "error", elapsed)
		h.log.Error("api request failed", "node", node.ID, "endpoint", endpointName, "err", err)
		return h.fail(ctx, env, node)
	}

	_ = env.Session.SetAny("api_status_code", status)
	if status < 200 || status > 299 {
		h.deps.Metrics.RecordAPIRequest(ctx, endpointName, fmt.Sprint(status), elapsed)
		h.log.Warn("api returned non-2xx", "node", node.ID, "endpoint", endpointName, "status", status)
		return h.fail(ctx, env, node)
	}
	h.deps.Metrics.RecordAPIRequest(ctx, endpointName, "ok", elapsed)

	h.persist(env, node, body)
	return nil
}

// resolve finds the request target: catalog entry by endpoint name, else
// the node's literal URL.
func (h *API) resolve(node *flow.Node) (string, flow.Endpoint, bool) {
	if node.APIEndpoint != "" {
		if ep, ok := h.deps.Store.Endpoints().Lookup(node.APIEndpoint); ok {
			return node.APIEndpoint, ep, true
		}
		h.log.Warn("endpoint not in catalog", "endpoint", node.APIEndpoint)
	}
	if node.APIURL != "" {
		if !validate.URL(node.APIURL) {
			h.log.Error("literal URL is not absolute http(s)", "node", node.ID, "url", node.APIURL)
			return "", flow.Endpoint{}, false
		}
		return "literal", flow.Endpoint{URL: node.APIURL, Method: node.APIMethod}, true
	}
	return "", flow.Endpoint{}, false
}

func (h *API) method(op flow.Opcode, node *flow.Node, ep flow.Endpoint) string {
	if node.APIMethod != "" {
		return strings.ToUpper(node.APIMethod)
	}
	if ep.Method != "" {
		return strings.ToUpper(ep.Method)
	}
	if op == flow.OpHTTPPost {
		return http.MethodPost
	}
	return http.MethodGet
}

// request performs the HTTP round trip and returns the status code and
// decoded body.
func (h *API) request(ctx context.Context, env *dispatch.Env, node *flow.Node, method string, ep flow.Endpoint) (int, map[string]any, error) {
	timeout := defaultAPITimeout
	if ep.TimeoutMs > 0 {
		timeout = time.Duration(ep.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := expandVars(ep.URL, env)
	rendered := expandVars(node.APIBody, env)
	contentType := node.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	var reqBody io.Reader
	if method != http.MethodGet && rendered != "" {
		reqBody = strings.NewReader(rendered)
	}
	if method == http.MethodGet && rendered != "" {
		// GET templates carry a pre-encoded query string.
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + rendered
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if ep.AuthRequired {
		header, err := h.deps.Auth.AuthHeader(ctx)
		if err != nil {
			return 0, nil, fmt.Errorf("authorize: %w", err)
		}
		req.Header.Set("Authorization", header)
	}

	resp, err := h.deps.httpClient().Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}

	var parsed map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			// Non-JSON bodies are kept verbatim under a reserved key.
			parsed = map[string]any{"raw": string(raw)}
		}
	}
	return resp.StatusCode, parsed, nil
}

// persist stores mapped response fields into session variables. The mapping
// is session variable → dotted response path.
func (h *API) persist(env *dispatch.Env, node *flow.Node, body map[string]any) {
	for varName, fieldPath := range node.ResponseMappings {
		value, ok := lookupPath(body, fieldPath)
		if !ok {
			h.log.Warn("response field missing", "node", node.ID, "field", fieldPath)
			continue
		}
		if err := env.Session.SetAny(varName, value); err != nil {
			h.log.Error("persist response field failed", "node", node.ID, "var", varName, "err", err)
		}
	}
}

// fail routes the node's error edge when one is defined, else falls through
// to invalid-input handling. RouteDigits implements exactly that order.
func (h *API) fail(ctx context.Context, env *dispatch.Env, node *flow.Node) error {
	return env.Nav.RouteDigits(ctx, errorEdgeKey, node)
}

// lookupPath walks a dotted path through nested JSON objects.
func lookupPath(body map[string]any, path string) (any, bool) {
	if body == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = body
	for _, p := range parts {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
