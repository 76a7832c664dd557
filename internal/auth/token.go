// Package auth acquires and caches OAuth2 client-credentials tokens for the
// outbound web API calls flow nodes make.
//
// One Manager is shared by every call in the process. The critical section
// covers the whole check-expiry → request → install sequence, so concurrent
// callers never observe a half-installed token; at worst two callers racing
// an expired token both fetch, and both installs are valid.
package auth

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// expirySkew is subtracted from the token lifetime so a token is refreshed
// before it can expire mid-request.
const expirySkew = 60 * time.Second

// defaultExpiresIn is assumed when the token endpoint omits expires_in.
const defaultExpiresIn = 3600

// ErrEndpointUnreachable is returned when the token endpoint cannot be
// reached or returns a malformed body.
var ErrEndpointUnreachable = errors.New("auth: token endpoint unreachable")

// ErrNotConfigured is returned when no token URL has been configured.
var ErrNotConfigured = errors.New("auth: token endpoint not configured")

// RejectedError reports that the token endpoint answered with an OAuth2
// error body instead of a token.
type RejectedError struct {
	Code        string
	Description string
}

func (e *RejectedError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("auth: token endpoint rejected request: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("auth: token endpoint rejected request: %s", e.Code)
}

// Options configures a [Manager].
type Options struct {
	// TokenURL is the OAuth2 token endpoint.
	TokenURL string

	// ClientID and ClientSecret form the HTTP Basic Authorization header
	// when AuthHeader is empty.
	ClientID     string
	ClientSecret string

	// Scope is sent with the grant when non-empty.
	Scope string

	// AuthHeader, when set, is attached verbatim as the Authorization header
	// of the token request, overriding Basic auth.
	AuthHeader string

	// InsecureSkipVerify disables TLS verification on the token endpoint.
	InsecureSkipVerify bool

	// HTTPClient overrides the transport, mainly for tests. When nil a
	// client honoring InsecureSkipVerify is built.
	HTTPClient *http.Client
}

// Recorder observes token fetch outcomes; status is "ok" or "error".
type Recorder func(status string)

// Manager caches one client-credentials token process-wide.
type Manager struct {
	mu sync.Mutex

	opts     Options
	client   *http.Client
	recorder Recorder

	accessToken string
	tokenType   string
	expiresAt   time.Time

	// now is stubbed in tests.
	now func() time.Time
}

// Option is a functional option for [New].
type Option func(*Manager)

// WithRecorder installs a callback invoked after every token fetch attempt.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// New creates an unconfigured Manager. Call [Manager.Configure] before
// requesting tokens.
func New(opts ...Option) *Manager {
	m := &Manager{
		tokenType: "Bearer",
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Configure installs the endpoint options and clears any cached token.
func (m *Manager) Configure(opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts = opts
	m.client = opts.HTTPClient
	if m.client == nil {
		transport := &http.Transport{}
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		m.client = &http.Client{Transport: transport, Timeout: 15 * time.Second}
	}
	m.accessToken = ""
	m.expiresAt = time.Time{}
}

// AccessToken returns a valid token, fetching a fresh one when the cache is
// empty, expired (with a 60 second safety skew), or force is set.
func (m *Manager) AccessToken(ctx context.Context, force bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !force && m.validLocked() {
		return m.accessToken, nil
	}
	if err := m.fetchLocked(ctx); err != nil {
		return "", err
	}
	return m.accessToken, nil
}

// AuthHeader returns the ready-to-attach Authorization header value,
// "<type> <token>".
func (m *Manager) AuthHeader(ctx context.Context) (string, error) {
	tok, err := m.AccessToken(ctx, false)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	typ := m.tokenType
	m.mu.Unlock()
	return typ + " " + tok, nil
}

// SetAccessToken installs a token obtained out of band. Surrounding double
// quotes are stripped (some gateways return the token pre-quoted). A
// non-positive expiresIn falls back to the default lifetime.
func (m *Manager) SetAccessToken(token string, expiresIn int) {
	token = strings.Trim(strings.TrimSpace(token), `"`)
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = token
	if m.tokenType == "" {
		m.tokenType = "Bearer"
	}
	m.expiresAt = m.now().Add(time.Duration(expiresIn) * time.Second)
}

// ClearToken drops the cached token so the next request re-authenticates.
func (m *Manager) ClearToken() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = ""
	m.expiresAt = time.Time{}
}

// IsAuthenticated reports whether a currently valid token is cached.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validLocked()
}

// Authenticate forces a fresh token fetch, replacing any cached token.
func (m *Manager) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchLocked(ctx)
}

// validLocked implements the freshness rule: a token is usable only while
// expiresAt minus the skew is still in the future.
func (m *Manager) validLocked() bool {
	return m.accessToken != "" && m.now().Before(m.expiresAt.Add(-expirySkew))
}

// tokenResponse is the union of the success and error bodies the endpoint
// may return.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`

	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// fetchLocked performs one token fetch and reports the outcome to the
// recorder. The caller holds mu.
func (m *Manager) fetchLocked(ctx context.Context) error {
	err := m.fetchTokenLocked(ctx)
	if m.recorder != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.recorder(status)
	}
	return err
}

func (m *Manager) fetchTokenLocked(ctx context.Context) error {
	if m.opts.TokenURL == "" {
		return ErrNotConfigured
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if m.opts.Scope != "" {
		form.Set("scope", m.opts.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.opts.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEndpointUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	switch {
	case m.opts.AuthHeader != "":
		req.Header.Set("Authorization", m.opts.AuthHeader)
	case m.opts.ClientID != "":
		req.SetBasicAuth(m.opts.ClientID, m.opts.ClientSecret)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEndpointUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrEndpointUnreachable, err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("%w: decode body: %v", ErrEndpointUnreachable, err)
	}
	if tr.ErrorCode != "" {
		return &RejectedError{Code: tr.ErrorCode, Description: tr.ErrorDescription}
	}

	token := tr.AccessToken
	if token == "" {
		token = tr.Token
	}
	if token == "" {
		return &RejectedError{Code: "invalid_response", Description: "no access_token in response"}
	}

	m.accessToken = strings.Trim(token, `"`)
	m.tokenType = tr.TokenType
	if m.tokenType == "" {
		m.tokenType = "Bearer"
	}
	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	m.expiresAt = m.now().Add(time.Duration(expiresIn) * time.Second)
	return nil
}
