package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTokenServer fakes an OAuth2 client-credentials endpoint. fetches counts
// how often a token was actually issued.
func newTokenServer(t *testing.T, fetches *int, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "voxflow" || pass != "s3cret" {
			t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
		}
		*fetches++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
		})
	}))
}

func configured(srv *httptest.Server) *Manager {
	m := New()
	m.Configure(Options{
		TokenURL:     srv.URL,
		ClientID:     "voxflow",
		ClientSecret: "s3cret",
		HTTPClient:   srv.Client(),
	})
	return m
}

func TestAccessTokenFetchesAndCaches(t *testing.T) {
	fetches := 0
	srv := newTokenServer(t, &fetches, 3600)
	defer srv.Close()
	m := configured(srv)

	tok, err := m.AccessToken(context.Background(), false)
	if err != nil {
		t.Fatalf("AccessToken() error: %v", err)
	}
	if tok != "tok-1" {
		t.Errorf("token = %q", tok)
	}

	// Cached: no second round trip.
	if _, err := m.AccessToken(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if fetches != 1 {
		t.Errorf("fetches = %d, want 1", fetches)
	}
	if !m.IsAuthenticated() {
		t.Error("IsAuthenticated() = false with fresh token")
	}

	// Force bypasses the cache.
	if _, err := m.AccessToken(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if fetches != 2 {
		t.Errorf("fetches after force = %d, want 2", fetches)
	}
}

func TestTokenExpiresWithSkew(t *testing.T) {
	fetches := 0
	srv := newTokenServer(t, &fetches, 120)
	defer srv.Close()
	m := configured(srv)

	base := time.Now()
	now := base
	m.now = func() time.Time { return now }

	if _, err := m.AccessToken(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	// 59 seconds before nominal expiry: inside the skew window, refetch.
	now = base.Add(61 * time.Second)
	if _, err := m.AccessToken(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if fetches != 2 {
		t.Errorf("fetches = %d, want refetch inside skew window", fetches)
	}

	// Well within the lifetime: cached.
	now = base.Add(61*time.Second + 10*time.Second)
	if _, err := m.AccessToken(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if fetches != 2 {
		t.Errorf("fetches = %d, want cached token", fetches)
	}
}

func TestAccessTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_client",
			"error_description": "unknown client",
		})
	}))
	defer srv.Close()
	m := configured(srv)

	_, err := m.AccessToken(context.Background(), false)
	var rerr *RejectedError
	if !errors.As(err, &rerr) {
		t.Fatalf("AccessToken() = %v, want RejectedError", err)
	}
	if rerr.Code != "invalid_client" || rerr.Description != "unknown client" {
		t.Errorf("RejectedError = %+v", rerr)
	}
}

func TestAccessTokenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	m := New()
	m.Configure(Options{TokenURL: url, ClientID: "voxflow"})
	_, err := m.AccessToken(context.Background(), false)
	if !errors.Is(err, ErrEndpointUnreachable) {
		t.Fatalf("AccessToken() = %v, want ErrEndpointUnreachable", err)
	}
}

func TestAccessTokenNotConfigured(t *testing.T) {
	m := New()
	if _, err := m.AccessToken(context.Background(), false); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("AccessToken() = %v, want ErrNotConfigured", err)
	}
}

func TestSetAccessTokenStripsQuotes(t *testing.T) {
	m := New()
	m.SetAccessToken(` "quoted-token" `, 0)

	header, err := m.AuthHeader(context.Background())
	if err != nil {
		t.Fatalf("AuthHeader() error: %v", err)
	}
	if header != "Bearer quoted-token" {
		t.Errorf("AuthHeader() = %q", header)
	}
	if !m.IsAuthenticated() {
		t.Error("IsAuthenticated() = false after SetAccessToken")
	}
}

func TestClearToken(t *testing.T) {
	m := New()
	m.SetAccessToken("tok", 3600)
	m.ClearToken()
	if m.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after ClearToken")
	}
}

func TestAuthHeaderVerbatimOverride(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "alt-tok", "expires_in": 60})
	}))
	defer srv.Close()

	m := New()
	m.Configure(Options{
		TokenURL:   srv.URL,
		AuthHeader: "Basic cHJlY29tcHV0ZWQ=",
		HTTPClient: srv.Client(),
	})

	tok, err := m.AccessToken(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Basic cHJlY29tcHV0ZWQ=" {
		t.Errorf("Authorization sent = %q", gotAuth)
	}
	// The alternative "token" field is accepted too.
	if tok != "alt-tok" {
		t.Errorf("token = %q", tok)
	}
}

func TestRecorderSeesFetchOutcomes(t *testing.T) {
	fetches := 0
	good := newTokenServer(t, &fetches, 3600)
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_client"})
	}))
	defer bad.Close()

	var statuses []string
	m := New(WithRecorder(func(status string) { statuses = append(statuses, status) }))
	m.Configure(Options{
		TokenURL:     good.URL,
		ClientID:     "voxflow",
		ClientSecret: "s3cret",
		HTTPClient:   good.Client(),
	})

	if _, err := m.AccessToken(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	// Cache hits never reach the recorder.
	if _, err := m.AccessToken(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	m.Configure(Options{TokenURL: bad.URL, ClientID: "voxflow", HTTPClient: bad.Client()})
	if _, err := m.AccessToken(context.Background(), false); err == nil {
		t.Fatal("AccessToken() succeeded against rejecting endpoint")
	}

	want := []string{"ok", "error"}
	if len(statuses) != len(want) || statuses[0] != want[0] || statuses[1] != want[1] {
		t.Errorf("statuses = %v, want %v", statuses, want)
	}
}
