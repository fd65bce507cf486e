package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/corebase/corebase/internal/config"
)

func newTestClient(authURL, apiURL string) *Client {
	return NewClient(config.GitHubConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://corebase.example.com/callback",
		AuthBaseURL:  authURL,
		APIBaseURL:   apiURL,
	})
}

// ---------------------------------------------------------------------------
// AuthCodeURL
// ---------------------------------------------------------------------------

func TestAuthCodeURL_CarriesState(t *testing.T) {
	client := newTestClient("https://github.example.com", "")

	url := client.AuthCodeURL("state-abc")
	if url == "" {
		t.Fatal("AuthCodeURL() returned empty string")
	}
	for _, want := range []string{"state=state-abc", "client_id=client-id", "https://github.example.com/login/oauth/authorize"} {
		if !strings.Contains(url, want) {
			t.Errorf("AuthCodeURL() = %q, missing %q", url, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Exchange
// ---------------------------------------------------------------------------

func TestExchange_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login/oauth/access_token" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_token","token_type":"bearer","scope":"repo,read:user"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "")
	token, err := client.Exchange(context.Background(), "code-abc")
	if err != nil {
		t.Fatalf("Exchange() error: %v", err)
	}
	if token.AccessToken != "gho_token" {
		t.Errorf("AccessToken = %q", token.AccessToken)
	}
	if token.Scopes != "repo,read:user" {
		t.Errorf("Scopes = %q", token.Scopes)
	}
}

func TestExchange_ProviderRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "")
	if _, err := client.Exchange(context.Background(), "bad-code"); !errors.Is(err, ErrExchangeFailed) {
		t.Errorf("err = %v, want ErrExchangeFailed", err)
	}
}

func TestExchange_TransientFailureRetriedOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_token","token_type":"bearer","scope":"repo"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "")
	token, err := client.Exchange(context.Background(), "code-abc")
	if err != nil {
		t.Fatalf("Exchange() error after retry: %v", err)
	}
	if token.AccessToken != "gho_token" {
		t.Errorf("AccessToken = %q", token.AccessToken)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", got)
	}
}

func TestExchange_RejectedCodeNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "")
	_, err := client.Exchange(context.Background(), "bad-code")
	if !errors.Is(err, ErrExchangeFailed) {
		t.Fatalf("err = %v, want ErrExchangeFailed", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want exactly 1 (a rejected code must not be retried)", got)
	}
}

// ---------------------------------------------------------------------------
// Probe
// ---------------------------------------------------------------------------

func TestProbe_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/repos/corebase/console" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-OAuth-Scopes", "repo")
		w.Write([]byte(`{"full_name":"corebase/console"}`))
	}))
	defer srv.Close()

	client := newTestClient("", srv.URL)
	result, err := client.Probe(context.Background(), "gho_token", "corebase", "console")
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if result.Scopes != "repo" {
		t.Errorf("Scopes = %q, want repo", result.Scopes)
	}
}

func TestProbe_UnauthorizedIsTerminalAndNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient("", srv.URL)
	_, err := client.Probe(context.Background(), "gho_dead", "corebase", "console")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want exactly 1 (401 must never be retried)", got)
	}
}

func TestProbe_ForbiddenIsTerminal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient("", srv.URL)
	_, err := client.Probe(context.Background(), "gho_token", "corebase", "console")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want exactly 1", got)
	}
}

func TestProbe_TransientFailureRetriedOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("X-OAuth-Scopes", "repo")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient("", srv.URL)
	result, err := client.Probe(context.Background(), "gho_token", "corebase", "console")
	if err != nil {
		t.Fatalf("Probe() error after retry: %v", err)
	}
	if result.Scopes != "repo" {
		t.Errorf("Scopes = %q", result.Scopes)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", got)
	}
}

func TestProbe_PersistentUpstreamFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient("", srv.URL)
	_, err := client.Probe(context.Background(), "gho_token", "corebase", "console")
	if !errors.Is(err, ErrUpstreamProbeFailed) {
		t.Fatalf("err = %v, want ErrUpstreamProbeFailed", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2 (retried exactly once)", got)
	}
}
