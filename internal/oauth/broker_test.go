package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corebase/corebase/internal/crypto"
	"github.com/corebase/corebase/internal/db/models"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeStorage struct {
	repos  map[int64]*models.Repository
	states map[string]*models.OAuthState
	auths  map[int64]*models.RepositoryAuthorization
	err    error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		repos:  make(map[int64]*models.Repository),
		states: make(map[string]*models.OAuthState),
		auths:  make(map[int64]*models.RepositoryAuthorization),
	}
}

func (f *fakeStorage) GetRepository(_ context.Context, id int64) (*models.Repository, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.repos[id], nil
}

func (f *fakeStorage) CreateState(_ context.Context, s *models.OAuthState) error {
	if f.err != nil {
		return f.err
	}
	f.states[s.State] = s
	return nil
}

func (f *fakeStorage) ConsumeState(_ context.Context, state string) (*models.OAuthState, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.states[state]
	if !ok {
		return nil, nil
	}
	delete(f.states, state)
	return s, nil
}

func (f *fakeStorage) SaveAuthorization(_ context.Context, a *models.RepositoryAuthorization) error {
	if f.err != nil {
		return f.err
	}
	a.AuthorizedAt = time.Now()
	f.auths[a.RepositoryID] = a
	return nil
}

func (f *fakeStorage) GetAuthorization(_ context.Context, repositoryID int64) (*models.RepositoryAuthorization, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.auths[repositoryID], nil
}

func (f *fakeStorage) DeleteAuthorization(_ context.Context, repositoryID int64) error {
	if f.err != nil {
		return f.err
	}
	delete(f.auths, repositoryID)
	return nil
}

type fakeClient struct {
	exchangeToken *Token
	exchangeErr   error
	probeResult   *ProbeResult
	probeErr      error
	probeCalls    int
	probedTokens  []string
}

func (f *fakeClient) AuthCodeURL(state string) string {
	return "https://github.com/login/oauth/authorize?state=" + state
}

func (f *fakeClient) Exchange(_ context.Context, code string) (*Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchangeToken, nil
}

func (f *fakeClient) Probe(_ context.Context, accessToken, owner, repo string) (*ProbeResult, error) {
	f.probeCalls++
	f.probedTokens = append(f.probedTokens, accessToken)
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return f.probeResult, nil
}

func testCipher(t *testing.T) *crypto.TokenCipher {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	cipher, err := crypto.NewTokenCipher(key)
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}
	return cipher
}

func newTestBroker(t *testing.T, storage *fakeStorage, client *fakeClient, fallbackToken string) *Broker {
	t.Helper()
	return NewBroker(storage, client, testCipher(t), fallbackToken, nil)
}

// ---------------------------------------------------------------------------
// Authorize
// ---------------------------------------------------------------------------

func TestAuthorize_IssuesSingleUseState(t *testing.T) {
	storage := newFakeStorage()
	storage.repos[7] = &models.Repository{ID: 7, Owner: "corebase", Name: "console"}
	broker := newTestBroker(t, storage, &fakeClient{}, "")

	url, err := broker.Authorize(context.Background(), 7, "user-1")
	if err != nil {
		t.Fatalf("Authorize() error: %v", err)
	}
	if url == "" {
		t.Fatal("Authorize() returned empty redirect URL")
	}

	if len(storage.states) != 1 {
		t.Fatalf("states persisted = %d, want 1", len(storage.states))
	}
	for _, s := range storage.states {
		if s.RepositoryID != 7 || s.UserID != "user-1" {
			t.Errorf("state = %+v", s)
		}
		ttl := time.Until(s.ExpiresAt)
		if ttl < 9*time.Minute || ttl > 11*time.Minute {
			t.Errorf("state TTL = %v, want ~10m", ttl)
		}
	}
}

func TestAuthorize_UnknownRepository(t *testing.T) {
	broker := newTestBroker(t, newFakeStorage(), &fakeClient{}, "")

	if _, err := broker.Authorize(context.Background(), 99, "user-1"); !errors.Is(err, ErrRepositoryNotFound) {
		t.Errorf("err = %v, want ErrRepositoryNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// HandleCallback
// ---------------------------------------------------------------------------

func TestHandleCallback_PersistsSealedToken(t *testing.T) {
	storage := newFakeStorage()
	storage.repos[7] = &models.Repository{ID: 7, Owner: "corebase", Name: "console"}
	client := &fakeClient{exchangeToken: &Token{AccessToken: "gho_secret", Scopes: "repo"}}
	broker := newTestBroker(t, storage, client, "")

	if _, err := broker.Authorize(context.Background(), 7, "user-1"); err != nil {
		t.Fatalf("Authorize() error: %v", err)
	}
	var state string
	for s := range storage.states {
		state = s
	}

	repo, err := broker.HandleCallback(context.Background(), "code-abc", state)
	if err != nil {
		t.Fatalf("HandleCallback() error: %v", err)
	}
	if repo.ID != 7 {
		t.Errorf("repo.ID = %d, want 7", repo.ID)
	}

	auth := storage.auths[7]
	if auth == nil {
		t.Fatal("authorization was not persisted")
	}
	if auth.AccessTokenEncrypted == "gho_secret" {
		t.Error("access token must be sealed before persistence")
	}
	if auth.TokenScopes != "repo" {
		t.Errorf("TokenScopes = %q", auth.TokenScopes)
	}
	if auth.AuthorizedBy == nil || *auth.AuthorizedBy != "user-1" {
		t.Errorf("AuthorizedBy = %v, want user-1", auth.AuthorizedBy)
	}
}

func TestHandleCallback_ReplayFails(t *testing.T) {
	storage := newFakeStorage()
	storage.repos[7] = &models.Repository{ID: 7, Owner: "corebase", Name: "console"}
	client := &fakeClient{exchangeToken: &Token{AccessToken: "gho_secret"}}
	broker := newTestBroker(t, storage, client, "")

	if _, err := broker.Authorize(context.Background(), 7, "user-1"); err != nil {
		t.Fatalf("Authorize() error: %v", err)
	}
	var state string
	for s := range storage.states {
		state = s
	}

	if _, err := broker.HandleCallback(context.Background(), "code-abc", state); err != nil {
		t.Fatalf("first callback error: %v", err)
	}

	// Second use of the same state must fail
	if _, err := broker.HandleCallback(context.Background(), "code-abc", state); !errors.Is(err, ErrStateInvalidOrExpired) {
		t.Errorf("replay err = %v, want ErrStateInvalidOrExpired", err)
	}
}

func TestHandleCallback_ExpiredState(t *testing.T) {
	storage := newFakeStorage()
	storage.repos[7] = &models.Repository{ID: 7, Owner: "corebase", Name: "console"}
	storage.states["stale"] = &models.OAuthState{
		State:        "stale",
		RepositoryID: 7,
		UserID:       "user-1",
		IssuedAt:     time.Now().Add(-time.Hour),
		ExpiresAt:    time.Now().Add(-50 * time.Minute),
	}
	broker := newTestBroker(t, storage, &fakeClient{}, "")

	if _, err := broker.HandleCallback(context.Background(), "code-abc", "stale"); !errors.Is(err, ErrStateInvalidOrExpired) {
		t.Errorf("err = %v, want ErrStateInvalidOrExpired", err)
	}
}

func TestHandleCallback_UnknownState(t *testing.T) {
	broker := newTestBroker(t, newFakeStorage(), &fakeClient{}, "")

	if _, err := broker.HandleCallback(context.Background(), "code-abc", "never-issued"); !errors.Is(err, ErrStateInvalidOrExpired) {
		t.Errorf("err = %v, want ErrStateInvalidOrExpired", err)
	}
}

func TestHandleCallback_ExchangeFailure(t *testing.T) {
	storage := newFakeStorage()
	storage.repos[7] = &models.Repository{ID: 7, Owner: "corebase", Name: "console"}
	client := &fakeClient{exchangeErr: ErrExchangeFailed}
	broker := newTestBroker(t, storage, client, "")

	if _, err := broker.Authorize(context.Background(), 7, "user-1"); err != nil {
		t.Fatalf("Authorize() error: %v", err)
	}
	var state string
	for s := range storage.states {
		state = s
	}

	if _, err := broker.HandleCallback(context.Background(), "bad-code", state); !errors.Is(err, ErrExchangeFailed) {
		t.Errorf("err = %v, want ErrExchangeFailed", err)
	}
	if storage.auths[7] != nil {
		t.Error("failed exchange must not persist an authorization")
	}
}

// ---------------------------------------------------------------------------
// TestAccess
// ---------------------------------------------------------------------------

func seedAuthorization(t *testing.T, broker *Broker, storage *fakeStorage, repositoryID int64, token string) {
	t.Helper()
	sealed, err := broker.cipher.Seal(token)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	by := "user-1"
	storage.auths[repositoryID] = &models.RepositoryAuthorization{
		RepositoryID:         repositoryID,
		AccessTokenEncrypted: sealed,
		TokenScopes:          "repo",
		AuthorizedBy:         &by,
		AuthorizedAt:         time.Now(),
	}
}

func TestTestAccess_StoredTokenOK(t *testing.T) {
	storage := newFakeStorage()
	storage.repos[7] = &models.Repository{ID: 7, Owner: "corebase", Name: "console"}
	client := &fakeClient{probeResult: &ProbeResult{Scopes: "repo"}}
	broker := newTestBroker(t, storage, client, "")
	seedAuthorization(t, broker, storage, 7, "gho_secret")

	status, err := broker.TestAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("TestAccess() error: %v", err)
	}
	if !status.Authorized || status.FallbackSourced {
		t.Errorf("status = %+v, want authorized, not fallback-sourced", status)
	}
	if status.AuthorizedBy == nil || *status.AuthorizedBy != "user-1" {
		t.Errorf("AuthorizedBy = %v", status.AuthorizedBy)
	}
	if client.probedTokens[0] != "gho_secret" {
		t.Error("probe must use the unsealed stored token")
	}
}

func TestTestAccess_UnauthorizedClearsAuthorization(t *testing.T) {
	storage := newFakeStorage()
	storage.repos[7] = &models.Repository{ID: 7, Owner: "corebase", Name: "console"}
	client := &fakeClient{probeErr: ErrUnauthorized}
	broker := newTestBroker(t, storage, client, "")
	seedAuthorization(t, broker, storage, 7, "gho_dead")

	_, err := broker.TestAccess(context.Background(), 7)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if storage.auths[7] != nil {
		t.Error("401/403 probe must clear the stored authorization")
	}
}

func TestTestAccess_UpstreamErrorKeepsAuthorization(t *testing.T) {
	storage := newFakeStorage()
	storage.repos[7] = &models.Repository{ID: 7, Owner: "corebase", Name: "console"}
	client := &fakeClient{probeErr: ErrUpstreamProbeFailed}
	broker := newTestBroker(t, storage, client, "")
	seedAuthorization(t, broker, storage, 7, "gho_secret")

	_, err := broker.TestAccess(context.Background(), 7)
	if !errors.Is(err, ErrUpstreamProbeFailed) {
		t.Fatalf("err = %v, want ErrUpstreamProbeFailed", err)
	}
	if storage.auths[7] == nil {
		t.Error("a transient probe failure must not clear the authorization")
	}
}

func TestTestAccess_FallbackSourced(t *testing.T) {
	storage := newFakeStorage()
	storage.repos[7] = &models.Repository{ID: 7, Owner: "corebase", Name: "console"}
	client := &fakeClient{probeResult: &ProbeResult{Scopes: "repo"}}
	broker := newTestBroker(t, storage, client, "ghp_fallback")

	status, err := broker.TestAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("TestAccess() error: %v", err)
	}
	if !status.Authorized || !status.FallbackSourced {
		t.Errorf("status = %+v, want authorized and fallback-sourced", status)
	}
	if client.probedTokens[0] != "ghp_fallback" {
		t.Error("probe must use the fallback token when no authorization exists")
	}
}

func TestTestAccess_NoAuthorizationNoFallback(t *testing.T) {
	storage := newFakeStorage()
	storage.repos[7] = &models.Repository{ID: 7, Owner: "corebase", Name: "console"}
	broker := newTestBroker(t, storage, &fakeClient{}, "")

	if _, err := broker.TestAccess(context.Background(), 7); !errors.Is(err, ErrNoAuthorization) {
		t.Errorf("err = %v, want ErrNoAuthorization", err)
	}
}

func TestTestAccess_UnknownRepository(t *testing.T) {
	broker := newTestBroker(t, newFakeStorage(), &fakeClient{}, "")

	if _, err := broker.TestAccess(context.Background(), 99); !errors.Is(err, ErrRepositoryNotFound) {
		t.Errorf("err = %v, want ErrRepositoryNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// SetToken
// ---------------------------------------------------------------------------

func TestSetToken_ProbesThenPersistsSealed(t *testing.T) {
	storage := newFakeStorage()
	storage.repos[7] = &models.Repository{ID: 7, Owner: "corebase", Name: "console"}
	client := &fakeClient{probeResult: &ProbeResult{Scopes: "repo"}}
	broker := newTestBroker(t, storage, client, "")

	status, err := broker.SetToken(context.Background(), 7, "ghp_manual", "user-2")
	if err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}
	if !status.Authorized || status.Scopes != "repo" {
		t.Errorf("status = %+v, want authorized with repo scope", status)
	}
	if client.probedTokens[0] != "ghp_manual" {
		t.Error("probe must use the supplied token")
	}

	auth := storage.auths[7]
	if auth == nil {
		t.Fatal("authorization was not persisted")
	}
	if auth.AccessTokenEncrypted == "ghp_manual" {
		t.Error("access token must be sealed before persistence")
	}
	if auth.AuthorizedBy == nil || *auth.AuthorizedBy != "user-2" {
		t.Errorf("AuthorizedBy = %v, want user-2", auth.AuthorizedBy)
	}
}

func TestSetToken_RejectedTokenNotStored(t *testing.T) {
	storage := newFakeStorage()
	storage.repos[7] = &models.Repository{ID: 7, Owner: "corebase", Name: "console"}
	client := &fakeClient{probeErr: ErrUnauthorized}
	broker := newTestBroker(t, storage, client, "")

	if _, err := broker.SetToken(context.Background(), 7, "ghp_dead", "user-2"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if storage.auths[7] != nil {
		t.Error("rejected token must not be persisted")
	}
}

func TestSetToken_UpstreamFailure(t *testing.T) {
	storage := newFakeStorage()
	storage.repos[7] = &models.Repository{ID: 7, Owner: "corebase", Name: "console"}
	client := &fakeClient{probeErr: ErrUpstreamProbeFailed}
	broker := newTestBroker(t, storage, client, "")

	if _, err := broker.SetToken(context.Background(), 7, "ghp_maybe", "user-2"); !errors.Is(err, ErrUpstreamProbeFailed) {
		t.Errorf("err = %v, want ErrUpstreamProbeFailed", err)
	}
	if storage.auths[7] != nil {
		t.Error("an unverified token must not be persisted")
	}
}

func TestSetToken_UnknownRepository(t *testing.T) {
	broker := newTestBroker(t, newFakeStorage(), &fakeClient{}, "")

	if _, err := broker.SetToken(context.Background(), 99, "ghp_manual", "user-2"); !errors.Is(err, ErrRepositoryNotFound) {
		t.Errorf("err = %v, want ErrRepositoryNotFound", err)
	}
}
