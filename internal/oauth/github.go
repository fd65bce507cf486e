// github.go implements the GitHub side of the broker: the OAuth authorize URL,
// the code exchange, and the minimal access probe. All outbound calls carry a
// bounded timeout and respect request cancellation.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/corebase/corebase/internal/config"
)

const (
	defaultAuthBaseURL = "https://github.com"
	defaultAPIBaseURL  = "https://api.github.com"

	// externalCallTimeout bounds each outbound GitHub call
	externalCallTimeout = 10 * time.Second
)

// Token is an access token returned by the code exchange
type Token struct {
	AccessToken string
	TokenType   string
	Scopes      string
}

// ProbeResult is the outcome of a successful access probe
type ProbeResult struct {
	// Scopes as reported by the X-OAuth-Scopes response header
	Scopes string
}

// GitHubClient is the provider surface the broker drives. Tests substitute a
// fake; production uses Client.
type GitHubClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Token, error)
	Probe(ctx context.Context, accessToken, owner, repo string) (*ProbeResult, error)
}

// Client talks to GitHub using an OAuth app's credentials.
type Client struct {
	oauthConfig *oauth2.Config
	apiBaseURL  string
	httpClient  *http.Client
}

// NewClient builds a GitHub client from configuration
func NewClient(cfg config.GitHubConfig) *Client {
	authBase := cfg.AuthBaseURL
	if authBase == "" {
		authBase = defaultAuthBaseURL
	}
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = defaultAPIBaseURL
	}

	return &Client{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"repo"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  authBase + "/login/oauth/authorize",
				TokenURL: authBase + "/login/oauth/access_token",
			},
		},
		apiBaseURL: strings.TrimSuffix(apiBase, "/"),
		httpClient: &http.Client{Timeout: externalCallTimeout},
	}
}

// AuthCodeURL returns the provider URL the user's browser is redirected to
func (c *Client) AuthCodeURL(state string) string {
	return c.oauthConfig.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token. Provider
// rejections of the code are terminal; transient failures are retried
// exactly once, matching Probe.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	tok, err := c.exchangeOnce(ctx, code)
	if err != nil && isTransientExchange(err) {
		tok, err = c.exchangeOnce(ctx, code)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	scopes, _ := tok.Extra("scope").(string)
	return &Token{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Scopes:      scopes,
	}, nil
}

func (c *Client) exchangeOnce(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return c.oauthConfig.Exchange(ctx, code)
}

// isTransientExchange reports whether a raw code-exchange error may resolve
// on a single retry. A 4xx from the token endpoint means the code or the app
// credentials are bad and retrying cannot help.
func isTransientExchange(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Probe performs a minimal authenticated read of the repository. A 401/403
// is terminal (ErrUnauthorized) and is never retried; transient failures are
// retried exactly once.
func (c *Client) Probe(ctx context.Context, accessToken, owner, repo string) (*ProbeResult, error) {
	result, err := c.probeOnce(ctx, accessToken, owner, repo)
	if err != nil && isTransient(err) {
		result, err = c.probeOnce(ctx, accessToken, owner, repo)
	}
	return result, err
}

func (c *Client) probeOnce(ctx context.Context, accessToken, owner, repo string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/repos/%s/%s", c.apiBaseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("oauth: create probe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamProbeFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return &ProbeResult{Scopes: resp.Header.Get("X-OAuth-Scopes")}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, NewAPIError(resp.StatusCode, "probe rejected", nil))
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewAPIError(resp.StatusCode, "repository not visible to token", nil)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %v", ErrUpstreamProbeFailed, NewAPIError(resp.StatusCode, "provider error", nil))
	default:
		return nil, NewAPIError(resp.StatusCode, "unexpected probe response", nil)
	}
}

// isTransient reports whether an error may resolve on a single retry.
// Authorization rejections are never transient.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthorized) {
		return false
	}
	if errors.Is(err, ErrUpstreamProbeFailed) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
