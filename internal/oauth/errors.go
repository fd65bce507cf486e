// errors.go defines sentinel error values for the repository authorization
// broker, covering state validation, code exchange, and access probing.
package oauth

import "errors"

var (
	// ErrStateInvalidOrExpired covers a callback whose state is unknown,
	// already consumed, or past its TTL. All three look identical to the
	// caller so a replayed state learns nothing.
	ErrStateInvalidOrExpired = errors.New("oauth state is invalid or expired")

	// ErrExchangeFailed indicates the provider rejected the code exchange
	ErrExchangeFailed = errors.New("oauth code exchange failed")

	// ErrUnauthorized indicates the stored token was rejected by the provider.
	// This is terminal; the authorization must be re-established by a user.
	ErrUnauthorized = errors.New("token no longer authorized")

	// ErrUpstreamProbeFailed indicates the probe could not reach a verdict
	// (network failure or provider 5xx), as opposed to a definitive rejection
	ErrUpstreamProbeFailed = errors.New("upstream access probe failed")

	// ErrNoAuthorization indicates no token exists for the repository and no
	// fallback token is configured
	ErrNoAuthorization = errors.New("repository has no authorization")

	// ErrRepositoryNotFound indicates the broker was asked about an unknown repository
	ErrRepositoryNotFound = errors.New("repository not found")
)

// APIError represents an error response from the GitHub API
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new API error
func NewAPIError(statusCode int, message string, err error) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// isUnauthorized reports whether an error is a terminal 401/403 verdict
func isUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
