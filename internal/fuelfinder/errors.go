package fuelfinder

import "fmt"

// AuthError indicates the OAuth token exchange was rejected. It is never
// retried beyond the single refresh that follows a 401.
type AuthError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("oauth token request failed (%d): %s", e.StatusCode, e.Body)
}

// APIError indicates a transport or server failure talking to the provider.
// Retryable failures carry the last observed status and body after the retry
// budget is exhausted.
type APIError struct {
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		if e.StatusCode != 0 {
			return fmt.Sprintf("api request failed (%d): %v", e.StatusCode, e.Err)
		}
		return fmt.Sprintf("api request failed: %v", e.Err)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.StatusCode, e.Body)
}

// Unwrap returns the underlying cause, if any.
func (e *APIError) Unwrap() error {
	return e.Err
}
