package authclient

import "fmt"

// APIError is a failure the server reported. Status and code let callers
// branch (e.g. stay on the login form vs. navigate).
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return fmt.Sprintf("request failed with status %d", e.Status)
}

// NetworkError is a transport-level failure (connection refused, timeout).
// Kept distinct from APIError so callers never mistake an outage for bad
// credentials.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
