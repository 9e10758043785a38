package errors

import "fmt"

// GatewayError is a structured failure from an external communication
// gateway, classified by an HTTP-like status code. A zero status means
// the request never reached the gateway (network failure).
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gateway unreachable: %s", e.Message)
	}
	return fmt.Sprintf("gateway error %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the failure is worth retrying: network
// failures and 5xx responses are transient, 4xx responses are permanent.
func (e *GatewayError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// IsTemporary reports whether err is a transient gateway failure.
func IsTemporary(err error) bool {
	var gw *GatewayError
	if As(err, &gw) {
		return gw.Temporary()
	}
	return false
}
