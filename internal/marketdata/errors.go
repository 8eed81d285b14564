package marketdata

import (
	"fmt"
	"net/http"
)

// RemoteFetchError reports a failed market data request: a non-2xx response
// (StatusCode set) or a transport failure (Err set, StatusCode zero).
type RemoteFetchError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteFetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the request may succeed.
func (e *RemoteFetchError) Temporary() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
