package httputil

import (
	"net/http"
	"time"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// NewClient creates an HTTP client with the given timeout and User-Agent.
// A non-positive timeout selects DefaultTimeout.
func NewClient(timeout time.Duration, userAgent string) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &uaTransport{base: http.DefaultTransport, ua: userAgent},
	}
}

type uaTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.ua == "" || req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.ua)
	return t.base.RoundTrip(req)
}

// Transient reports whether err is a fetch failure worth retrying:
// connection errors, timeouts, 429 and 5xx responses.
func Transient(err error) bool {
	if !bulkerr.IsFetch(err) {
		return false
	}
	switch status := bulkerr.StatusOf(err); {
	case status == 0, status == http.StatusTooManyRequests, status >= 500:
		return true
	}
	return false
}
