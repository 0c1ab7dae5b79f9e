package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/bulkstat/pkg/observability"
)

// Transport performs raw HTTP transfers.
//
// err is reserved for transport-level failures. A response with any status is
// returned with a nil error; the session decides what counts as success.
type Transport interface {
	Get(ctx context.Context, url string) (status int, body []byte, err error)
	Head(ctx context.Context, url string) (status int, err error)
}

// HTTPTransport implements Transport over an *http.Client.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps client. A nil client uses http.DefaultClient.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client}
}

// Get performs a GET and reads the whole body.
func (t *HTTPTransport) Get(ctx context.Context, rawURL string) (int, []byte, error) {
	resp, err := t.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// Head performs a HEAD request.
func (t *HTTPTransport) Head(ctx context.Context, rawURL string) (int, error) {
	resp, err := t.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (t *HTTPTransport) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}

	host, path := splitURL(rawURL)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, host, path)
	start := time.Now()

	resp, err := t.client.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, host, path, err)
		return nil, err
	}
	hooks.OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))
	return resp, nil
}

func splitURL(rawURL string) (host, path string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}
	return u.Host, u.Path
}

var _ Transport = (*HTTPTransport)(nil)
