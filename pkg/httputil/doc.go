// Package httputil provides HTTP client construction and retry helpers.
//
// # Client
//
// [NewClient] returns an *http.Client with a bounded timeout and a transport
// that stamps a User-Agent header on every request. The fetch layer uses it as
// its default transport backend.
//
// # Retry
//
// The fetch layer never retries on its own. Callers that want retries run
// the call through a [Backoff], which by default retries only [Transient]
// fetch failures:
//
//	b := httputil.Backoff{Attempts: 3, Delay: time.Second}
//	err := b.Do(ctx, func() error {
//	    body, err = session.Fetch(ctx, url, policy)
//	    return err
//	})
//
// The delay doubles after each failure, and cancellation of ctx stops the
// wait. [Retry] is the short form for a fixed attempt count.
package httputil
