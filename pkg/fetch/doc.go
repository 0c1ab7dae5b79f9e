// Package fetch retrieves remote content through a cache.
//
// A [Session] combines a [cache.Store] with a [Transport]. [Session.Fetch]
// consults the store first and only calls the transport when the stored entry
// is missing or stale under the caller's [cache.Policy]:
//
//	s := fetch.New(store, fetch.NewHTTPTransport(client))
//	body, err := s.Fetch(ctx, url, cache.WithMaxAge(24*time.Hour))
//
// Non-success statuses and transport failures are reported as
// *errors.FetchError carrying the HTTP status when one was received. A
// transfer that hits its deadline is reported with Timeout set, and nothing is
// written to the store.
//
// The session never retries. Wrap calls with httputil.Retry when retries are
// wanted.
//
// [FetchAll] fans independent fetches out over a bounded worker pool. In
// tolerant mode a failed page is logged and reported in its [Result] rather
// than aborting the batch.
package fetch
