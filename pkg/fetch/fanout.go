package fetch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/bulkstat/pkg/cache"
)

// DefaultWorkers is the pool size used when FanOut.Workers is not positive.
const DefaultWorkers = 8

// FanOut controls [Session.FetchAll].
type FanOut struct {
	// Workers bounds concurrent transfers.
	Workers int

	// Tolerant keeps going when individual fetches fail. Failed results carry
	// their error and a nil body. Without it the first failure cancels the
	// remaining fetches and is returned.
	Tolerant bool
}

// Result is the outcome of one fetch in a batch.
type Result struct {
	URL  string
	Body []byte
	Err  error
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool { return r.Err == nil }

// FetchAll fetches urls concurrently. Results are returned in input order.
func (s *Session) FetchAll(ctx context.Context, urls []string, policy cache.Policy, opts FanOut) ([]Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]Result, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, u := range urls {
		results[i].URL = u
		g.Go(func() error {
			body, err := s.Fetch(gctx, u, policy)
			if err != nil {
				results[i].Err = err
				if opts.Tolerant {
					s.logger.Warn("skipping page", "url", u, "err", err)
					return nil
				}
				return err
			}
			results[i].Body = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
