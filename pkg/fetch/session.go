package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/bulkstat/pkg/cache"
	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
	"github.com/matzehuels/bulkstat/pkg/observability"
)

// Session fetches content through a cache store. It is safe for concurrent use.
type Session struct {
	store     cache.Store
	transport Transport
	logger    *log.Logger
	timeout   time.Duration
	backend   string

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the shared context of one coalesced transfer. It is cancelled
// once every caller waiting on it has left.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option configures a Session.
type Option func(*Session)

// WithLogger routes session logs to l.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeout bounds each transport call. Zero means no per-call deadline
// beyond the caller's context and the transport's own limits.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// New creates a session. A nil store disables caching.
func New(store cache.Store, transport Transport, opts ...Option) *Session {
	if store == nil {
		store = cache.NewNullStore()
	}
	s := &Session{
		store:     store,
		transport: transport,
		logger:    log.New(io.Discard),
		backend:   "custom",
		flights:   make(map[string]*flight),
	}
	if n, ok := store.(cache.Namer); ok {
		s.backend = n.Name()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the session's cache store.
func (s *Session) Store() cache.Store { return s.store }

// Logger returns the session's logger.
func (s *Session) Logger() *log.Logger { return s.logger }

// Fetch returns the content at url, from the store when policy allows and
// from the transport otherwise.
//
// On a successful transfer the body is written back to the store unless
// policy.NoStore is set. Concurrent fetches of the same URL share one
// transfer, though callers must not rely on that.
func (s *Session) Fetch(ctx context.Context, url string, policy cache.Policy) ([]byte, error) {
	key := cache.KeyFor(url)

	fresh, err := s.store.IsFresh(ctx, key, policy)
	if err != nil {
		return nil, err
	}
	if fresh {
		e, err := s.store.Get(ctx, key)
		switch {
		case err == nil:
			observability.Cache().OnCacheHit(ctx, s.backend)
			s.logger.Debug("cache hit", "url", url, "age", time.Since(e.StoredAt).Round(time.Second))
			return e.Payload, nil
		case !errors.Is(err, cache.ErrNotFound):
			return nil, err
		}
		// Evicted between the freshness check and the read.
	}

	observability.Cache().OnCacheMiss(ctx, s.backend)
	s.logger.Debug("cache miss", "url", url, "policy", policy)

	name := string(key)
	if policy.NoStore {
		name += "|nostore"
	}
	return s.coalesce(ctx, name, url, func(fctx context.Context) ([]byte, error) {
		return s.download(fctx, url, key, policy)
	})
}

// coalesce runs fn once for concurrent callers sharing name. The transfer
// runs detached from any single caller's cancellation; a caller whose ctx
// ends stops waiting and gets its own ctx error, and the transfer is
// cancelled when no caller is left.
func (s *Session) coalesce(ctx context.Context, name, url string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	s.mu.Lock()
	f, ok := s.flights[name]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		s.flights[name] = f
	}
	f.waiters++
	s.mu.Unlock()
	defer s.leave(name, f)

	ch := s.group.DoChan(name, func() (any, error) {
		s.mu.Lock()
		cur := s.flights[name]
		s.mu.Unlock()
		if cur == nil {
			return nil, context.Canceled
		}
		return fn(cur.ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, s.fetchError(ctx, url, 0, ctx.Err())
	}
}

func (s *Session) leave(name string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.flights[name] == f {
		delete(s.flights, name)
		s.group.Forget(name)
	}
}

func (s *Session) download(ctx context.Context, url string, key cache.Key, policy cache.Policy) ([]byte, error) {
	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	status, body, err := s.transport.Get(tctx, url)
	if err != nil {
		return nil, s.fetchError(tctx, url, status, err)
	}
	if !success(status) {
		return nil, &bulkerr.FetchError{URL: url, Status: status}
	}

	if policy.NoStore {
		return body, nil
	}
	if err := s.store.Put(ctx, key, body); err != nil {
		return nil, err
	}
	observability.Cache().OnCacheSet(ctx, s.backend, len(body))
	s.logger.Debug("cached", "url", url, "bytes", len(body))
	return body, nil
}

// HeadStatus probes url with a HEAD request. The store is not consulted or
// modified. A non-success status is returned together with a FetchError.
func (s *Session) HeadStatus(ctx context.Context, url string) (int, error) {
	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	status, err := s.transport.Head(tctx, url)
	if err != nil {
		return status, s.fetchError(tctx, url, status, err)
	}
	if !success(status) {
		return status, &bulkerr.FetchError{URL: url, Status: status}
	}
	return status, nil
}

// Invalidate removes the stored entry for url.
func (s *Session) Invalidate(ctx context.Context, url string) error {
	return s.store.Delete(ctx, cache.KeyFor(url))
}

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Session) fetchError(ctx context.Context, url string, status int, err error) error {
	var fe *bulkerr.FetchError
	if errors.As(err, &fe) {
		if fe.URL == "" {
			fe.URL = url
		}
		return fe
	}
	return &bulkerr.FetchError{URL: url, Status: status, Timeout: isTimeout(ctx, err), Cause: err}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func success(status int) bool {
	return status >= 200 && status < 300
}
