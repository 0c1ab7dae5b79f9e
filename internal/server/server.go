// Package server exposes the metabase index over HTTP.
//
// Every query handler reads one snapshot and answers from it, so the
// X-Snapshot-ID response header always names the snapshot the body came
// from, even while a reload swaps in a new one.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/bulkstat/pkg/metabase"
)

// SnapshotHeader carries the ID of the snapshot that answered a request.
const SnapshotHeader = "X-Snapshot-ID"

// Options configures a Server.
type Options struct {
	Index  *metabase.Index
	Source metabase.Source // Reloaded by POST /reload and the reload loop
	Logger *log.Logger

	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
}

// Server routes metabase queries.
type Server struct {
	Router *chi.Mux
	index  *metabase.Index
	source metabase.Source
	logger *log.Logger
}

// New builds the router.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	index := opts.Index
	if index == nil {
		index = metabase.New()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)

	s := &Server{Router: r, index: index, source: opts.Source, logger: logger}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Get("/datasets", s.handleDatasets)
	r.Get("/dimensions", s.handleDimensions)
	r.Get("/labels", s.handleLabels)
	r.Get("/values/{field}", s.handleValues)
	r.Get("/contains", s.handleContains)
	r.Get("/search", s.handleSearch)
	r.Get("/records", s.handleRecords)
	r.Post("/reload", s.handleReload)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Reload loads the configured source into the index.
func (s *Server) Reload(ctx context.Context) (*metabase.Snapshot, error) {
	if s.source == nil {
		return nil, errNoSource
	}
	return s.index.Reload(ctx, s.source)
}

// Run serves on addr until ctx is cancelled, reloading the index every
// interval when interval is positive. A failed periodic reload is logged and
// the previous snapshot keeps serving.
func (s *Server) Run(ctx context.Context, addr string, interval time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if interval > 0 && s.source != nil {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if _, err := s.Reload(ctx); err != nil && ctx.Err() == nil {
						s.logger.Warn("periodic reload failed", "err", err)
					}
				}
			}
		})
	}
	return g.Wait()
}

func requestLogger(l *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			l.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"took", time.Since(start).Round(time.Microsecond),
				"id", chimw.GetReqID(r.Context()))
		})
	}
}
