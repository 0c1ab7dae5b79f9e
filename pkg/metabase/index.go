package metabase

import (
	"context"
	"io"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
	"github.com/matzehuels/bulkstat/pkg/observability"
)

// Index serves queries against the current snapshot. It is safe for
// concurrent use; reloads never block queries.
type Index struct {
	current atomic.Pointer[Snapshot]
	loadMu  sync.Mutex
	logger  *log.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLogger routes index logs to l.
func WithLogger(l *log.Logger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// New returns an empty index. Queries fail with NOT_LOADED until the first
// successful Reload.
func New(opts ...Option) *Index {
	ix := &Index{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Load creates an index and loads src into it.
func Load(ctx context.Context, src Source, opts ...Option) (*Index, error) {
	ix := New(opts...)
	if _, err := ix.Reload(ctx, src); err != nil {
		return nil, err
	}
	return ix, nil
}

// Reload reads src into a new snapshot and makes it current. On failure the
// previous snapshot stays in place. Concurrent reloads are serialised.
func (ix *Index) Reload(ctx context.Context, src Source) (*Snapshot, error) {
	ix.loadMu.Lock()
	defer ix.loadMu.Unlock()

	name := src.String()
	hooks := observability.Index()
	hooks.OnLoadStart(ctx, name)
	start := time.Now()

	records, err := src.Records(ctx)
	if err != nil {
		hooks.OnLoadComplete(ctx, "", 0, time.Since(start), err)
		return nil, err
	}

	snap := newSnapshot(name, records)
	ix.current.Store(snap)
	hooks.OnLoadComplete(ctx, snap.ID.String(), snap.Len(), time.Since(start), nil)
	ix.logger.Info("metabase loaded", "records", snap.Len(), "snapshot", snap.ID, "took", time.Since(start).Round(time.Millisecond))
	return snap, nil
}

// Snapshot returns the current snapshot.
func (ix *Index) Snapshot() (*Snapshot, error) {
	s := ix.current.Load()
	if s == nil {
		return nil, bulkerr.New(bulkerr.ErrCodeNotLoaded, "metabase index queried before load")
	}
	return s, nil
}

// Loaded reports whether a snapshot is available.
func (ix *Index) Loaded() bool { return ix.current.Load() != nil }

// Len returns the number of records in the current snapshot, or 0.
func (ix *Index) Len() int {
	if s := ix.current.Load(); s != nil {
		return s.Len()
	}
	return 0
}

// Values returns the distinct values of field among records matching f.
func (ix *Index) Values(ctx context.Context, field Field, f Filter) ([]string, error) {
	s, err := ix.Snapshot()
	if err != nil {
		return nil, err
	}
	out, err := s.Values(field, f)
	if err == nil {
		observability.Index().OnQuery(ctx, string(field), len(out))
	}
	return out, err
}

// Lookup is Values with string field names, for callers that take them
// from user input.
func (ix *Index) Lookup(ctx context.Context, field string, filters map[string]string) ([]string, error) {
	fld, err := ParseField(field)
	if err != nil {
		return nil, err
	}
	f, err := FilterFrom(filters)
	if err != nil {
		return nil, err
	}
	return ix.Values(ctx, fld, f)
}

// DatasetsFor returns the datasets using dimension, or every dataset when
// dimension is empty.
func (ix *Index) DatasetsFor(dimension string) ([]string, error) {
	return ix.Values(context.Background(), FieldDataset, Filter{Dimension: dimension})
}

// DimensionsFor returns the dimensions of dataset, or every dimension when
// dataset is empty.
func (ix *Index) DimensionsFor(dataset string) ([]string, error) {
	return ix.Values(context.Background(), FieldDimension, Filter{Dataset: dataset})
}

// LabelsFor returns the labels of dimension, optionally restricted to one
// dataset. Empty arguments are unconstrained.
func (ix *Index) LabelsFor(dimension, dataset string) ([]string, error) {
	return ix.Values(context.Background(), FieldLabel, Filter{Dimension: dimension, Dataset: dataset})
}

// ContainsDataset reports whether name appears as a dataset.
func (ix *Index) ContainsDataset(name string) (bool, error) {
	return ix.contains(Filter{Dataset: name})
}

// ContainsDimension reports whether name appears as a dimension.
func (ix *Index) ContainsDimension(name string) (bool, error) {
	return ix.contains(Filter{Dimension: name})
}

// ContainsLabel reports whether label is valid for dimension, optionally
// within dataset.
func (ix *Index) ContainsLabel(label, dimension, dataset string) (bool, error) {
	return ix.contains(Filter{Label: label, Dimension: dimension, Dataset: dataset})
}

func (ix *Index) contains(f Filter) (bool, error) {
	s, err := ix.Snapshot()
	if err != nil {
		return false, err
	}
	// An all-empty filter would match any record; treat the empty name as absent.
	if f == (Filter{}) {
		return false, nil
	}
	return s.Contains(f), nil
}

// Search returns the values of field matching pattern, a regular expression.
func (ix *Index) Search(field Field, pattern string) ([]string, error) {
	re, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	s, err := ix.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.Search(field, re)
}

// SearchRecords returns the records in which any field matches pattern.
func (ix *Index) SearchRecords(pattern string) ([]Record, error) {
	re, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	s, err := ix.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.SearchRecords(re), nil
}

// CompilePattern compiles a search pattern, reporting a bad one as
// CONFIG_ERROR.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeConfig, err, "invalid search pattern %q", pattern)
	}
	return re, nil
}
