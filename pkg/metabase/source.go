package metabase

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/bulkstat/pkg/cache"
	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
	"github.com/matzehuels/bulkstat/pkg/fetch"
	"github.com/matzehuels/bulkstat/pkg/table"
)

// Source produces the full record set for one snapshot.
type Source interface {
	Records(ctx context.Context) ([]Record, error)
	String() string
}

// RemoteSource fetches the metabase file through a session.
type RemoteSource struct {
	Session *fetch.Session
	URL     string
	Policy  cache.Policy

	// Lenient skips malformed lines instead of failing the load.
	Lenient bool
}

// Records fetches and parses the remote file. The content may be plain or
// compressed; the format is detected from its leading bytes.
func (s RemoteSource) Records(ctx context.Context) ([]Record, error) {
	if s.Session == nil {
		return nil, bulkerr.New(bulkerr.ErrCodeConfig, "remote metabase source has no session")
	}
	body, err := s.Session.Fetch(ctx, s.URL, s.Policy)
	if err != nil {
		return nil, err
	}
	return parse(body, s.Lenient, s.Session.Logger())
}

func (s RemoteSource) String() string { return s.URL }

// FileSource reads the metabase from a local file.
type FileSource struct {
	Path    string
	Lenient bool
}

// Records reads and parses the file.
func (s FileSource) Records(ctx context.Context) ([]Record, error) {
	body, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeNotFound, err, "metabase file %s", s.Path)
	}
	if err != nil {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "read metabase file %s", s.Path)
	}
	return parse(body, s.Lenient, nil)
}

func (s FileSource) String() string { return s.Path }

// RecordsSource serves a fixed record set.
type RecordsSource []Record

// Records returns a copy of the records.
func (s RecordsSource) Records(context.Context) ([]Record, error) {
	return slices.Clone(s), nil
}

func (s RecordsSource) String() string { return "static" }

func parse(body []byte, lenient bool, logger *log.Logger) ([]Record, error) {
	opts := table.DelimitedOptions{
		Columns:     Columns(),
		Compression: table.Infer,
		Lenient:     lenient,
	}
	if logger != nil {
		opts.OnSkip = func(line int, err error) {
			logger.Warn("skipping metabase line", "line", line, "err", err)
		}
	}
	rows, err := table.ParseDelimited(body, opts)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(rows))
	for i, r := range rows {
		v := r.Values()
		out[i] = Record{Dataset: v[0], Dimension: v[1], Label: v[2]}
	}
	return out, nil
}
