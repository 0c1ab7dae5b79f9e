package metabase

import (
	"regexp"
	"slices"
	"time"

	"github.com/google/uuid"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// Snapshot is one immutable load of the metabase table.
type Snapshot struct {
	ID       uuid.UUID
	LoadedAt time.Time
	Source   string

	records     []Record
	byDataset   map[string][]int
	byDimension map[string][]int
}

func newSnapshot(source string, records []Record) *Snapshot {
	s := &Snapshot{
		ID:          uuid.New(),
		LoadedAt:    time.Now(),
		Source:      source,
		records:     records,
		byDataset:   make(map[string][]int),
		byDimension: make(map[string][]int),
	}
	for i, r := range records {
		s.byDataset[r.Dataset] = append(s.byDataset[r.Dataset], i)
		s.byDimension[r.Dimension] = append(s.byDimension[r.Dimension], i)
	}
	return s
}

// Len returns the number of records.
func (s *Snapshot) Len() int { return len(s.records) }

// Records returns a copy of all records in load order.
func (s *Snapshot) Records() []Record { return slices.Clone(s.records) }

// Values returns the distinct values of field among records matching f,
// sorted.
func (s *Snapshot) Values(field Field, f Filter) ([]string, error) {
	if !slices.Contains(Fields, field) {
		return nil, bulkerr.New(bulkerr.ErrCodeSchema, "unknown metabase field %q", field)
	}
	seen := make(map[string]struct{})
	s.scan(f, func(r Record) {
		seen[r.Get(field)] = struct{}{}
	})
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out, nil
}

// Select returns the records matching f, in load order.
func (s *Snapshot) Select(f Filter) []Record {
	var out []Record
	s.scan(f, func(r Record) { out = append(out, r) })
	return out
}

// Contains reports whether any record matches f.
func (s *Snapshot) Contains(f Filter) bool {
	found := false
	s.scan(f, func(Record) { found = true })
	return found
}

// Search returns the distinct values of field matching re, sorted.
func (s *Snapshot) Search(field Field, re *regexp.Regexp) ([]string, error) {
	all, err := s.Values(field, Filter{})
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(v string) bool { return !re.MatchString(v) }), nil
}

// SearchRecords returns the records with any field matching re, in load
// order.
func (s *Snapshot) SearchRecords(re *regexp.Regexp) []Record {
	var out []Record
	for _, r := range s.records {
		if slices.ContainsFunc(Fields, func(f Field) bool { return re.MatchString(r.Get(f)) }) {
			out = append(out, r)
		}
	}
	return out
}

// scan calls fn for every record matching f, using the narrowest index.
func (s *Snapshot) scan(f Filter, fn func(Record)) {
	var idx []int
	switch {
	case f.Dataset != "" && f.Dimension != "":
		a, b := s.byDataset[f.Dataset], s.byDimension[f.Dimension]
		if len(b) < len(a) {
			a = b
		}
		idx = a
	case f.Dataset != "":
		idx = s.byDataset[f.Dataset]
	case f.Dimension != "":
		idx = s.byDimension[f.Dimension]
	default:
		for _, r := range s.records {
			if f.match(r) {
				fn(r)
			}
		}
		return
	}
	for _, i := range idx {
		if r := s.records[i]; f.match(r) {
			fn(r)
		}
	}
}
