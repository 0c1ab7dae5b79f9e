package metabase

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/matzehuels/bulkstat/pkg/cache"
	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
	"github.com/matzehuels/bulkstat/pkg/fetch"
)

var sample = RecordsSource{
	{"d1", "dimA", "l1"},
	{"d1", "dimB", "l2"},
	{"d2", "dimA", "l3"},
}

func load(t *testing.T, src Source) *Index {
	t.Helper()
	ix, err := Load(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	return ix
}

func TestRelationalLookups(t *testing.T) {
	ix := load(t, sample)

	dims, err := ix.DimensionsFor("d1")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(dims, []string{"dimA", "dimB"}) {
		t.Errorf("DimensionsFor(d1) = %v", dims)
	}

	sets, _ := ix.DatasetsFor("dimA")
	if !slices.Equal(sets, []string{"d1", "d2"}) {
		t.Errorf("DatasetsFor(dimA) = %v", sets)
	}

	if ok, _ := ix.ContainsDataset("d3"); ok {
		t.Error("ContainsDataset(d3) = true")
	}
	if ok, _ := ix.ContainsDataset("d2"); !ok {
		t.Error("ContainsDataset(d2) = false")
	}
	if ok, _ := ix.ContainsDimension("dimB"); !ok {
		t.Error("ContainsDimension(dimB) = false")
	}
	if ok, _ := ix.ContainsDimension(""); ok {
		t.Error("ContainsDimension(\"\") = true")
	}
}

func TestUnconstrainedQueries(t *testing.T) {
	ix := load(t, sample)

	tests := []struct {
		name string
		got  func() ([]string, error)
		want []string
	}{
		{"all datasets", func() ([]string, error) { return ix.DatasetsFor("") }, []string{"d1", "d2"}},
		{"all dimensions", func() ([]string, error) { return ix.DimensionsFor("") }, []string{"dimA", "dimB"}},
		{"labels of dimA", func() ([]string, error) { return ix.LabelsFor("dimA", "") }, []string{"l1", "l3"}},
		{"labels of dimA in d2", func() ([]string, error) { return ix.LabelsFor("dimA", "d2") }, []string{"l3"}},
		{"all labels", func() ([]string, error) { return ix.LabelsFor("", "") }, []string{"l1", "l2", "l3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.got()
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if ok, _ := ix.ContainsLabel("l2", "dimB", "d1"); !ok {
		t.Error("ContainsLabel(l2, dimB, d1) = false")
	}
	if ok, _ := ix.ContainsLabel("l2", "dimA", ""); ok {
		t.Error("ContainsLabel(l2, dimA) = true")
	}
}

func TestNotLoaded(t *testing.T) {
	ix := New()
	if _, err := ix.DatasetsFor("dimA"); !bulkerr.Is(err, bulkerr.ErrCodeNotLoaded) {
		t.Errorf("DatasetsFor err = %v, want NOT_LOADED", err)
	}
	if _, err := ix.ContainsDataset("d1"); !bulkerr.Is(err, bulkerr.ErrCodeNotLoaded) {
		t.Errorf("ContainsDataset err = %v, want NOT_LOADED", err)
	}
	if ix.Loaded() || ix.Len() != 0 {
		t.Error("empty index reports loaded")
	}
}

func TestSchemaErrors(t *testing.T) {
	ix := load(t, sample)
	if _, err := ix.Lookup(context.Background(), "unit", nil); !bulkerr.Is(err, bulkerr.ErrCodeSchema) {
		t.Errorf("Lookup(unit) err = %v, want SCHEMA_ERROR", err)
	}
	if _, err := ix.Lookup(context.Background(), "dataset", map[string]string{"freq": "A"}); !bulkerr.Is(err, bulkerr.ErrCodeSchema) {
		t.Errorf("Lookup filter freq err = %v, want SCHEMA_ERROR", err)
	}
	if _, err := ix.Values(context.Background(), Field("geo"), Filter{}); !bulkerr.Is(err, bulkerr.ErrCodeSchema) {
		t.Errorf("Values(geo) err = %v, want SCHEMA_ERROR", err)
	}

	got, err := ix.Lookup(context.Background(), "dic", map[string]string{"data": "d2"})
	if err != nil || !slices.Equal(got, []string{"dimA"}) {
		t.Errorf("Lookup with aliases = %v, %v", got, err)
	}
}

func TestSearch(t *testing.T) {
	ix := load(t, sample)
	got, err := ix.Search(FieldDimension, "B$")
	if err != nil || !slices.Equal(got, []string{"dimB"}) {
		t.Errorf("Search = %v, %v", got, err)
	}
	if _, err := ix.Search(FieldDataset, "("); !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
		t.Errorf("bad pattern err = %v, want CONFIG_ERROR", err)
	}
}

func TestSearchRecords(t *testing.T) {
	ix := load(t, RecordsSource{
		{"d1", "geo", "BE"},
		{"d1", "unit", "EUR"},
		{"eur_d2", "geo", "DE"},
		{"d3", "currency", "EUR"},
	})
	tests := []struct {
		pattern string
		want    []Record
	}{
		{"EUR", []Record{{"d1", "unit", "EUR"}, {"d3", "currency", "EUR"}}},
		{"(?i)eur", []Record{{"d1", "unit", "EUR"}, {"eur_d2", "geo", "DE"}, {"d3", "currency", "EUR"}}},
		{"^geo$", []Record{{"d1", "geo", "BE"}, {"eur_d2", "geo", "DE"}}},
		{"nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := ix.SearchRecords(tt.pattern)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("SearchRecords(%q) = %v, want %v", tt.pattern, got, tt.want)
			}
		})
	}
	if _, err := ix.SearchRecords("["); !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
		t.Errorf("bad pattern err = %v, want CONFIG_ERROR", err)
	}
	if _, err := New().SearchRecords("x"); !bulkerr.Is(err, bulkerr.ErrCodeNotLoaded) {
		t.Errorf("unloaded index err = %v, want NOT_LOADED", err)
	}
}

type failingSource struct{}

func (failingSource) Records(context.Context) ([]Record, error) {
	return nil, errors.New("unreachable")
}
func (failingSource) String() string { return "failing" }

func TestReloadReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	ix := load(t, sample)
	first, _ := ix.Snapshot()

	if _, err := ix.Reload(ctx, failingSource{}); err == nil {
		t.Fatal("Reload from failing source succeeded")
	}
	if cur, _ := ix.Snapshot(); cur != first {
		t.Error("failed reload replaced the snapshot")
	}

	second, err := ix.Reload(ctx, RecordsSource{{"d9", "dimZ", "l9"}})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID == first.ID {
		t.Error("snapshot ID not regenerated")
	}
	if ok, _ := ix.ContainsDataset("d1"); ok {
		t.Error("old records visible after reload")
	}
	if first.Len() != 3 {
		t.Error("previous snapshot mutated by reload")
	}
}

func TestConcurrentReloadAndQuery(t *testing.T) {
	ctx := context.Background()
	a := RecordsSource{{"a", "x", "1"}, {"a", "y", "2"}}
	b := RecordsSource{{"b", "x", "1"}, {"b", "y", "2"}, {"b", "z", "3"}}
	ix := load(t, a)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 200 {
			src := a
			if i%2 == 0 {
				src = b
			}
			if _, err := ix.Reload(ctx, src); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for range 500 {
			s, err := ix.Snapshot()
			if err != nil {
				t.Error(err)
				return
			}
			sets, _ := s.Values(FieldDataset, Filter{})
			dims, _ := s.Values(FieldDimension, Filter{})
			// Each snapshot is internally consistent: a has two dimensions, b three.
			switch {
			case slices.Equal(sets, []string{"a"}) && len(dims) == 2:
			case slices.Equal(sets, []string{"b"}) && len(dims) == 3:
			default:
				t.Errorf("mixed snapshot: datasets %v, dimensions %v", sets, dims)
				return
			}
		}
	}()
	wg.Wait()
}

type stubTransport struct {
	body []byte
	gets int
}

func (s *stubTransport) Get(context.Context, string) (int, []byte, error) {
	s.gets++
	return 200, s.body, nil
}
func (s *stubTransport) Head(context.Context, string) (int, error) { return 200, nil }

func TestRemoteSource(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("d1\tdimA\tl1\nd1\tdimB\tl2\nd2\tdimA\tl3\n"))
	zw.Close()

	tr := &stubTransport{body: buf.Bytes()}
	s := fetch.New(cache.NewMemoryStore(), tr)
	src := RemoteSource{Session: s, URL: "https://example.org/svc?sort=1&file=metabase.txt.gz"}

	ix := load(t, src)
	if ix.Len() != 3 {
		t.Errorf("Len = %d, want 3", ix.Len())
	}
	if _, err := ix.Reload(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if tr.gets != 1 {
		t.Errorf("transport called %d times, want 1 (second load from cache)", tr.gets)
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metabase.txt")
	if err := os.WriteFile(path, []byte("d1\tdimA\tl1\nbad line\nd2\tdimA\tl3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(context.Background(), FileSource{Path: path}); !bulkerr.Is(err, bulkerr.ErrCodeParse) {
		t.Errorf("strict load err = %v, want PARSE_ERROR", err)
	}
	ix := load(t, FileSource{Path: path, Lenient: true})
	if ix.Len() != 2 {
		t.Errorf("lenient Len = %d, want 2", ix.Len())
	}
	if _, err := Load(context.Background(), FileSource{Path: path + ".missing"}); !bulkerr.Is(err, bulkerr.ErrCodeNotFound) {
		t.Errorf("missing file err = %v, want NOT_FOUND", err)
	}
}
