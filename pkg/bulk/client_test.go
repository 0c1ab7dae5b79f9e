package bulk

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/matzehuels/bulkstat/pkg/cache"
	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
	"github.com/matzehuels/bulkstat/pkg/fetch"
	"github.com/matzehuels/bulkstat/pkg/request"
)

func listingPage(files ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table class="filelist"><thead><tr><th>Name</th><th>Size</th><th>Type</th><th>Date</th></tr></thead><tbody>`)
	b.WriteString(`<tr><td><a href="?dir=..">..</a></td><td></td><td>DIR</td><td></td></tr>`)
	for _, f := range files {
		fmt.Fprintf(&b, `<tr><td><a href="#">%s</a></td><td>1 KB</td><td>gz</td><td>%s</td></tr>`, f[0], f[1])
	}
	b.WriteString(`</tbody></table></body></html>`)
	return b.String()
}

func gz(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// service fakes the listing endpoint. Data pages exist for a and b only;
// every other letter answers 500.
type service struct {
	t     *testing.T
	hits  atomic.Int32
	files map[string][]byte
}

func (s *service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	q := r.URL.Query()
	if !strings.HasSuffix(r.URL.Path, "/"+DefaultQuery) || q.Get(request.SortKey) != "1" {
		http.NotFound(w, r)
		return
	}
	if f := q.Get("file"); f != "" {
		body, ok := s.files[f]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
		return
	}
	switch q.Get("dir") {
	case "dic/en":
		fmt.Fprint(w, listingPage([2]string{"geo.dic", "01/02/2024"}, [2]string{"unit.dic", "03/04/2024"}, [2]string{"readme.txt", ""}))
	case "data":
		switch q.Get("start") {
		case "a":
			fmt.Fprint(w, listingPage([2]string{"aact_ali01.tsv.gz", "05/06/2024"}, [2]string{"aact_ali01.sdmx.zip", ""}))
		case "b":
			fmt.Fprint(w, listingPage([2]string{"bop_c6_q.tsv.gz", "07/08/2024"}))
		default:
			http.Error(w, "unavailable", http.StatusInternalServerError)
		}
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T) (*Client, *service) {
	t.Helper()
	svc := &service{t: t, files: map[string][]byte{}}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	session := fetch.New(cache.NewMemoryStore(), fetch.NewHTTPTransport(srv.Client()))
	c, err := NewClient(session, Options{Base: srv.URL + "/portlet", Protocol: request.HTTP, Workers: 4})
	if err != nil {
		t.Fatal(err)
	}
	return c, svc
}

func TestNewClientValidation(t *testing.T) {
	session := fetch.New(nil, fetch.NewHTTPTransport(nil))
	tests := []struct {
		name string
		opts Options
		ok   bool
	}{
		{"defaults", Options{}, true},
		{"german", Options{Lang: "de"}, true},
		{"bad lang", Options{Lang: "it"}, false},
		{"bad protocol", Options{Protocol: "gopher"}, false},
		{"topology without base", Options{Topology: withoutKind(Base)}, false},
		{"layout without extensions", Options{Topology: func() Topology {
			topo := DefaultTopology()
			l := topo[Data]
			l.Exts = nil
			topo[Data] = l
			return topo
		}()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(session, tt.opts)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
				t.Fatalf("err = %v, want CONFIG_ERROR", err)
			}
		})
	}
	if _, err := NewClient(nil, Options{}); err == nil {
		t.Fatal("expected error for nil session")
	}
}

func withoutKind(k Kind) Topology {
	topo := DefaultTopology()
	delete(topo, k)
	return topo
}

func TestNewClientClonesTopology(t *testing.T) {
	topo := DefaultTopology()
	c, err := NewClient(fetch.New(nil, fetch.NewHTTPTransport(nil)), Options{Topology: topo})
	if err != nil {
		t.Fatal(err)
	}
	l := topo[Data]
	l.Exts[0] = "csv"
	topo[Data] = l
	delete(topo, Base)

	u, err := c.FileURL(Data, "aact_ali01", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(u, "data/aact_ali01.tsv.gz") {
		t.Errorf("FileURL = %s, caller edits leaked into the client", u)
	}
	if _, err := c.MetabaseSource(false); err != nil {
		t.Errorf("MetabaseSource after caller deleted base: %v", err)
	}
}

func TestURLs(t *testing.T) {
	c, err := NewClient(fetch.New(nil, fetch.NewHTTPTransport(nil)), Options{})
	if err != nil {
		t.Fatal(err)
	}
	const prefix = "https://ec.europa.eu/eurostat/estat-navtree-portlet-prod/BulkDownloadListing?sort=1&"

	listings := []struct {
		kind   Kind
		letter string
		want   string
	}{
		{Dic, "", prefix + "dir=dic/en"},
		{Data, "", prefix + "dir=data"},
		{Data, "n", prefix + "dir=data&start=n"},
	}
	for _, tt := range listings {
		got, err := c.ListingURL(tt.kind, tt.letter)
		if err != nil {
			t.Fatalf("ListingURL(%s, %q): %v", tt.kind, tt.letter, err)
		}
		if got != tt.want {
			t.Errorf("ListingURL(%s, %q) = %q, want %q", tt.kind, tt.letter, got, tt.want)
		}
	}
	for _, bad := range []struct {
		kind   Kind
		letter string
	}{{Dic, "a"}, {Data, "1"}, {Base, ""}} {
		if _, err := c.ListingURL(bad.kind, bad.letter); !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
			t.Errorf("ListingURL(%s, %q) err = %v, want CONFIG_ERROR", bad.kind, bad.letter, err)
		}
	}

	files := []struct {
		kind Kind
		name string
		ext  string
		want string
	}{
		{Dic, "geo", "", prefix + "file=dic/en/geo.dic"},
		{Data, "aact_ali01", "", prefix + "file=data/aact_ali01.tsv.gz"},
		{Data, "aact_ali01", "sdmx", prefix + "file=data/aact_ali01.sdmx.gz"},
		{Base, "", "", prefix + "file=metabase.txt.gz"},
		{TOC, "", "", prefix + "file=table_of_contents_en.txt"},
		{TOC, "", "xml", prefix + "file=table_of_contents.xml"},
	}
	for _, tt := range files {
		got, err := c.FileURL(tt.kind, tt.name, tt.ext)
		if err != nil {
			t.Fatalf("FileURL(%s, %q, %q): %v", tt.kind, tt.name, tt.ext, err)
		}
		if got != tt.want {
			t.Errorf("FileURL(%s, %q, %q) = %q, want %q", tt.kind, tt.name, tt.ext, got, tt.want)
		}
	}
	if _, err := c.FileURL(Data, "x", "csv"); !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
		t.Errorf("unknown ext err = %v, want CONFIG_ERROR", err)
	}
	if _, err := c.FileURL(Dic, "", ""); err == nil {
		t.Error("expected error for empty dimension code")
	}
}

func TestDimensions(t *testing.T) {
	c, _ := newTestClient(t)
	got, err := c.Dimensions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"geo", "unit"}; !slices.Equal(got, want) {
		t.Errorf("Dimensions = %v, want %v", got, want)
	}
}

func TestDatasetsTolerant(t *testing.T) {
	c, _ := newTestClient(t)
	list, err := c.Datasets(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"aact_ali01", "bop_c6_q"}; !slices.Equal(list.Names, want) {
		t.Errorf("Names = %v, want %v", list.Names, want)
	}
	if len(list.Missing) != 24 || list.Missing[0] != "c" {
		t.Errorf("Missing = %v, want the 24 letters c..z", list.Missing)
	}
}

func TestDatasetsStrict(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.Datasets(context.Background(), false)
	if !bulkerr.IsFetch(err) {
		t.Fatalf("err = %v, want fetch error", err)
	}
	if got := bulkerr.StatusOf(err); got != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", got)
	}
}

func TestLastUpdate(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	got, err := c.LastUpdate(ctx, Data, "bop_c6_q")
	if err != nil {
		t.Fatal(err)
	}
	if got != "07/08/2024" {
		t.Errorf("LastUpdate(bop_c6_q) = %q", got)
	}
	got, err = c.LastUpdate(ctx, Dic, "unit")
	if err != nil {
		t.Fatal(err)
	}
	if got != "03/04/2024" {
		t.Errorf("LastUpdate(unit) = %q", got)
	}
	if _, err := c.LastUpdate(ctx, Data, "azzz"); !bulkerr.Is(err, bulkerr.ErrCodeNotFound) {
		t.Errorf("missing dataset err = %v, want NOT_FOUND", err)
	}
	if _, err := c.LastUpdate(ctx, Base, "x"); !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
		t.Errorf("base err = %v, want CONFIG_ERROR", err)
	}
}

func TestListingIsCached(t *testing.T) {
	c, svc := newTestClient(t)
	ctx := context.Background()
	for range 3 {
		if _, err := c.Dimensions(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if n := svc.hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
}

func TestExistsAndGet(t *testing.T) {
	c, svc := newTestClient(t)
	svc.files["data/aact_ali01.tsv.gz"] = gz(t, "unit,geo\\time\t2020\nEUR,BE\t1.5\n")
	ctx := context.Background()

	ok, err := c.Exists(ctx, Data, "aact_ali01")
	if err != nil || !ok {
		t.Fatalf("Exists(aact_ali01) = %v, %v", ok, err)
	}
	ok, err = c.Exists(ctx, Data, "nope")
	if err != nil || ok {
		t.Fatalf("Exists(nope) = %v, %v; want false, nil", ok, err)
	}

	body, err := c.Get(ctx, Data, "aact_ali01", "")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(body, svc.files["data/aact_ali01.tsv.gz"]) {
		t.Error("Get returned a different body")
	}
}

func TestDictionary(t *testing.T) {
	c, svc := newTestClient(t)
	svc.files["dic/en/geo.dic"] = []byte("BE\tBelgium\nDE\tGermany \nbroken line\n")

	dict, err := c.Dictionary(context.Background(), "geo")
	if err != nil {
		t.Fatal(err)
	}
	if len(dict) != 2 || dict["DE"] != "Germany" {
		t.Errorf("Dictionary = %v", dict)
	}
}

func TestMetabaseSource(t *testing.T) {
	c, svc := newTestClient(t)
	svc.files["metabase.txt.gz"] = gz(t, "aact_ali01\tgeo\tBE\naact_ali01\tunit\tEUR\n")

	src, err := c.MetabaseSource(false)
	if err != nil {
		t.Fatal(err)
	}
	recs, err := src.Records(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[1].Label != "EUR" {
		t.Errorf("records = %+v", recs)
	}
}

const tocFixture = "\"title\"\t\"code\"\t\"type\"\t\"last update of data\"\t\"last table structure change\"\t\"data start\"\t\"data end\"\n" +
	"\"Database by themes\"\t\"data\"\t\"folder\"\t\"\"\t\"\"\t\"\"\t\"\"\n" +
	"\"    Agricultural accounts \"\t\"aact_ali01\"\t\"dataset\"\t\"05.06.2024\"\t\"01.01.2020\"\t\"1973\"\t\"2023\"\n" +
	"\"    Duplicate\"\t\"aact_ali01\"\t\"dataset\"\t\"\"\t\"\"\t\"\"\t\"\"\n" +
	"\"short\"\n"

func TestParseTOC(t *testing.T) {
	var skipped int
	toc, err := ParseTOC([]byte(tocFixture), func(int, error) { skipped++ })
	if err != nil {
		t.Fatal(err)
	}
	if toc.Len() != 3 || skipped != 1 {
		t.Fatalf("Len = %d, skipped = %d; want 3, 1", toc.Len(), skipped)
	}
	title, err := toc.Title("aact_ali01")
	if err != nil {
		t.Fatal(err)
	}
	if title != "Agricultural accounts" {
		t.Errorf("Title = %q", title)
	}
	start, end, err := toc.Period("aact_ali01")
	if err != nil || start != "1973" || end != "2023" {
		t.Errorf("Period = %q, %q, %v", start, end, err)
	}
	if _, err := toc.Entry("nope"); !bulkerr.Is(err, bulkerr.ErrCodeNotFound) {
		t.Errorf("missing code err = %v, want NOT_FOUND", err)
	}
}

func TestParseTOCRejectsForeignHeader(t *testing.T) {
	_, err := ParseTOC([]byte("a\tb\n1\t2\n"), nil)
	if !bulkerr.Is(err, bulkerr.ErrCodeParse) {
		t.Fatalf("err = %v, want PARSE_ERROR", err)
	}
}

func TestTableOfContents(t *testing.T) {
	c, svc := newTestClient(t)
	svc.files["table_of_contents_en.txt"] = []byte(tocFixture)
	toc, err := c.TableOfContents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if e, _ := toc.Entry("data"); e.Type != "folder" {
		t.Errorf("Entry(data).Type = %q", e.Type)
	}
}
