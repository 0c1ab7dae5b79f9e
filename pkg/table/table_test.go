package table

import (
	"bytes"
	"slices"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

const listingPage = `<html><body>
<table class="menu"><tr><td><a href="#">not this one</a></td></tr></table>
<table class="filelist">
  <tr><th>Name</th><th>Size</th><th>Type</th><th>Date</th></tr>
  <tr><td><a href="?dir=..">Parent directory</a></td></tr>
  <tr><td><a href="?file=dic/en/a.dic">a.dic</a></td><td>1 KB</td><td>dic</td><td>01/02/2024 10:00:00</td></tr>
  <tr><td><a href="?file=dic/en/b.dic">b.dic</a></td><td>2 KB</td><td>dic</td><td>02/02/2024 10:00:00</td></tr>
  <tr><td><a href="?file=dic/en/c.dic"> c.dic </a></td><td>3 KB</td><td>dic</td><td>03/02/2024 10:00:00</td></tr>
</table>
</body></html>`

func TestParseListing(t *testing.T) {
	rows, err := ParseListing([]byte(listingPage), DefaultSelector)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := Names(rows, ".dic"), []string{"a", "b", "c"}; !slices.Equal(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
	if got := rows[1].Get(ColDate); got != "02/02/2024 10:00:00" {
		t.Errorf("date = %q", got)
	}
	if got := rows[0].Get(ColSize); got != "1 KB" {
		t.Errorf("size = %q", got)
	}
}

func TestParseListingErrors(t *testing.T) {
	tests := []struct {
		name string
		page string
		sel  Selector
	}{
		{"no table", `<html><body><p>nothing</p></body></html>`, DefaultSelector},
		{"wrong id", listingPage, Selector{ID: "files"}},
		{"too shallow", `<table class="filelist"><tr><td>only</td></tr></table>`, DefaultSelector},
		{"row without anchor", `<table class="filelist"><tr><td>h</td></tr><tr><td>h</td></tr><tr><td>plain</td></tr></table>`, DefaultSelector},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseListing([]byte(tt.page), tt.sel)
			if !bulkerr.Is(err, bulkerr.ErrCodeParse) {
				t.Errorf("err = %v, want PARSE_ERROR", err)
			}
		})
	}
}

func TestParseListingHeaderOnly(t *testing.T) {
	page := `<table class="filelist"><tbody><tr><th>Name</th></tr><tr><td>..</td></tr></tbody></table>`
	rows, err := ParseListing([]byte(page), DefaultSelector)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

func TestStripSuffix(t *testing.T) {
	tests := []struct {
		name, suffix, want string
		ok                 bool
	}{
		{"geo.dic", ".dic", "geo", true},
		{"geo.dic", "dic", "geo", true},
		{"aact_ali01.tsv.gz", ".tsv.gz", "aact_ali01", true},
		{"aact_ali01.sdmx.zip", ".tsv.gz", "", false},
		{".dic", ".dic", "", false},
		{"geo", "", "geo", true},
	}
	for _, tt := range tests {
		got, ok := StripSuffix(tt.name, tt.suffix)
		if got != tt.want || ok != tt.ok {
			t.Errorf("StripSuffix(%q, %q) = %q, %v; want %q, %v", tt.name, tt.suffix, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNamesExcludesOtherSuffixes(t *testing.T) {
	rows := []Row{
		NewRow(ListingColumns, "a.tsv.gz"),
		NewRow(ListingColumns, "a.sdmx.zip"),
		NewRow(ListingColumns, "b.tsv.gz"),
	}
	if got := Names(rows, ".tsv.gz"); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Names = %v", got)
	}
}

var metabase = "d1\tdimA\tl1\nd1\tdimB\tl2\n\nd2\tdimA\tl3\n"

func TestParseDelimited(t *testing.T) {
	cols := []string{"dataset", "dimension", "label"}
	rows, err := ParseDelimited([]byte(metabase), DelimitedOptions{Columns: cols})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if got := Column(rows, "label"); !slices.Equal(got, []string{"l1", "l2", "l3"}) {
		t.Errorf("labels = %v", got)
	}
	if !slices.Equal(rows[2].Values(), []string{"d2", "dimA", "l3"}) {
		t.Errorf("row 2 = %v", rows[2].Values())
	}
}

func TestParseDelimitedMismatch(t *testing.T) {
	content := []byte("a\tb\tc\nbroken\td\tx\tx\ne\tf\tg\n")
	cols := []string{"x", "y", "z"}

	if _, err := ParseDelimited(content, DelimitedOptions{Columns: cols}); !bulkerr.Is(err, bulkerr.ErrCodeParse) {
		t.Fatalf("strict err = %v, want PARSE_ERROR", err)
	}

	var skipped []int
	rows, err := ParseDelimited(content, DelimitedOptions{
		Columns: cols,
		Lenient: true,
		OnSkip:  func(line int, err error) { skipped = append(skipped, line) },
	})
	if err != nil {
		t.Fatalf("lenient: %v", err)
	}
	if len(rows) != 2 || rows[1].Get("x") != "e" {
		t.Errorf("lenient rows = %v", rows)
	}
	if !slices.Equal(skipped, []int{2}) {
		t.Errorf("skipped lines = %v, want [2]", skipped)
	}
}

func TestParseDelimitedStrayQuote(t *testing.T) {
	cols := []string{"dataset", "dimension", "label"}

	rows, err := ParseDelimited([]byte("d1\tgeo\t\"EU\nd2\tgeo\tFR\nd3\tgeo\t\"EU\" area\n"), DelimitedOptions{Columns: cols})
	if err != nil {
		t.Fatal(err)
	}
	if got := Column(rows, "label"); !slices.Equal(got, []string{`"EU`, "FR", `"EU" area`}) {
		t.Errorf("labels = %q", got)
	}

	content := []byte("d1\tgeo\t\"EU\n\"broken\tx\nd3\tgeo\tDE\n")
	if _, err := ParseDelimited(content, DelimitedOptions{Columns: cols}); !bulkerr.Is(err, bulkerr.ErrCodeParse) {
		t.Fatalf("strict err = %v, want PARSE_ERROR", err)
	}

	var skipped []int
	rows, err = ParseDelimited(content, DelimitedOptions{
		Columns: cols,
		Lenient: true,
		OnSkip:  func(line int, err error) { skipped = append(skipped, line) },
	})
	if err != nil {
		t.Fatalf("lenient: %v", err)
	}
	if got := Column(rows, "dataset"); !slices.Equal(got, []string{"d1", "d3"}) {
		t.Errorf("datasets = %v", got)
	}
	if !slices.Equal(skipped, []int{2}) {
		t.Errorf("skipped lines = %v, want [2]", skipped)
	}
}

func TestParseDelimitedCRLF(t *testing.T) {
	rows, err := ParseDelimited([]byte("a\tb\r\nc\td\r\n"), DelimitedOptions{Columns: []string{"x", "y"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1].Get("y") != "d" {
		t.Errorf("rows = %v", rows)
	}
}

func TestParseDelimitedHeader(t *testing.T) {
	content := []byte("code,title\nnama_10_gdp,GDP\n")
	rows, err := ParseDelimited(content, DelimitedOptions{Header: true, Comma: ','})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Get("title") != "GDP" {
		t.Errorf("rows = %+v", rows)
	}
	if _, err := ParseDelimited(content, DelimitedOptions{Comma: ','}); !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
		t.Errorf("no columns err = %v, want CONFIG_ERROR", err)
	}
}

func TestParseDelimitedCompressed(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte(metabase))
	zw.Close()

	var zb bytes.Buffer
	arch := zip.NewWriter(&zb)
	f, _ := arch.Create("metabase.txt")
	f.Write([]byte(metabase))
	arch.Close()

	cols := []string{"dataset", "dimension", "label"}
	tests := []struct {
		name    string
		content []byte
		c       Compression
	}{
		{"gzip", gz.Bytes(), Gzip},
		{"zip", zb.Bytes(), Zip},
		{"infer gzip", gz.Bytes(), Infer},
		{"infer zip", zb.Bytes(), Infer},
		{"infer plain", []byte(metabase), Infer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ParseDelimited(tt.content, DelimitedOptions{Columns: cols, Compression: tt.c})
			if err != nil {
				t.Fatal(err)
			}
			if len(rows) != 3 {
				t.Errorf("rows = %d, want 3", len(rows))
			}
		})
	}

	if _, err := ParseDelimited([]byte("not gzip"), DelimitedOptions{Columns: cols, Compression: Gzip}); !bulkerr.Is(err, bulkerr.ErrCodeParse) {
		t.Errorf("bad gzip err = %v, want PARSE_ERROR", err)
	}
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{"": None, "gz": Gzip, ".bz2": Bzip2, "zip": Zip, "infer": Infer} {
		got, err := ParseCompression(in)
		if err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseCompression("rar"); !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
		t.Errorf("rar err = %v, want CONFIG_ERROR", err)
	}
}
