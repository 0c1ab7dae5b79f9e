package table

import (
	"bytes"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// ListingHeaderRows is the number of decorative rows before the data rows
// of a listing table.
const ListingHeaderRows = 2

// Listing column names.
const (
	ColName = "name"
	ColSize = "size"
	ColType = "type"
	ColDate = "date"
)

// ListingColumns are the columns of rows returned by ParseListing.
var ListingColumns = []string{ColName, ColSize, ColType, ColDate}

// Selector picks the listing table. Empty fields match anything.
type Selector struct {
	ID    string
	Class string
}

// DefaultSelector matches the file tables of the bulk download service.
var DefaultSelector = Selector{Class: "filelist"}

func (s Selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Table {
		return false
	}
	if s.ID != "" && attr(n, "id") != s.ID {
		return false
	}
	if s.Class != "" && !slices.Contains(strings.Fields(attr(n, "class")), s.Class) {
		return false
	}
	return true
}

// ParseListing extracts file entries from an HTML listing page.
//
// The first table matching sel is used. Its first ListingHeaderRows rows are
// skipped, and every remaining row yields a Row whose name is the anchor text
// of the first cell. Later cells, when present, fill size, type and date.
// A page without a matching table, with fewer rows than the header, or with
// a data row lacking an anchor fails with PARSE_ERROR.
func ParseListing(content []byte, sel Selector) ([]Row, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeParse, err, "parse listing HTML")
	}

	tbl := find(doc, sel.matches)
	if tbl == nil {
		return nil, bulkerr.New(bulkerr.ErrCodeParse, "no listing table matching %s", sel)
	}

	trs := rowsOf(tbl)
	if len(trs) < ListingHeaderRows {
		return nil, bulkerr.New(bulkerr.ErrCodeParse,
			"listing table has %d rows, expected at least %d header rows", len(trs), ListingHeaderRows)
	}

	rows := make([]Row, 0, len(trs)-ListingHeaderRows)
	for i, tr := range trs[ListingHeaderRows:] {
		cells := cellsOf(tr)
		if len(cells) == 0 {
			return nil, bulkerr.New(bulkerr.ErrCodeParse, "listing row %d has no cells", i+ListingHeaderRows+1)
		}
		a := find(cells[0], func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.DataAtom == atom.A
		})
		if a == nil {
			return nil, bulkerr.New(bulkerr.ErrCodeParse, "listing row %d has no anchor in its first cell", i+ListingHeaderRows+1)
		}

		values := []string{text(a)}
		for _, c := range cells[1:] {
			values = append(values, text(c))
		}
		rows = append(rows, NewRow(ListingColumns, values...))
	}
	return rows, nil
}

func (s Selector) String() string {
	switch {
	case s.ID != "" && s.Class != "":
		return "table#" + s.ID + "." + s.Class
	case s.ID != "":
		return "table#" + s.ID
	case s.Class != "":
		return "table." + s.Class
	}
	return "table"
}

// find returns the first node in document order for which match is true.
func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

// rowsOf collects the tr elements of tbl, descending into thead/tbody/tfoot
// but not into nested tables.
func rowsOf(tbl *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Tr:
				out = append(out, c)
			case atom.Thead, atom.Tbody, atom.Tfoot:
				walk(c)
			}
		}
	}
	walk(tbl)
	return out
}

func cellsOf(tr *html.Node) []*html.Node {
	var out []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			out = append(out, c)
		}
	}
	return out
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
