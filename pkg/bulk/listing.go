package bulk

import (
	"context"
	"strings"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
	"github.com/matzehuels/bulkstat/pkg/fetch"
	"github.com/matzehuels/bulkstat/pkg/table"
)

// Entry is one file of a directory listing.
type Entry struct {
	Name string // Code with the suffix stripped
	File string // File name as listed
	Size string
	Type string
	Date string
}

// Listing fetches and parses one listing page. Only files carrying the
// kind's default suffix are returned.
func (c *Client) Listing(ctx context.Context, kind Kind, letter string) ([]Entry, error) {
	u, err := c.ListingURL(kind, letter)
	if err != nil {
		return nil, err
	}
	body, err := c.session.Fetch(ctx, u, c.policy)
	if err != nil {
		return nil, err
	}
	return c.entries(kind, body)
}

func (c *Client) entries(kind Kind, body []byte) ([]Entry, error) {
	l, err := c.topo.Layout(kind)
	if err != nil {
		return nil, err
	}
	rows, err := table.ParseListing(body, c.sel)
	if err != nil {
		return nil, err
	}
	suffix := l.Suffix("")
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		file := r.Get(table.ColName)
		name, ok := table.StripSuffix(file, suffix)
		if !ok {
			continue
		}
		out = append(out, Entry{
			Name: name,
			File: file,
			Size: r.Get(table.ColSize),
			Type: r.Get(table.ColType),
			Date: r.Get(table.ColDate),
		})
	}
	return out, nil
}

// Dimensions returns the codes of every published dimension dictionary.
func (c *Client) Dimensions(ctx context.Context) ([]string, error) {
	entries, err := c.Listing(ctx, Dic, "")
	if err != nil {
		return nil, err
	}
	return names(entries), nil
}

// DatasetList is the result of scanning the per-letter dataset listings.
type DatasetList struct {
	Names   []string
	Missing []string // Letters whose page could not be fetched or parsed
}

// Datasets scans the 26 per-letter listing pages concurrently. With
// tolerant set, a page that fails is logged and reported in Missing;
// otherwise the first failure is returned.
func (c *Client) Datasets(ctx context.Context, tolerant bool) (*DatasetList, error) {
	urls := make([]string, len(Letters))
	for i, letter := range Letters {
		u, err := c.ListingURL(Data, letter)
		if err != nil {
			return nil, err
		}
		urls[i] = u
	}

	results, err := c.session.FetchAll(ctx, urls, c.policy, fetch.FanOut{Workers: c.workers, Tolerant: tolerant})
	if err != nil {
		return nil, err
	}

	list := &DatasetList{}
	for i, r := range results {
		if !r.OK() {
			list.Missing = append(list.Missing, Letters[i])
			continue
		}
		entries, err := c.entries(Data, r.Body)
		if err != nil {
			if !tolerant {
				return nil, err
			}
			c.logger.Warn("skipping listing page", "start", Letters[i], "err", err)
			list.Missing = append(list.Missing, Letters[i])
			continue
		}
		list.Names = append(list.Names, names(entries)...)
	}
	return list, nil
}

// LastUpdate returns the listing date of a dataset or dimension file.
func (c *Client) LastUpdate(ctx context.Context, kind Kind, name string) (string, error) {
	if err := bulkerr.ValidateCode(name); err != nil {
		return "", err
	}
	var letter string
	switch kind {
	case Dic:
	case Data:
		letter = strings.ToLower(name[:1])
		if letter < "a" || letter > "z" {
			return "", bulkerr.New(bulkerr.ErrCodeNotFound, "no listing page for dataset %q", name)
		}
	default:
		return "", bulkerr.New(bulkerr.ErrCodeConfig, "last update is only listed for dic and data")
	}

	entries, err := c.Listing(ctx, kind, letter)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Name == name {
			return e.Date, nil
		}
	}
	return "", bulkerr.New(bulkerr.ErrCodeNotFound, "%s %q not found in listing", kind, name)
}

// Dictionary downloads the dictionary of one dimension as code to label.
func (c *Client) Dictionary(ctx context.Context, dimension string) (map[string]string, error) {
	body, err := c.Get(ctx, Dic, dimension, "")
	if err != nil {
		return nil, err
	}
	l, _ := c.topo.Layout(Dic)
	rows, err := table.ParseDelimited(body, table.DelimitedOptions{
		Columns:     l.Columns,
		Compression: table.Infer,
		Lenient:     true,
		OnSkip: func(line int, err error) {
			c.logger.Debug("skipping dictionary line", "dimension", dimension, "line", line, "err", err)
		},
	})
	if err != nil {
		return nil, err
	}
	codes, labels := table.Column(rows, "code"), table.Column(rows, "label")
	out := make(map[string]string, len(codes))
	for i, code := range codes {
		out[code] = strings.TrimSpace(labels[i])
	}
	return out, nil
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}
