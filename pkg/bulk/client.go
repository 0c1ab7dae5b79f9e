package bulk

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/bulkstat/pkg/cache"
	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
	"github.com/matzehuels/bulkstat/pkg/fetch"
	"github.com/matzehuels/bulkstat/pkg/metabase"
	"github.com/matzehuels/bulkstat/pkg/request"
	"github.com/matzehuels/bulkstat/pkg/table"
)

// Service defaults.
const (
	DefaultBase  = "ec.europa.eu/eurostat/estat-navtree-portlet-prod"
	DefaultQuery = "BulkDownloadListing"
	DefaultLang  = "en"
	DefaultSort  = 1
)

// Langs lists the languages the service publishes dictionaries in.
var Langs = []string{"en", "de", "fr"}

// Letters are the start letters of the per-letter dataset listing pages.
var Letters = strings.Split("abcdefghijklmnopqrstuvwxyz", "")

// Options configures a Client. Zero fields take the service defaults.
type Options struct {
	Base     string
	Query    string
	Protocol request.Protocol
	Lang     string
	Policy   cache.Policy
	Workers  int
	Topology Topology
	Selector table.Selector
}

// Client talks to the bulk download service through a fetch session.
type Client struct {
	session *fetch.Session
	base    request.Spec
	lang    string
	policy  cache.Policy
	workers int
	topo    Topology
	sel     table.Selector
	logger  *log.Logger
}

// NewClient validates opts and returns a client.
func NewClient(session *fetch.Session, opts Options) (*Client, error) {
	if session == nil {
		return nil, bulkerr.New(bulkerr.ErrCodeConfig, "bulk client requires a fetch session")
	}
	if opts.Base == "" {
		opts.Base = DefaultBase
	}
	if opts.Query == "" {
		opts.Query = DefaultQuery
	}
	if opts.Protocol == "" {
		opts.Protocol = request.DefaultProtocol
	}
	if !opts.Protocol.Valid() {
		return nil, bulkerr.New(bulkerr.ErrCodeConfig, "protocol %q not recognised", opts.Protocol)
	}
	if opts.Lang == "" {
		opts.Lang = DefaultLang
	}
	if !slices.Contains(Langs, opts.Lang) {
		return nil, bulkerr.New(bulkerr.ErrCodeConfig, "language %q not recognised (want en, de or fr)", opts.Lang)
	}
	if opts.Topology == nil {
		opts.Topology = DefaultTopology()
	} else {
		opts.Topology = opts.Topology.Clone()
	}
	if err := opts.Topology.validate(); err != nil {
		return nil, err
	}
	if opts.Selector == (table.Selector{}) {
		opts.Selector = table.DefaultSelector
	}

	return &Client{
		session: session,
		base: request.Spec{
			Base:     opts.Base,
			Path:     []string{opts.Query},
			Query:    request.NewQuery().Set(request.SortKey, DefaultSort),
			Protocol: opts.Protocol,
		},
		lang:    opts.Lang,
		policy:  opts.Policy,
		workers: opts.Workers,
		topo:    opts.Topology,
		sel:     opts.Selector,
		logger:  session.Logger(),
	}, nil
}

// Lang returns the dictionary language.
func (c *Client) Lang() string { return c.lang }

// Session returns the underlying fetch session.
func (c *Client) Session() *fetch.Session { return c.session }

// ListingURL returns the directory listing URL for kind. letter selects a
// dataset listing page and must be empty for other kinds.
func (c *Client) ListingURL(kind Kind, letter string) (string, error) {
	l, err := c.topo.Layout(kind)
	if err != nil {
		return "", err
	}
	if l.Dir == "" {
		return "", bulkerr.New(bulkerr.ErrCodeConfig, "resource kind %q has no listing", kind)
	}
	dir := l.Dir
	if l.Localized {
		dir += "/" + c.lang
	}
	q := request.NewQuery().Set("dir", dir)
	if letter != "" {
		if kind != Data || !slices.Contains(Letters, letter) {
			return "", bulkerr.New(bulkerr.ErrCodeConfig, "listing start %q not valid for %s", letter, kind)
		}
		q.Set("start", letter)
	}
	return c.base.With(nil, q).URL()
}

// FileURL returns the download URL of a file. name is the dataset or
// dimension code; it is ignored for single-file kinds. ext selects one of
// the kind's extensions, empty meaning the default.
func (c *Client) FileURL(kind Kind, name, ext string) (string, error) {
	l, err := c.topo.Layout(kind)
	if err != nil {
		return "", err
	}
	if ext == "" {
		ext = l.Exts[0]
	}
	if !slices.Contains(l.Exts, ext) {
		return "", bulkerr.New(bulkerr.ErrCodeConfig, "extension %q not recognised for %s (want %s)",
			ext, kind, strings.Join(l.Exts, ", "))
	}

	var file string
	switch {
	case l.File != "" && l.Localized && ext != "xml":
		file = l.File + "_" + c.lang + l.Suffix(ext)
	case l.File != "":
		file = l.File + l.Suffix(ext)
	default:
		if err := bulkerr.ValidateCode(name); err != nil {
			return "", err
		}
		file = name + l.Suffix(ext)
	}

	parts := []string{}
	if l.Dir != "" {
		parts = append(parts, l.Dir)
	}
	if l.Localized && l.File == "" {
		parts = append(parts, c.lang)
	}
	parts = append(parts, file)
	return c.base.With(nil, request.NewQuery().Set("file", strings.Join(parts, "/"))).URL()
}

// Get downloads a file through the cache.
func (c *Client) Get(ctx context.Context, kind Kind, name, ext string) ([]byte, error) {
	u, err := c.FileURL(kind, name, ext)
	if err != nil {
		return nil, err
	}
	return c.session.Fetch(ctx, u, c.policy)
}

// Exists probes a file with a HEAD request. A 404 is reported as false
// without error; other failures are returned.
func (c *Client) Exists(ctx context.Context, kind Kind, name string) (bool, error) {
	u, err := c.FileURL(kind, name, "")
	if err != nil {
		return false, err
	}
	status, err := c.session.HeadStatus(ctx, u)
	switch {
	case err == nil:
		return true, nil
	case status == http.StatusNotFound:
		return false, nil
	}
	return false, err
}

// MetabaseSource returns a source that loads the metabase file through the
// client's session and policy.
func (c *Client) MetabaseSource(lenient bool) (metabase.Source, error) {
	u, err := c.FileURL(Base, "", "")
	if err != nil {
		return nil, err
	}
	return metabase.RemoteSource{Session: c.session, URL: u, Policy: c.policy, Lenient: lenient}, nil
}
