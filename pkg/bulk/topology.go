package bulk

import (
	"maps"
	"slices"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// Kind is a resource kind of the bulk download service.
type Kind string

const (
	Dic  Kind = "dic"
	Data Kind = "data"
	Base Kind = "base"
	TOC  Kind = "toc"
)

// Kinds lists every resource kind.
var Kinds = []Kind{Dic, Data, Base, TOC}

// ParseKind validates s.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !slices.Contains(Kinds, k) {
		return "", bulkerr.New(bulkerr.ErrCodeConfig, "unknown resource kind %q (want dic, data, base or toc)", s)
	}
	return k, nil
}

// Layout describes where and how one resource kind is published.
type Layout struct {
	Dir         string   // Directory under the listing endpoint; empty for root files
	Exts        []string // Accepted extensions, default first
	Compression string   // Suffix of compressed files ("gz") or empty
	File        string   // Fixed file name for single-file kinds
	Localized   bool     // Files live under a language subdirectory
	Columns     []string // Column names of the published table
}

// Suffix returns the full file suffix for ext, including compression.
func (l Layout) Suffix(ext string) string {
	if ext == "" && len(l.Exts) > 0 {
		ext = l.Exts[0]
	}
	s := "." + ext
	if l.Compression != "" {
		s += "." + l.Compression
	}
	return s
}

// Topology maps each kind to its layout. Treat it as read-only.
type Topology map[Kind]Layout

// DefaultTopology returns the layout of the public service.
//
// Dictionaries are listed and served as plain .dic files even though the
// other tables are gzipped.
func DefaultTopology() Topology {
	return Topology{
		Dic: {
			Dir:       "dic",
			Exts:      []string{"dic"},
			Localized: true,
			Columns:   []string{"code", "label"},
		},
		Data: {
			Dir:         "data",
			Exts:        []string{"tsv", "sdmx"},
			Compression: "gz",
		},
		Base: {
			Exts:        []string{"txt"},
			Compression: "gz",
			File:        "metabase",
			Columns:     []string{"dataset", "dimension", "label"},
		},
		TOC: {
			Exts:      []string{"txt", "xml"},
			File:      "table_of_contents",
			Localized: true,
			Columns: []string{
				"title", "code", "type", "last update of data",
				"last table structure change", "data start", "data end",
			},
		},
	}
}

// Layout returns the layout of k.
func (t Topology) Layout(k Kind) (Layout, error) {
	l, ok := t[k]
	if !ok {
		return Layout{}, bulkerr.New(bulkerr.ErrCodeConfig, "no layout for resource kind %q", k)
	}
	return l, nil
}

// validate checks that every kind the client needs has a layout with at
// least one extension.
func (t Topology) validate() error {
	for _, k := range []Kind{Dic, Data, Base, TOC} {
		l, err := t.Layout(k)
		if err != nil {
			return err
		}
		if len(l.Exts) == 0 {
			return bulkerr.New(bulkerr.ErrCodeConfig, "layout for %q lists no extensions", k)
		}
	}
	return nil
}

// Clone returns a deep copy. NewClient keeps a clone so later edits to the
// caller's table do not leak into the client.
func (t Topology) Clone() Topology {
	out := maps.Clone(t)
	for k, l := range out {
		l.Exts = slices.Clone(l.Exts)
		l.Columns = slices.Clone(l.Columns)
		out[k] = l
	}
	return out
}
