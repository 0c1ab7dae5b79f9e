package render

import (
	"bytes"
	"fmt"
	"strings"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
	"github.com/matzehuels/bulkstat/pkg/metabase"
)

// DefaultMaxLabels caps the label nodes drawn per dimension.
const DefaultMaxLabels = 12

// Options configures diagram generation.
type Options struct {
	// Labels draws the labels of every dimension.
	Labels bool

	// MaxLabels caps label nodes per dimension. Zero means DefaultMaxLabels.
	MaxLabels int

	// Titles maps dimension codes to display titles, e.g. from a dictionary.
	Titles map[string]string
}

// ToDOT converts the structure of dataset in snap to Graphviz DOT source.
// A dataset absent from the snapshot fails with NOT_FOUND.
func ToDOT(snap *metabase.Snapshot, dataset string, opts Options) (string, error) {
	if snap == nil {
		return "", bulkerr.New(bulkerr.ErrCodeNotLoaded, "metabase not loaded")
	}
	dims, err := snap.Values(metabase.FieldDimension, metabase.Filter{Dataset: dataset})
	if err != nil {
		return "", err
	}
	if len(dims) == 0 {
		return "", bulkerr.New(bulkerr.ErrCodeNotFound, "dataset %q not in metabase", dataset)
	}
	limit := opts.MaxLabels
	if limit <= 0 {
		limit = DefaultMaxLabels
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.2;\n")
	buf.WriteString("\n")

	root := "ds:" + dataset
	fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=\"#dbeafe\", fontsize=18];\n", root, dataset)

	for _, dim := range dims {
		id := "dim:" + dim
		fmt.Fprintf(&buf, "  %q [label=%q];\n", id, dimLabel(dim, opts.Titles))
		fmt.Fprintf(&buf, "  %q -> %q;\n", root, id)
		if !opts.Labels {
			continue
		}

		labels, err := snap.Values(metabase.FieldLabel, metabase.Filter{Dataset: dataset, Dimension: dim})
		if err != nil {
			return "", err
		}
		shown := labels
		if len(shown) > limit {
			shown = shown[:limit]
		}
		for _, l := range shown {
			lid := "lbl:" + dim + ":" + l
			fmt.Fprintf(&buf, "  %q [label=%q, shape=plaintext, style=\"\"];\n", lid, l)
			fmt.Fprintf(&buf, "  %q -> %q [arrowhead=none, color=grey];\n", id, lid)
		}
		if rest := len(labels) - len(shown); rest > 0 {
			mid := "more:" + dim
			fmt.Fprintf(&buf, "  %q [label=%q, style=\"rounded,filled,dashed\", fillcolor=lightgrey];\n",
				mid, fmt.Sprintf("+%d more", rest))
			fmt.Fprintf(&buf, "  %q -> %q [arrowhead=none, color=grey, style=dashed];\n", id, mid)
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func dimLabel(dim string, titles map[string]string) string {
	t := strings.TrimSpace(titles[dim])
	if t == "" || t == dim {
		return dim
	}
	return dim + "\n" + t
}
