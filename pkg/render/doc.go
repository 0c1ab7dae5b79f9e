// Package render draws the structure of one dataset as a node-link diagram.
//
// # Overview
//
// A dataset is drawn as a root node with one node per dimension below it.
// With [Options.Labels] set, each dimension also fans out to its labels,
// truncated to [Options.MaxLabels] with a summary node for the rest.
//
//	dot, err := render.ToDOT(snapshot, "aact_ali01", render.Options{Labels: true})
//	svg, err := render.RenderSVG(ctx, dot)
//	pdf, err := render.ToPDF(svg)
//
// # Dependencies
//
// SVG is rendered in-process with [github.com/goccy/go-graphviz]. PDF and PNG
// conversion shells out to rsvg-convert from librsvg.
package render
