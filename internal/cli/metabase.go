package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
	"github.com/matzehuels/bulkstat/pkg/metabase"
	"github.com/matzehuels/bulkstat/pkg/render"
)

// dimensionListDic is the dictionary that names every dimension.
const dimensionListDic = "dimlst"

// metabaseFlags select where the metabase comes from.
type metabaseFlags struct {
	file    string
	lenient bool
}

// metabaseCommand creates the "metabase" command group.
func (c *CLI) metabaseCommand() *cobra.Command {
	var mf metabaseFlags

	cmd := &cobra.Command{
		Use:     "metabase",
		Aliases: []string{"mb"},
		Short:   "Query datasets, dimensions and labels from the metabase",
		Long: `Query the metabase, the service's table of (dataset, dimension, label) triples.

The metabase is downloaded through the cache unless --file names a local copy.`,
	}
	cmd.PersistentFlags().StringVar(&mf.file, "file", "", "read the metabase from a local file")
	cmd.PersistentFlags().BoolVar(&mf.lenient, "lenient", false, "skip malformed lines instead of failing")

	cmd.AddCommand(c.mbValuesCommand(&mf, "datasets", metabase.FieldDataset, "List datasets, optionally those using a dimension"))
	cmd.AddCommand(c.mbValuesCommand(&mf, "dims", metabase.FieldDimension, "List dimensions, optionally those of a dataset"))
	cmd.AddCommand(c.mbValuesCommand(&mf, "labels", metabase.FieldLabel, "List labels, optionally of a dimension and dataset"))
	cmd.AddCommand(c.mbContainsCommand(&mf))
	cmd.AddCommand(c.mbSearchCommand(&mf))
	cmd.AddCommand(c.mbGraphCommand(&mf))

	return cmd
}

func (c *CLI) index(ctx context.Context, mf *metabaseFlags) (*metabase.Index, error) {
	cl, closeFn, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return c.loadIndex(ctx, cl, mf.file, mf.lenient)
}

func (c *CLI) mbValuesCommand(mf *metabaseFlags, use string, field metabase.Field, short string) *cobra.Command {
	var f metabase.Filter

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ix, err := c.index(ctx, mf)
			if err != nil {
				return err
			}
			vals, err := ix.Values(ctx, field, f)
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), vals)
		},
	}

	if field != metabase.FieldDataset {
		cmd.Flags().StringVar(&f.Dataset, "dataset", "", "restrict to a dataset")
	}
	if field != metabase.FieldDimension {
		cmd.Flags().StringVar(&f.Dimension, "dimension", "", "restrict to a dimension")
	}
	if field != metabase.FieldLabel {
		cmd.Flags().StringVar(&f.Label, "label", "", "restrict to a label")
	}
	return cmd
}

func (c *CLI) mbContainsCommand(mf *metabaseFlags) *cobra.Command {
	var f metabase.Filter

	cmd := &cobra.Command{
		Use:   "contains",
		Short: "Check whether a dataset, dimension or label combination exists",
		Example: `  bulkstat metabase contains --dataset aact_ali01
  bulkstat metabase contains --label EUR --dimension unit --dataset aact_ali01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f == (metabase.Filter{}) {
				return bulkerr.New(bulkerr.ErrCodeConfig, "give at least one of --dataset, --dimension or --label")
			}
			ix, err := c.index(cmd.Context(), mf)
			if err != nil {
				return err
			}

			var ok bool
			switch {
			case f.Label != "":
				ok, err = ix.ContainsLabel(f.Label, f.Dimension, f.Dataset)
			case f.Dimension != "" && f.Dataset != "":
				var dims []string
				if dims, err = ix.DimensionsFor(f.Dataset); err == nil {
					ok = slices.Contains(dims, f.Dimension)
				}
			case f.Dimension != "":
				ok, err = ix.ContainsDimension(f.Dimension)
			default:
				ok, err = ix.ContainsDataset(f.Dataset)
			}
			if err != nil {
				return err
			}
			if !ok {
				printWarning("not found")
				return bulkerr.New(bulkerr.ErrCodeNotFound, "no match for %s", describeFilter(f))
			}
			printSuccess("found")
			return nil
		},
	}

	cmd.Flags().StringVar(&f.Dataset, "dataset", "", "dataset code")
	cmd.Flags().StringVar(&f.Dimension, "dimension", "", "dimension code")
	cmd.Flags().StringVar(&f.Label, "label", "", "label code")
	return cmd
}

func (c *CLI) mbSearchCommand(mf *metabaseFlags) *cobra.Command {
	var (
		fieldName string
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "List values of a field matching a regular expression",
		Long: "List the distinct values of one field matching a regular expression.\n\n" +
			"With --all every field is searched and the matching records are printed\n" +
			"as dataset, dimension and label separated by tabs.",
		Example: `  bulkstat metabase search '^nama_10'` + "\n" +
			`  bulkstat metabase search --field dimension 'geo|unit'` + "\n" +
			`  bulkstat metabase search --all '^EUR$'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := metabase.ParseField(fieldName)
			if err != nil {
				return err
			}
			ix, err := c.index(cmd.Context(), mf)
			if err != nil {
				return err
			}
			if all {
				recs, err := ix.SearchRecords(args[0])
				if err != nil {
					return err
				}
				lines := make([]string, len(recs))
				for i, r := range recs {
					lines[i] = r.Dataset + "\t" + r.Dimension + "\t" + r.Label
				}
				return writeLines(cmd.OutOrStdout(), lines)
			}
			vals, err := ix.Search(field, args[0])
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), vals)
		},
	}

	cmd.Flags().StringVar(&fieldName, "field", string(metabase.FieldDataset), "field to search: dataset, dimension or label")
	cmd.Flags().BoolVar(&all, "all", false, "search every field and print matching records")
	cmd.MarkFlagsMutuallyExclusive("field", "all")
	return cmd
}

func (c *CLI) mbGraphCommand(mf *metabaseFlags) *cobra.Command {
	var (
		formatName string
		output     string
		opts       render.Options
		titles     bool
	)

	cmd := &cobra.Command{
		Use:   "graph <dataset>",
		Short: "Draw the dimensions of a dataset as a diagram",
		Example: `  bulkstat metabase graph aact_ali01 -o aact_ali01.svg
  bulkstat metabase graph aact_ali01 --labels --format dot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			format, err := render.ParseFormat(formatName)
			if err != nil {
				return err
			}
			ix, err := c.index(ctx, mf)
			if err != nil {
				return err
			}
			snap, err := ix.Snapshot()
			if err != nil {
				return err
			}
			if titles {
				opts.Titles = c.dimensionTitles(ctx)
			}

			dot, err := render.ToDOT(snap, args[0], opts)
			if err != nil {
				return err
			}
			out, err := render.Render(ctx, dot, format)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := os.WriteFile(output, out, 0o644); err != nil {
				return err
			}
			printSuccess("Rendered %s", args[0])
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", string(render.FormatSVG), "output format: dot, svg, pdf or png")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&opts.Labels, "labels", false, "draw the labels of each dimension")
	cmd.Flags().IntVar(&opts.MaxLabels, "max-labels", render.DefaultMaxLabels, "label nodes per dimension")
	cmd.Flags().BoolVar(&titles, "titles", false, "annotate dimensions with their names from the dimlst dictionary")
	return cmd
}

// dimensionTitles reads dimension titles from the dimlst dictionary, which
// maps dimension codes to names. It is best effort: failures are logged and
// yield no titles.
func (c *CLI) dimensionTitles(ctx context.Context) map[string]string {
	cl, closeFn, err := c.client(ctx)
	if err != nil {
		c.Logger.Warn("no dimension titles", "err", err)
		return nil
	}
	defer closeFn()

	titles, err := cl.Dictionary(ctx, dimensionListDic)
	if err != nil {
		c.Logger.Warn("no dimension titles", "err", err)
		return nil
	}
	return titles
}

// describeFilter renders the constrained fields of f for messages.
func describeFilter(f metabase.Filter) string {
	r := metabase.Record{Dataset: f.Dataset, Dimension: f.Dimension, Label: f.Label}
	var parts []string
	for _, field := range metabase.Fields {
		if v := r.Get(field); v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", field, v))
		}
	}
	return strings.Join(parts, " ")
}
