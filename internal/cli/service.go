package cli

import (
	"fmt"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bulkstat/pkg/bulk"
	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
	"github.com/matzehuels/bulkstat/pkg/table"
)

// kindArgs parses "<kind> [name]" positional arguments. Single-file kinds
// take no name.
func kindArgs(args []string) (bulk.Kind, string, error) {
	kind, err := bulk.ParseKind(args[0])
	if err != nil {
		return "", "", err
	}
	var name string
	if len(args) > 1 {
		name = args[1]
	}
	return kind, name, nil
}

const kindHelp = `Kinds:
  dic   dimension dictionary (name = dimension code, e.g. geo)
  data  dataset (name = dataset code, e.g. aact_ali01)
  base  the metabase file
  toc   the table of contents`

// urlCommand creates the "url" command.
func (c *CLI) urlCommand() *cobra.Command {
	var ext, start string
	var listing bool

	cmd := &cobra.Command{
		Use:   "url <kind> [name]",
		Short: "Print the download or listing URL of a resource",
		Long:  "Print the download URL of a file, or with --listing the URL of its directory listing.\n\n" + kindHelp,
		Example: `  bulkstat url data aact_ali01
  bulkstat url toc --ext xml
  bulkstat url data --listing --start a`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, name, err := kindArgs(args)
			if err != nil {
				return err
			}
			cl, closeFn, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var u string
			if listing {
				u, err = cl.ListingURL(kind, start)
			} else {
				u, err = cl.FileURL(kind, name, ext)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), u)
			return err
		},
	}

	cmd.Flags().StringVar(&ext, "ext", "", "file extension (default: the kind's first)")
	cmd.Flags().BoolVar(&listing, "listing", false, "print the directory listing URL instead")
	cmd.Flags().StringVar(&start, "start", "", "start letter of a dataset listing page")
	return cmd
}

// statusCommand creates the "status" command.
func (c *CLI) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [kind name]",
		Short: "Probe the service, or check that a file exists",
		Long:  "Without arguments, probe the dataset listing endpoint. With a kind and name, check the file with a HEAD request.\n\n" + kindHelp,
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cl, closeFn, err := c.client(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if len(args) == 0 {
				u, err := cl.ListingURL(bulk.Data, "")
				if err != nil {
					return err
				}
				var status int
				err = c.retry(ctx, func() error {
					status, err = cl.Session().HeadStatus(ctx, u)
					return err
				})
				printKeyValue("Endpoint", StyleLink.Render(u))
				if status != 0 {
					printKeyValue("Status", fmt.Sprintf("%d %s", status, http.StatusText(status)))
				}
				if err != nil {
					printError("Service unreachable")
					return err
				}
				printSuccess("Service reachable")
				return nil
			}

			kind, name, err := kindArgs(args)
			if err != nil {
				return err
			}
			var ok bool
			err = c.retry(ctx, func() error {
				ok, err = cl.Exists(ctx, kind, name)
				return err
			})
			if err != nil {
				return err
			}
			if !ok {
				printError("%s %q not found", kind, name)
				return bulkerr.New(bulkerr.ErrCodeNotFound, "%s %q not found", kind, name)
			}
			printSuccess("%s %q exists", kind, name)
			return nil
		},
	}
}

// getCommand creates the "get" command.
func (c *CLI) getCommand() *cobra.Command {
	var ext, output, decompress string

	cmd := &cobra.Command{
		Use:   "get <kind> [name]",
		Short: "Download a file through the cache",
		Long:  "Download a file, serving it from the cache when a fresh copy exists.\n\n" + kindHelp,
		Example: `  bulkstat get data aact_ali01 -o aact_ali01.tsv.gz
  bulkstat get dic geo
  bulkstat get base --decompress | head
  bulkstat get data aact_ali01 --decompress=gz`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, name, err := kindArgs(args)
			if err != nil {
				return err
			}
			comp, err := table.ParseCompression(decompress)
			if err != nil {
				return err
			}
			cl, closeFn, err := c.client(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			var body []byte
			err = spin(ctx, "Downloading...", func() error {
				return c.retry(ctx, func() error {
					var err error
					body, err = cl.Get(ctx, kind, name, ext)
					return err
				})
			})
			if err != nil {
				return err
			}
			if comp != table.None {
				if body, err = table.Decompress(body, comp); err != nil {
					return err
				}
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(output, body, 0o644); err != nil {
				return err
			}
			printSuccess("Downloaded %d bytes", len(body))
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVar(&ext, "ext", "", "file extension (default: the kind's first)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&decompress, "decompress", "", "decode content: gz, bz2, zip or infer (bare flag infers)")
	cmd.Flags().Lookup("decompress").NoOptDefVal = "infer"
	return cmd
}

// dimsCommand creates the "dims" command.
func (c *CLI) dimsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dims",
		Short: "List the dimensions with a published dictionary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cl, closeFn, err := c.client(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			var dims []string
			err = c.retry(ctx, func() error {
				dims, err = cl.Dimensions(ctx)
				return err
			})
			if err != nil {
				return err
			}
			c.Logger.Debug("listed dimensions", "count", len(dims))
			return writeLines(cmd.OutOrStdout(), dims)
		},
	}
}

// datasetsCommand creates the "datasets" command.
func (c *CLI) datasetsCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List every dataset by scanning the per-letter listing pages",
		Long: `List every dataset by scanning the 26 per-letter listing pages concurrently.

By default a page that cannot be fetched is reported and skipped. With --strict
the first failure aborts the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cl, closeFn, err := c.client(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			prog := newProgress(c.Logger)
			var list *bulk.DatasetList
			err = spin(ctx, "Scanning dataset listings...", func() error {
				var err error
				list, err = cl.Datasets(ctx, !strict)
				return err
			})
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Listed %d datasets", len(list.Names)))
			if len(list.Missing) > 0 {
				c.Logger.Warn("incomplete dataset list", "missing", strings.Join(list.Missing, ","))
			}
			return writeLines(cmd.OutOrStdout(), list.Names)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail on the first listing page that cannot be fetched")
	return cmd
}

// updatedCommand creates the "updated" command.
func (c *CLI) updatedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "updated <dic|data> <name>",
		Short: "Print the listing date of a dataset or dictionary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, name, err := kindArgs(args)
			if err != nil {
				return err
			}
			cl, closeFn, err := c.client(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			var date string
			err = c.retry(ctx, func() error {
				date, err = cl.LastUpdate(ctx, kind, name)
				return err
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), date)
			return err
		},
	}
}

// dictCommand creates the "dict" command.
func (c *CLI) dictCommand() *cobra.Command {
	var grep string

	cmd := &cobra.Command{
		Use:   "dict <dimension>",
		Short: "Print the code and label pairs of a dimension dictionary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cl, closeFn, err := c.client(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			var dict map[string]string
			err = c.retry(ctx, func() error {
				dict, err = cl.Dictionary(ctx, args[0])
				return err
			})
			if err != nil {
				return err
			}

			needle := strings.ToLower(grep)
			var lines []string
			for _, code := range slices.Sorted(maps.Keys(dict)) {
				label := dict[code]
				if needle != "" && !strings.Contains(strings.ToLower(code+" "+label), needle) {
					continue
				}
				lines = append(lines, code+"\t"+label)
			}
			return writeLines(cmd.OutOrStdout(), lines)
		},
	}

	cmd.Flags().StringVar(&grep, "grep", "", "only show entries whose code or label contains this text")
	return cmd
}
