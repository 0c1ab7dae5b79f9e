package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bulkstat/pkg/bulk"
)

// tocCommand creates the "toc" command group.
func (c *CLI) tocCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toc",
		Short: "Look up titles and coverage in the table of contents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "title <code>",
		Short: "Print the title of a dataset or folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toc, err := c.contents(cmd.Context())
			if err != nil {
				return err
			}
			title, err := toc.Title(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), title)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "period <code>",
		Short: "Print the first and last period covered by a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toc, err := c.contents(cmd.Context())
			if err != nil {
				return err
			}
			start, end, err := toc.Period(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", start, end)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <code>",
		Short: "Show every table of contents field of a code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toc, err := c.contents(cmd.Context())
			if err != nil {
				return err
			}
			e, err := toc.Entry(args[0])
			if err != nil {
				return err
			}
			fmt.Println(StyleTitle.Render(e.Title))
			printKeyValue("Code", e.Code)
			printKeyValue("Type", e.Type)
			printKeyValue("Updated", e.LastUpdate)
			printKeyValue("Changed", e.LastChange)
			printKeyValue("Period", e.Start+" - "+e.End)
			return nil
		},
	})

	return cmd
}

func (c *CLI) contents(ctx context.Context) (*bulk.Contents, error) {
	cl, closeFn, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var toc *bulk.Contents
	err = c.retry(ctx, func() error {
		toc, err = cl.TableOfContents(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("table of contents loaded", "entries", toc.Len())
	return toc, nil
}
