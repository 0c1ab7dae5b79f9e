package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bulkstat/pkg/cache"
	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheDropCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := cache.Open(ctx, c.cfg.CacheOptions())
			if err != nil {
				return err
			}
			defer store.Close()

			clearer, ok := store.(cache.Clearer)
			if !ok {
				printInfo("The %s backend cannot be cleared", c.cfg.Cache.Backend)
				return nil
			}
			count, err := clearer.Clear(ctx)
			if err != nil {
				return err
			}
			if count == 0 {
				printInfo("Cache is empty")
				return nil
			}
			printSuccess("Cleared %d cached entries", count)
			printDetail("Backend: %s", c.cfg.Cache.Backend)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := c.cfg.Cache.Dir
			switch c.cfg.Cache.Backend {
			case cache.BackendSQLite:
				if c.cfg.Cache.SQLitePath != "" {
					loc = c.cfg.Cache.SQLitePath
				}
			case cache.BackendRedis:
				loc = c.cfg.Cache.RedisAddr
			case cache.BackendMongo:
				loc = c.cfg.Cache.MongoURI
			case cache.BackendMemory, cache.BackendBigCache, cache.BackendRistretto, cache.BackendNone:
				loc = "(in memory)"
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), loc)
			return err
		},
	}
}

// cacheDropCommand creates the "cache drop" subcommand.
func (c *CLI) cacheDropCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <url>",
		Short: "Remove the cached response for one URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bulkerr.ValidateURL(args[0]); err != nil {
				return err
			}
			ctx := cmd.Context()
			s, closeFn, err := c.session(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := s.Invalidate(ctx, args[0]); err != nil {
				return err
			}
			printSuccess("Dropped %s", cache.KeyFor(args[0]))
			return nil
		},
	}
}
