package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/bulkstat/internal/config"
	"github.com/matzehuels/bulkstat/pkg/buildinfo"
	"github.com/matzehuels/bulkstat/pkg/bulk"
	"github.com/matzehuels/bulkstat/pkg/cache"
	"github.com/matzehuels/bulkstat/pkg/fetch"
	"github.com/matzehuels/bulkstat/pkg/httputil"
	"github.com/matzehuels/bulkstat/pkg/metabase"
)

// =============================================================================
// Constants
// =============================================================================

const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	cfg        config.Config
	configPath string
	flags      globalFlags
}

// globalFlags override config values when set on the command line.
type globalFlags struct {
	lang     string
	protocol string
	base     string
	backend  string
	noCache  bool
	refresh  bool
	maxAge   time.Duration
	timeout  time.Duration
	workers  int
	retries  int
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "bulkstat queries the Eurostat bulk download service",
		Long: `bulkstat lists, locates and downloads datasets and dimension dictionaries from the
Eurostat bulk download service, and answers structural questions from its metabase.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(cmd)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/bulkstat/config.toml)")
	pf.StringVar(&c.flags.lang, "lang", "", "dictionary language: en, de or fr")
	pf.StringVar(&c.flags.protocol, "protocol", "", "URL scheme: http, https or ftp")
	pf.StringVar(&c.flags.base, "base", "", "service base address")
	pf.StringVar(&c.flags.backend, "cache", "", "cache backend")
	pf.BoolVar(&c.flags.noCache, "no-cache", false, "disable the response cache")
	pf.BoolVar(&c.flags.refresh, "refresh", false, "refetch and overwrite cached responses")
	pf.DurationVar(&c.flags.maxAge, "max-age", 0, "treat cached responses older than this as stale (0 always refetches)")
	pf.DurationVar(&c.flags.timeout, "timeout", 0, "per-request timeout")
	pf.IntVar(&c.flags.workers, "workers", 0, "concurrent listing downloads")
	pf.IntVar(&c.flags.retries, "retries", 2, "retries for transient failures")

	root.AddCommand(c.urlCommand())
	root.AddCommand(c.statusCommand())
	root.AddCommand(c.getCommand())
	root.AddCommand(c.dimsCommand())
	root.AddCommand(c.datasetsCommand())
	root.AddCommand(c.updatedCommand())
	root.AddCommand(c.dictCommand())
	root.AddCommand(c.tocCommand())
	root.AddCommand(c.metabaseCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig layers file, environment and changed flags, then validates.
func (c *CLI) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("lang") {
		cfg.Lang = c.flags.lang
	}
	if changed("protocol") {
		cfg.Protocol = c.flags.protocol
	}
	if changed("base") {
		cfg.BaseURL = c.flags.base
	}
	if changed("cache") {
		cfg.Cache.Backend = c.flags.backend
	}
	if c.flags.noCache {
		cfg.Cache.Backend = cache.BackendNone
	}
	if changed("max-age") {
		cfg.Cache.MaxAge = config.MaxAgeOf(c.flags.maxAge)
	}
	if changed("timeout") {
		cfg.Timeout = c.flags.timeout
	}
	if changed("workers") {
		cfg.Workers = c.flags.workers
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	c.Logger.Debug("config loaded", "backend", cfg.Cache.Backend, "lang", cfg.Lang, "policy", c.policy())
	return nil
}

func (c *CLI) policy() cache.Policy {
	if c.flags.refresh {
		return cache.Refresh()
	}
	return c.cfg.Policy()
}

// =============================================================================
// Runtime Factory
// =============================================================================

// session opens the configured cache and returns a fetch session over it.
// The returned func closes the store.
func (c *CLI) session(ctx context.Context) (*fetch.Session, func(), error) {
	store, err := cache.Open(ctx, c.cfg.CacheOptions())
	if err != nil {
		return nil, nil, err
	}
	transport := fetch.NewHTTPTransport(httputil.NewClient(c.cfg.Timeout, c.cfg.UserAgent))
	s := fetch.New(store, transport,
		fetch.WithLogger(c.Logger),
		fetch.WithTimeout(c.cfg.Timeout),
	)
	closeFn := func() {
		if err := store.Close(); err != nil {
			c.Logger.Warn("close cache", "err", err)
		}
	}
	return s, closeFn, nil
}

// client returns a bulk service client over a fresh session.
func (c *CLI) client(ctx context.Context) (*bulk.Client, func(), error) {
	s, closeFn, err := c.session(ctx)
	if err != nil {
		return nil, nil, err
	}
	opts := c.cfg.BulkOptions()
	opts.Policy = c.policy()
	cl, err := bulk.NewClient(s, opts)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return cl, closeFn, nil
}

// loadIndex loads the metabase from file when set, otherwise from the
// service, behind a spinner.
func (c *CLI) loadIndex(ctx context.Context, cl *bulk.Client, file string, lenient bool) (*metabase.Index, error) {
	var src metabase.Source = metabase.FileSource{Path: file, Lenient: lenient}
	if file == "" {
		var err error
		if src, err = cl.MetabaseSource(lenient); err != nil {
			return nil, err
		}
	}

	prog := newProgress(c.Logger)
	var ix *metabase.Index
	err := spin(ctx, "Loading metabase...", func() error {
		return c.retry(ctx, func() error {
			var err error
			ix, err = metabase.Load(ctx, src)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	prog.done("Loaded metabase")
	return ix, nil
}

// retry runs fn, retrying transient fetch failures.
func (c *CLI) retry(ctx context.Context, fn func() error) error {
	b := httputil.Backoff{
		Attempts: c.flags.retries + 1,
		Delay:    time.Second,
		MaxDelay: 30 * time.Second,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			c.Logger.Warn("retrying", "attempt", attempt, "wait", wait, "err", err)
		},
	}
	return b.Do(ctx, fn)
}
