package cli

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bulkstat/internal/server"
	"github.com/matzehuels/bulkstat/pkg/metabase"
	"github.com/matzehuels/bulkstat/pkg/observability"
)

// serveCommand creates the "serve" command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		mf      metabaseFlags
		addr    string
		reload  time.Duration
		metrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve metabase queries over HTTP",
		Long: `Load the metabase and answer queries over HTTP until interrupted.

Endpoints:
  GET  /datasets?dimension=        datasets, optionally using a dimension
  GET  /dimensions?dataset=        dimensions, optionally of a dataset
  GET  /labels?dimension=&dataset= labels
  GET  /values/{field}?...         any field filtered by the others
  GET  /contains?...               whether a combination exists
  GET  /search?q=&field=           values matching a regular expression
  GET  /records?dataset=           matching records
  POST /reload                     reload the metabase
  GET  /healthz, /readyz, /metrics

Every response names the snapshot that answered it in X-Snapshot-ID.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.cfg.Server
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("reload") {
				cfg.Reload = reload
			}
			if cmd.Flags().Changed("metrics") {
				cfg.Metrics = metrics
			}

			var metricsHandler http.Handler
			if cfg.Metrics {
				hooks, h, err := observability.NewPrometheusHooks()
				if err != nil {
					return err
				}
				observability.SetCacheHooks(hooks)
				observability.SetHTTPHooks(hooks)
				observability.SetIndexHooks(hooks)
				defer observability.Reset()
				metricsHandler = h
			}

			cl, closeFn, err := c.client(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			var src metabase.Source = metabase.FileSource{Path: mf.file, Lenient: mf.lenient}
			if mf.file == "" {
				if src, err = cl.MetabaseSource(mf.lenient); err != nil {
					return err
				}
			}

			srv := server.New(server.Options{
				Index:   metabase.New(metabase.WithLogger(c.Logger)),
				Source:  src,
				Logger:  c.Logger,
				Metrics: metricsHandler,
			})
			err = c.retry(ctx, func() error {
				_, err := srv.Reload(ctx)
				return err
			})
			if err != nil {
				return err
			}

			printInfo("Serving metabase on %s", StyleLink.Render(cfg.Addr))
			if cfg.Reload > 0 {
				printDetail("Reloading every %s", cfg.Reload)
			}
			return srv.Run(ctx, cfg.Addr, cfg.Reload)
		},
	}

	cmd.Flags().StringVar(&mf.file, "file", "", "read the metabase from a local file")
	cmd.Flags().BoolVar(&mf.lenient, "lenient", false, "skip malformed lines instead of failing")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().DurationVar(&reload, "reload", 0, "reload the metabase on this interval")
	cmd.Flags().BoolVar(&metrics, "metrics", true, "expose Prometheus metrics at /metrics")
	return cmd
}
