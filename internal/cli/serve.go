package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AI2HU/compscout/internal/api"
	"github.com/AI2HU/compscout/internal/db"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/scheduler"
)

var (
	serveHost      string
	servePort      string
	serveOrigins   []string
	serveScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CompScout REST API server",
	Long: `Start the REST API server:

  POST /api/v1/website                 - crawl one website
  POST /api/v1/competitors/discover    - run a discovery and store it
  POST /api/v1/competitors/analyze     - analyze one competitor
  GET  /api/v1/competitors/top         - competitors seen most often
  GET  /api/v1/discoveries             - stored runs, newest first
  GET  /api/v1/discoveries/:id         - one stored run
  GET  /api/v1/router/usage            - model budget usage
  GET  /health                         - health check

The API runs on HTTP (no authentication).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "port to listen on (overrides config)")
	serveCmd.Flags().StringVarP(&serveHost, "host", "H", "", "host to bind to (overrides config)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "allowed CORS origins (overrides config, '*' for all)")
	serveCmd.Flags().BoolVar(&serveScheduler, "with-scheduler", false, "also run the configured watches")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	opts := api.Options{
		Host:           cfg.API.Host,
		Port:           cfg.API.Port,
		Environment:    cfg.API.Environment,
		AllowedOrigins: cfg.API.AllowedOrigins,
		RequestTimeout: cfg.API.RequestTimeout,
	}
	if serveHost != "" {
		opts.Host = serveHost
	}
	if servePort != "" {
		opts.Port = servePort
	}
	if len(serveOrigins) > 0 {
		opts.AllowedOrigins = serveOrigins
	}

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	deps := api.Deps{
		Websites:    p.websites,
		Competitors: p.competitors,
		Router:      p.router,
	}

	var store db.ResultStore
	if s, err := openStore(ctx, cfg.Database); err != nil {
		logger.Warning("Serving without a result store: %v", err)
	} else {
		store = s
		deps.Store = s
		defer closeStore(store)
	}

	if serveScheduler {
		sched := scheduler.New(p.competitors, store, cfg.Watches)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
		fmt.Fprintf(cmd.OutOrStdout(), "%s📅 Scheduler running %s watch(es)%s\n", InfoStyle, FormatCount(len(sched.Entries())), Reset)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s🚀 CompScout API on http://%s:%s/api/v1%s\n", SuccessStyle, opts.Host, opts.Port, Reset)
	fmt.Fprintf(cmd.OutOrStdout(), "%sPress Ctrl+C to stop the server%s\n", DimStyle, Reset)

	server := api.NewServer(deps, opts)
	return server.Run(ctx)
}
