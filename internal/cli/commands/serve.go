package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-insights-pipeline/internal/api"
	"go-insights-pipeline/internal/api/handler"
	"go-insights-pipeline/internal/config"
	"go-insights-pipeline/internal/export"
	"go-insights-pipeline/internal/store"
	"go-insights-pipeline/pkg/logger"
	"go-insights-pipeline/pkg/router"
	"go-insights-pipeline/pkg/utils"
)

var watchConfig bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the HTTP API and websocket stream",
	Long: `Run the HTTP API over the orchestration core.

Serves list, variant, export and cache endpoints under /api/v1, streams cache
writes, completion signals and notices on /ws and the API docs on /swagger/.`,
	Example: `  $ insights serve
  $ insights serve -c configs/config.yaml --watch`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&watchConfig, "watch", false, "reload log level, column sets and row cap when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log := app.cfg, app.log

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	out := utils.NewOutputManager(cfg.Export.OutputDir)
	if err := out.EnsureOutputDirExists(); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	sets, err := columnSets(cfg)
	if err != nil {
		return err
	}

	hub := api.NewHub(log)
	c, err := newCore(cfg, log, hub)
	if err != nil {
		return err
	}
	stopForward := hub.Forward(c.cache, c.dispatcher.Signals())

	jobs := export.NewService(c.exporter, st, out,
		export.WithColumnSets(sets),
		export.WithDefaultRowCap(cfg.Export.RowCap),
		export.WithServiceLogger(log))

	r := router.New(router.WithLogger(log.Named("http")))
	api.RegisterRoutes(r, handler.New(c.engine, jobs, st, log), hub)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Start(gctx, cfg.ServerAddr(), cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	})
	if watchConfig && cfgFile != "" {
		g.Go(func() error {
			return config.Watch(gctx, cfgFile, log, func(next *config.Config) {
				reload(next, jobs, log)
			})
		})
	}

	log.Info("insights API starting", zap.String("addr", cfg.ServerAddr()), zap.String("version", version))
	err = g.Wait()

	hub.Close()
	stopForward()
	jobs.Wait()
	c.dispatcher.Drain()
	log.Info("server stopped")
	return err
}

// reload applies the settings that can change without a restart
func reload(next *config.Config, jobs *export.Service, log *zap.Logger) {
	if l, err := logger.ParseLevel(next.Log.Level); err == nil {
		app.level.SetLevel(l)
	}
	sets, err := columnSets(next)
	if err != nil {
		log.Warn("column sets not reloaded", zap.Error(err))
		return
	}
	jobs.Reconfigure(sets, next.Export.RowCap)
	log.Info("settings reloaded",
		zap.String("log_level", next.Log.Level),
		zap.Int("row_cap", next.Export.RowCap),
		zap.Int("column_sets", len(sets)))
}
