package commands

import (
	"fmt"

	"go.uber.org/zap"

	"go-insights-pipeline/internal/backend"
	"go-insights-pipeline/internal/cache"
	"go-insights-pipeline/internal/config"
	"go-insights-pipeline/internal/dispatch"
	"go-insights-pipeline/internal/export"
	"go-insights-pipeline/internal/pipeline"
)

// core is the orchestration stack every command runs on
type core struct {
	cache      *cache.Cache
	dispatcher *dispatch.Dispatcher
	engine     *pipeline.Engine
	exporter   *export.Exporter
}

// newCore connects to the backend and builds the cache, the dispatcher and
// the engines. Notices go to the log and to every extra notifier.
func newCore(cfg *config.Config, log *zap.Logger, notifiers ...dispatch.Notifier) (*core, error) {
	be, err := backend.NewClient(backend.Options{
		BaseURL:     cfg.Backend.BaseURL,
		Token:       cfg.Backend.Token,
		Timeout:     cfg.Backend.Timeout,
		DialTimeout: cfg.Backend.DialTimeout,
		Routes:      cfg.Backend.Routes,
		Retry:       cfg.Backend.Retry,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	notify := dispatch.MultiNotifier{dispatch.LogNotifier{Log: log.Named("notice")}}
	notify = append(notify, notifiers...)

	c := cache.New()
	d := dispatch.New(c, be,
		dispatch.WithSignals(dispatch.NewSignals()),
		dispatch.WithNotifier(notify),
		dispatch.WithLogger(log))
	e := pipeline.NewEngine(d, pipeline.WithLogger(log))
	return &core{cache: c, dispatcher: d, engine: e, exporter: export.NewExporter(e, log)}, nil
}

// columnSets loads the configured column sets, if any
func columnSets(cfg *config.Config) (export.ColumnSets, error) {
	if cfg.Export.ColumnsFile == "" {
		return nil, nil
	}
	sets, err := export.LoadColumns(cfg.Export.ColumnsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load column sets: %w", err)
	}
	return sets, nil
}
