// Package app assembles the prediction service from configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"heartrisk/config"
	"heartrisk/db"
	qhttp "heartrisk/http"
	"heartrisk/ml"
	"heartrisk/monitoring"
	"heartrisk/predlog"
	"heartrisk/service"
)

// App owns every long-lived resource of a running service.
type App struct {
	Classifier *ml.Classifier
	Predictor  *service.Predictor
	Server     *qhttp.Server

	logger  *zap.Logger
	csv     *predlog.CSVLog
	mirror  *db.PredictionStore
	store   predlog.Store
	watcher *predlog.Watcher
	hub     *monitoring.Hub
}

// New loads the classifier and opens the prediction log. Any failure here
// must keep the process from listening.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger}

	classifier, err := ml.Load(ml.Options{
		ModelPath: cfg.Model.Path,
		ModelType: cfg.Model.Type,
		Arity:     cfg.Model.FeatureCount,
		CacheSize: cfg.Model.CacheSize,
	})
	if err != nil {
		return nil, err
	}
	a.Classifier = classifier
	logger.Info("model loaded",
		zap.String("path", cfg.Model.Path),
		zap.String("type", classifier.ModelType()),
		zap.Int("features", classifier.Arity()),
		zap.Float64("threshold", classifier.Threshold()),
	)

	csvLog, err := predlog.OpenCSV(cfg.PredictionLog.Path, predlog.Options{
		Sync:   cfg.PredictionLog.Fsync,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	a.csv = csvLog
	a.store = csvLog

	if cfg.PredictionLog.SQLitePath != "" {
		mirror, err := db.Open(cfg.PredictionLog.SQLitePath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open prediction mirror: %w", err)
		}
		a.mirror = mirror
		a.store = predlog.Tee(csvLog, mirror)
		logger.Info("prediction mirror enabled", zap.String("path", cfg.PredictionLog.SQLitePath))
	}

	if cfg.PredictionLog.Watch {
		watcher, err := predlog.Watch(csvLog, logger)
		if err != nil {
			// the log still works without the watcher
			logger.Warn("prediction log watch disabled", zap.Error(err))
		} else {
			a.watcher = watcher
		}
	}

	a.hub = monitoring.NewHub(logger)
	go a.hub.Run()

	a.Predictor = service.NewPredictor(classifier, a.store, service.Options{
		Metrics: monitoring.NewMetrics(),
		Feed:    a.hub,
		Logger:  logger,
	})

	deps := qhttp.Deps{
		Predictor: a.Predictor,
		Model: qhttp.ModelInfo{
			Type:      classifier.ModelType(),
			Features:  classifier.Arity(),
			Threshold: classifier.Threshold(),
		},
		Feed:   a.hub,
		Logger: logger,
	}
	if a.mirror != nil {
		deps.Recent = a.mirror
	}
	a.Server = qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		ReadTimeout:    cfg.Http.ReadTimeout,
		WriteTimeout:   cfg.Http.WriteTimeout,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	}, deps)

	return a, nil
}

// Shutdown stops accepting requests, waits for in-flight ones, then closes
// the stores.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.Server != nil {
		err = multierr.Append(err, a.Server.Stop(ctx))
	}
	return multierr.Append(err, a.Close())
}

// Close releases the feed, the watcher and the prediction stores.
func (a *App) Close() error {
	var err error
	if a.hub != nil {
		a.hub.Stop()
		a.hub = nil
	}
	if a.watcher != nil {
		err = multierr.Append(err, a.watcher.Close())
		a.watcher = nil
	}
	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
		a.store = nil
	} else {
		if a.csv != nil {
			err = multierr.Append(err, a.csv.Close())
		}
		if a.mirror != nil {
			err = multierr.Append(err, a.mirror.Close())
		}
	}
	a.csv, a.mirror = nil, nil
	return err
}
