package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/dustcast-service/internal/adapter/earthengine"
	httpadapter "github.com/couchcryptid/dustcast-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/dustcast-service/internal/adapter/kafka"
	"github.com/couchcryptid/dustcast-service/internal/adapter/telegram"
	"github.com/couchcryptid/dustcast-service/internal/cache"
	"github.com/couchcryptid/dustcast-service/internal/config"
	"github.com/couchcryptid/dustcast-service/internal/history"
	"github.com/couchcryptid/dustcast-service/internal/observability"
	"github.com/couchcryptid/dustcast-service/internal/pipeline"
	"github.com/couchcryptid/dustcast-service/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clk := clockwork.NewRealClock()

	provider := earthengine.NewClient(cfg.Provider, logger)
	store := cache.New(cfg.Refresh.CurrentTTL, cfg.Refresh.ForecastTTL, clk)

	var hist *history.Store
	if cfg.History.Enabled {
		hist, err = history.Open(cfg.History.Path, cfg.History.MaxRows)
		if err != nil {
			logger.Error("failed to open history store", "path", cfg.History.Path, "error", err)
			os.Exit(1)
		}
		logger.Info("history persistence enabled", "path", cfg.History.Path, "max_rows", cfg.History.MaxRows)
	} else {
		logger.Info("history persistence disabled")
	}

	var publisher *kafkaadapter.Writer
	if cfg.Kafka.Enabled {
		publisher = kafkaadapter.NewWriter(cfg.Kafka, logger)
		logger.Info("kafka publishing enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	var notifier *telegram.Notifier
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewNotifier(cfg.Telegram, cfg.Location.Name)
		if err != nil {
			logger.Error("failed to create telegram notifier", "error", err)
			os.Exit(1)
		}
		logger.Info("telegram alerts enabled", "chat_id", cfg.Telegram.ChatID)
	} else {
		logger.Info("telegram alerts disabled")
	}

	pcfg := pipeline.Config{
		Provider:     provider,
		Store:        store,
		Params:       cfg.RiskParams(),
		Region:       cfg.Region(),
		ForecastDays: cfg.Refresh.ForecastDays,
		FetchTimeout: cfg.Provider.Timeout,
		Logger:       logger,
		Metrics:      metrics,
		Clock:        clk,
	}
	// Interface-typed config fields must stay nil when a sink is disabled; a
	// typed nil pointer would pass the pipeline's nil checks.
	if hist != nil {
		pcfg.Archiver = hist
	}
	if publisher != nil {
		pcfg.Publisher = publisher
	}
	if notifier != nil {
		pcfg.Notifier = notifier
	}
	p := pipeline.New(pcfg)

	sched := scheduler.New(scheduler.Config{
		Refresher:        p,
		CurrentInterval:  cfg.Refresh.CurrentInterval,
		ForecastInterval: cfg.Refresh.ForecastInterval,
		Logger:           logger,
		Metrics:          metrics,
		Clock:            clk,
	})

	var histReader httpadapter.HistoryReader
	if hist != nil {
		histReader = hist
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, histReader, cfg.Location.Name, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if hist != nil {
		if err := hist.Close(); err != nil {
			logger.Error("history store close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
