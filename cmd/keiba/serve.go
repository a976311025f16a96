package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/takashi5144/keiba-3/internal/api"
	"github.com/takashi5144/keiba-3/internal/backtest"
	"github.com/takashi5144/keiba-3/internal/health"
	"github.com/takashi5144/keiba-3/internal/predictor"
	"github.com/takashi5144/keiba-3/internal/scheduler"
	"github.com/takashi5144/keiba-3/internal/service"
	"github.com/takashi5144/keiba-3/internal/strategy"
	"github.com/takashi5144/keiba-3/internal/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, live stream and recommendation scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx)
	},
}

func newRecommendationService(pred *predictor.Client) (*service.RecommendationService, error) {
	selector, err := newSelector()
	if err != nil {
		return nil, fmt.Errorf("invalid strategy configuration: %w", err)
	}
	return service.NewRecommendationService(selector, repos.Race, pred, service.RecommendationOptions{
		Bankroll:    decimal.NewFromFloat(cfg.Backtest.InitialBudget),
		Concurrency: cfg.Strategy.Concurrency,
		Location:    cfg.Location(),
	}, appLog)
}

func runServer(ctx context.Context) error {
	pred := predictor.NewClient(&cfg.Predictor, appLog)
	defer pred.Close()

	recommender, err := newRecommendationService(pred)
	if err != nil {
		return err
	}

	base, err := backtest.FromConfig(&cfg.Backtest)
	if err != nil {
		return fmt.Errorf("invalid backtest configuration: %w", err)
	}
	sc, err := strategy.FromConfig(&cfg.Strategy)
	if err != nil {
		return fmt.Errorf("invalid strategy configuration: %w", err)
	}
	backtests, err := service.NewBacktestService(base, sc, repos.Race, repos.Report, appLog)
	if err != nil {
		return err
	}

	hub := stream.NewHub(cfg.Server.AllowedOrigins, appLog)
	go hub.Run(ctx)

	checker := health.NewChecker(cfg.App.Name, Version, appLog)
	checker.Register("storage", health.PingerFunc(repos.Ping))
	checker.Register("predictor", health.PingerFunc(pred.HealthCheck))

	server, err := api.NewServer(cfg.Server, api.Dependencies{
		Recommender: recommender,
		Backtests:   backtests,
		Reports:     repos.Report,
		Stream:      hub,
		Health:      checker,
		MetricsPath: cfg.Metrics.Path,
	}, appLog)
	if err != nil {
		return err
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(recommender, hub, cfg.Location(), appLog)
		if err := sched.ScheduleRecommendations(cfg.Scheduler.Recommendations); err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
		appLog.WithField("next_run", sched.GetNextRun()).Info("Recommendation scheduler started")
	}

	checker.SetReady(true)
	appLog.WithFields(logrus.Fields{
		"addr":    cfg.ServerAddress(),
		"storage": cfg.Storage.Driver,
		"version": Version,
	}).Info("Keiba server starting")

	err = server.Start(ctx)
	checker.SetReady(false)
	return err
}
