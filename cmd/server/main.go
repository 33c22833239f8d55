package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/hoverwars-server/internal/config"
	"github.com/DoyleJ11/hoverwars-server/internal/httpapi"
	"github.com/DoyleJ11/hoverwars-server/internal/hub"
	"github.com/DoyleJ11/hoverwars-server/internal/logging"
	"github.com/DoyleJ11/hoverwars-server/internal/results"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hoverwars-server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() {
		// Sync on stderr returns EINVAL on some platforms; ignore it.
		_ = log.Sync()
	}()

	var pub results.Publisher = results.Discard
	if cfg.NATSURL != "" {
		np, err := results.NewNATS(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		pub = np
		log.Info("publishing match results", zap.String("nats", cfg.NATSURL), zap.String("subject", results.Subject))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, hub.Options{
		Rules:   cfg.Rules,
		Logger:  log,
		Results: pub,
	})

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:            h,
			Logger:         log,
			AllowedOrigins: cfg.AllowedOrigins,
			Client:         httpapi.ClientConfig{LedgerURL: cfg.LedgerURL, LedgerAppID: cfg.LedgerAppID},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("hoverwars server starting",
		zap.String("addr", srv.Addr),
		zap.String("ledger_url", cfg.LedgerURL),
		zap.String("ledger_app_id", cfg.LedgerAppID),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.Int("match_seconds", cfg.Rules.MatchSeconds),
		zap.Int("win_score", cfg.Rules.WinScore),
		zap.Bool("debug_goal", cfg.Rules.DebugGoal))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Close rooms first so websocket writers see their outboxes close.
		h.Shutdown()
		return multierr.Combine(
			srv.Shutdown(sctx),
			pub.Close(),
		)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}
