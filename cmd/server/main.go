package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/basketbox/backend/internal/config"
	"github.com/basketbox/backend/internal/httpapi"
	"github.com/basketbox/backend/internal/identity"
	"github.com/basketbox/backend/internal/ledger"
	"github.com/basketbox/backend/internal/registry"
	"github.com/basketbox/backend/internal/ws"
)

func main() {
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.Production() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var coins ledger.Service
	if cfg.DatabaseURL != "" {
		pg, err := ledger.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("ledger database unavailable", zap.Error(err))
		}
		coins = pg
		logger.Info("ledger: postgres")
	} else {
		coins = ledger.NewMemory()
		logger.Info("ledger: in-memory")
	}

	var verifier identity.Verifier = identity.RejectAll{}
	if cfg.AuthVerifyURL != "" {
		verifier = identity.NewHTTPVerifier(cfg.AuthVerifyURL)
	}

	hub := registry.NewHub(ctx, coins, registry.RoomDefaults{
		DefaultWager: cfg.DefaultWager,
	}, logger)

	handler := httpapi.SetupRoutes(hub, ws.Deps{
		Hub:      hub,
		Verifier: verifier,
		Ledger:   coins,
		Logger:   logger,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
