package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/config"
	"github.com/meikuraledutech/flow/handle"
	"github.com/meikuraledutech/flow/postgres"
	"github.com/meikuraledutech/flow/push"
	"github.com/meikuraledutech/flow/sqlite"
	"github.com/meikuraledutech/flow/validate"
)

func main() {
	cfg, err := config.Load(os.Getenv("FLOW_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	logger := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store flow.Store
	switch cfg.Driver {
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("open sqlite: %v", err)
		}
		defer s.Close()
		store = s
	default:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	}
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}

	regOpts := []handle.Option{handle.WithLogger(logger)}
	if cfg.StrictKinds {
		regOpts = append(regOpts, handle.WithStrictKinds())
	}
	srv := &server{
		store:     store,
		validator: validate.New(validate.WithRegistry(handle.NewRegistry(regOpts...))),
		logger:    logger,
		metrics:   newMetrics(),
	}

	var pushSrv *http.Server
	if cfg.PushListen != "" {
		hub := push.NewHub(logger)
		srv.publisher = hub
		pushSrv = &http.Server{Addr: cfg.PushListen, Handler: hub, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("push listening", "addr", cfg.PushListen)
			if err := pushSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("push server stopped", "error", err)
			}
		}()
	}

	app := newApp(srv)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if pushSrv != nil {
			pushSrv.Shutdown(shutdownCtx)
		}
		app.ShutdownWithContext(shutdownCtx)
	}()

	logger.Info("api listening", "addr", cfg.Listen, "driver", cfg.Driver)
	if err := app.Listen(cfg.Listen); err != nil {
		log.Fatal(err)
	}
}
