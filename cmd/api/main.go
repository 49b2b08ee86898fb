package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmokoena/escrow-backend/internal/api"
	"github.com/tmokoena/escrow-backend/internal/auth"
	"github.com/tmokoena/escrow-backend/internal/config"
	"github.com/tmokoena/escrow-backend/internal/db"
	"github.com/tmokoena/escrow-backend/internal/logger"
	"github.com/tmokoena/escrow-backend/internal/metrics"
	"github.com/tmokoena/escrow-backend/internal/models"
	"github.com/tmokoena/escrow-backend/internal/notifier"
	"github.com/tmokoena/escrow-backend/internal/payment"
	repo "github.com/tmokoena/escrow-backend/internal/repository"
	"github.com/tmokoena/escrow-backend/internal/repository/memory"
	"github.com/tmokoena/escrow-backend/internal/repository/postgres"
	"github.com/tmokoena/escrow-backend/internal/services"
	"github.com/tmokoena/escrow-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	var repos repo.Repos
	var atomic repo.Atomic
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("db connect", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if os.Getenv("APP_MIGRATE") == "true" {
			if err := db.RunMigrations(ctx, pool); err != nil {
				log.Error("migrations", "err", err)
				os.Exit(1)
			}
		}
		repos, atomic = postgres.NewRepositories(pool)
		log.Info("storage", "backend", "postgres")
	} else {
		repos, atomic = memory.NewRepositories()
		log.Warn("storage", "backend", "memory", "note", "state is lost on restart")
	}

	wp := worker.NewPool(cfg.WorkerCount)
	defer wp.Stop()

	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer,
		15*time.Minute, 7*24*time.Hour)

	nf := notifier.New(repos.Notifications, wp, log)
	adapter := payment.NewSimulated(cfg.PaymentLatency)

	userSvc := services.NewUserService(repos.Users, tm)
	escrowSvc := services.NewEscrowService(repos, atomic, adapter, nf, wp, log)

	if cfg.AdminEmail != "" {
		if u, err := repos.Users.GetByEmail(ctx, cfg.AdminEmail); err == nil {
			if err := userSvc.GrantAdmin(ctx, u.ID); err != nil {
				log.Error("admin bootstrap", "err", err)
			}
		} else if !errors.Is(err, models.ErrNotFound) {
			log.Error("admin bootstrap lookup", "err", err)
		}
	}

	r := api.NewRouter(cfg, tm, userSvc, escrowSvc, nf)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
