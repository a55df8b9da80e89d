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

	"github.com/Clark-Hu/specialist-directory/internal/auth"
	"github.com/Clark-Hu/specialist-directory/internal/cache"
	"github.com/Clark-Hu/specialist-directory/internal/config"
	httpserver "github.com/Clark-Hu/specialist-directory/internal/http"
	"github.com/Clark-Hu/specialist-directory/internal/logger"
	"github.com/Clark-Hu/specialist-directory/internal/repository"
	"github.com/Clark-Hu/specialist-directory/internal/reviews"
	"github.com/Clark-Hu/specialist-directory/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log = log.With("service", "specialist-directory")

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		AutoMigrate:            cfg.DBAutoMigrate,
		Logger:                 log,
	})
	if err != nil {
		log.Fatal("connect database", "error", err)
	}
	defer st.Close()

	c := cache.New(ctx, cache.Options{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		DefaultTTL: time.Duration(cfg.CacheTTLSecs) * time.Second,
		Logger:     log,
	})
	defer c.Close()

	repo := repository.New(st)
	tokens := auth.NewTokens(
		cfg.JWTAccessSecret,
		cfg.JWTRefreshSecret,
		time.Duration(cfg.JWTAccessTTLMins)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLHours)*time.Hour,
	)
	authSvc := auth.NewService(repo.Users, tokens, auth.Options{Logger: log})

	server := httpserver.New(cfg, httpserver.Deps{
		Store:   st,
		Repo:    repo,
		Auth:    authSvc,
		Reviews: reviews.NewService(repo, c, log),
		Cache:   c,
		Logger:  log,
	})

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("graceful shutdown error", "error", err)
	}
	log.Info("server stopped")
}
