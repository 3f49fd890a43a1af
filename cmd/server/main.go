package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roleta_leads/backend/internal/config"
	"github.com/roleta_leads/backend/internal/crm"
	"github.com/roleta_leads/backend/internal/db"
	httpapi "github.com/roleta_leads/backend/internal/http"
	"github.com/roleta_leads/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "roleta-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var crmClient crm.Client
	if cfg.CRMURL == "" {
		crmClient = crm.NewMockClient()
		logger.Info().Msg("using mock CRM client")
	} else {
		crmClient = &crm.HTTPClient{
			BaseURL: cfg.CRMURL,
			Token:   cfg.CRMToken,
			Timeout: cfg.CRMTimeout,
		}
	}

	resolver := &service.Resolver{
		Queues:   store,
		Absences: store,
		Audit:    store,
		CRM:      crmClient,
		Logger:   logger,
	}

	router := httpapi.Router(cfg, store, resolver, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
