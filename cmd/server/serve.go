package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rpattn/custimport/internal/config"
	"github.com/rpattn/custimport/internal/ingestion"
	"github.com/rpattn/custimport/internal/middleware"
	"github.com/rpattn/custimport/internal/repository"
	"github.com/rpattn/custimport/internal/session"
)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP import API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := openSessions(ctx, cfg, logger)
	if err != nil {
		return err
	}

	service := ingestion.NewService(store, sessions, ingestion.Options{
		MaxUploadBytes: cfg.Import.MaxUploadBytes,
		PreviewRows:    cfg.Import.PreviewRows,
		Vocabularies:   cfg.Vocabularies,
		Vocabulary:     cfg.Matching.Vocabulary(),
		Dedupe:         cfg.Matching.Dedupe(),
	}, logger)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newRouter(cfg, store, service, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("import API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}

func newRouter(cfg config.Config, store repository.Store, service *ingestion.Service, logger logrus.FieldLogger) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(middleware.TenantMiddleware, middleware.DataLoaderMiddleware(store.Customers()))
	ingestion.NewHTTPHandler(service).Register(api)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	return corsHandler.Handler(middleware.LoggingMiddleware(logger)(router))
}

func openSessions(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (session.Store, error) {
	if cfg.Sessions.Backend == config.SessionsRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Sessions.RedisAddr,
			Password: cfg.Sessions.RedisPassword,
			DB:       cfg.Sessions.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Sessions.RedisAddr, err)
		}
		logger.WithField("addr", cfg.Sessions.RedisAddr).Info("using redis session store")
		return session.NewRedisStore(client, cfg.Sessions.RedisPrefix, cfg.Import.SessionTTL, nil), nil
	}

	store := session.NewMemoryStore(cfg.Import.SessionTTL, nil)
	go store.RunSweeper(ctx, cfg.Import.SweepInterval, logger)
	return store, nil
}
