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

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Brandon-Online01/w-f-sub001/internal/api"
	"github.com/Brandon-Online01/w-f-sub001/internal/auth"
	"github.com/Brandon-Online01/w-f-sub001/internal/config"
	"github.com/Brandon-Online01/w-f-sub001/internal/guard"
	internalhttp "github.com/Brandon-Online01/w-f-sub001/internal/http"
	"github.com/Brandon-Online01/w-f-sub001/internal/query"
	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("painel encerrado com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	client, err := api.New(api.Config{
		BaseURL:  cfg.Upstream.APIBaseURL,
		FilesURL: cfg.Upstream.FilesURL,
		Timeout:  cfg.Upstream.Timeout,
	})
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}

	validator := auth.NewValidator()

	handler, err := internalhttp.NewRouter(internalhttp.Deps{
		Config:    cfg,
		Redis:     redisClient,
		Sessions:  session.NewStore(session.NewRedisPersister(redisClient, cfg.SessionIdleTTL)),
		Cookies:   session.NewCookieCodec(cfg.SessionSecret, cfg.SecureCookies),
		Validator: validator,
		Guard:     guard.New(guard.Config{}, validator),
		API:       client,
		Queries:   query.New(query.Options{Interval: cfg.PollInterval, FetchTimeout: cfg.Upstream.Timeout}),
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("api", cfg.Upstream.APIBaseURL).Msgf("painel ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
