package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"ConfigService/pkg/auth"
	"ConfigService/pkg/common"
	"ConfigService/pkg/gateway"
	"ConfigService/pkg/journal"
	"ConfigService/pkg/store"
)

func main() {
	configPath := pflag.String("config", "", "optional TOML config file; environment variables override it")
	pflag.Parse()

	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := common.LoadService(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("log_level", cfg.LogLevel).Msg("config")
	}
	zerolog.SetGlobalLevel(level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gate, err := auth.New(auth.Config{
		APIKey:        cfg.APIKey,
		SigningSecret: cfg.SigningSecret,
		Window:        cfg.ReplayWindow,
		Metrics:       auth.NewMetrics(reg),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("auth gate")
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	gw := gateway.New(gateway.Options{
		Gate:          gate,
		Store:         st,
		AllowedOrigin: cfg.AllowedOrigin,
		Registry:      reg,
		Logger:        log.Logger,
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Store).
			Dur("replay_window", cfg.ReplayWindow).
			Msg("Configuration service listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("serve")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}
}

func openStore(cfg common.ServiceConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store {
	case "etcd":
		st, err = store.OpenEtcd(cfg.Etcd(), 5*time.Second)
	default:
		st, err = store.OpenSQLite(cfg.DBPath)
	}
	if err != nil || cfg.JournalPath == "" {
		return st, err
	}
	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return store.NewJournaled(st, j), nil
}
