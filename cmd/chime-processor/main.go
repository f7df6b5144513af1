// chime-processor consumes alarm firings, resolves descriptions, and emits
// email requests. An optional clickhouse sink audits every firing.
//
// Exit codes: 0 clean shutdown, 1 configuration or runtime failure,
// 2 backing stores unreachable
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	modkit "chime/internal/modkit"
	"chime/internal/platform/config"
	"chime/internal/platform/logger"
	"chime/internal/platform/store"
	"chime/internal/platform/version"
	"chime/internal/services/processor"
)

const (
	exitOK          = 0
	exitConfig      = 1
	exitUnreachable = 2
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	cfg := config.New()
	l := logger.Get()

	defer func() {
		if r := recover(); r != nil {
			code = exitConfig
		}
	}()

	dbURL, ok := cfg.Lookup("DATABASE_URL")
	if !ok {
		l.Error().Msg("DATABASE_URL is required")
		return exitConfig
	}
	busURL, ok := cfg.Lookup("BUS_URL")
	if !ok {
		l.Error().Msg("BUS_URL is required")
		return exitConfig
	}
	chURL := cfg.MayString("CLICKHOUSE_URL", "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		AppName: "chime",
		PG: store.PGConfig{
			Enabled:  true,
			URL:      dbURL,
			MinConns: int32(cfg.MayInt("MIN_DB_CONNECTIONS", 5)),
			MaxConns: int32(cfg.MayInt("MAX_DB_CONNECTIONS", 20)),
		},
		Bus: store.BusConfig{Enabled: true, URL: busURL},
		CH:  store.CHConfig{Enabled: chURL != "", URL: chURL, ClientTag: "processor"},
	}, store.WithLogger(*l))
	if err != nil {
		l.Error().Err(err).Msg("store open failed")
		return exitUnreachable
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("store close failed")
		}
	}()

	p := processor.New(modkit.Deps{Log: l, Cfg: cfg, PG: st.PG, Bus: st.Bus, CH: st.CH})

	l.Info().Interface("build", version.Info("chime-processor")).Msg("starting")
	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		l.Error().Err(err).Msg("processor stopped")
		return exitConfig
	}

	processed, skipped := p.Stats()
	l.Info().Int64("processed", processed).Int64("skipped", skipped).Msg("processor shut down")
	return exitOK
}
