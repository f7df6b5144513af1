// chime-scheduler runs the alarm lifecycle daemon: cold start, the second
// tick loop, firing workers, reconciliation, and cleanup.
//
// Exit codes: 0 clean shutdown, 1 configuration or runtime failure,
// 2 backing stores unreachable
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	modkit "chime/internal/modkit"
	"chime/internal/platform/config"
	"chime/internal/platform/logger"
	"chime/internal/platform/store"
	"chime/internal/platform/version"
	"chime/internal/services/controller"
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

	ctl := controller.New(
		modkit.Deps{Log: l, Cfg: cfg, PG: st.PG, Bus: st.Bus},
		controller.Config{
			Workers:           cfg.MayInt("WORKER_THREADS", 8),
			ReconcileInterval: cfg.MaySeconds("RECONCILE_INTERVAL_SEC", 600*time.Second),
			CleanupInterval:   cfg.MaySeconds("CLEANUP_INTERVAL_SEC", 600*time.Second),
			Retention:         cfg.MaySeconds("CLEANUP_RETENTION_SEC", 24*time.Hour),
		},
	)

	l.Info().Interface("build", version.Info("chime-scheduler")).Msg("starting")
	if err := ctl.Run(ctx); err != nil && ctx.Err() == nil {
		l.Error().Err(err).Msg("scheduler stopped")
		return exitConfig
	}

	fired, failed, armed := ctl.Stats()
	l.Info().Int64("fired", fired).Int64("failed", failed).Int("armed", armed).Msg("scheduler shut down")
	return exitOK
}
