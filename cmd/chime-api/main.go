// chime-api serves the alarm CRUD API plus health, version, and docs.
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

	"github.com/go-chi/chi/v5"

	modkit "chime/internal/modkit"
	"chime/internal/modkit/swaggerkit"
	"chime/internal/platform/config"
	"chime/internal/platform/logger"
	phttp "chime/internal/platform/net/http"
	"chime/internal/platform/net/middleware"
	"chime/internal/platform/store"
	"chime/internal/platform/version"
	alarmsmod "chime/internal/services/alarms/module"
	metamod "chime/internal/services/meta/module"
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

	// config panics (missing env, bad port) land here as exit 1
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
	busURL := cfg.MayString("BUS_URL", "")
	chURL := cfg.MayString("CLICKHOUSE_URL", "")
	if busURL == "" {
		l.Warn().Msg("BUS_URL not set; change events disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		AppName: "chime",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         dbURL,
			MinConns:    int32(cfg.MayInt("MIN_DB_CONNECTIONS", 5)),
			MaxConns:    int32(cfg.MayInt("MAX_DB_CONNECTIONS", 20)),
			LogSQL:      cfg.MayBool("LOG_SQL", false),
			SlowQueryMs: cfg.MayInt("SLOW_QUERY_MS", 500),
		},
		Bus: store.BusConfig{Enabled: busURL != "", URL: busURL},
		CH:  store.CHConfig{Enabled: chURL != "", URL: chURL, ClientTag: "api"},
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

	deps := modkit.Deps{Log: l, Cfg: cfg, PG: st.PG, Bus: st.Bus, CH: st.CH}

	mux := chi.NewRouter()
	r := phttp.AdaptChi(mux)
	r.Use(middleware.Defaults(*l)...)

	alarms := alarmsmod.New(deps)
	alarms.MountRoutes(r)
	metamod.New(deps, "chime-api", alarms.Service()).MountRoutes(r)
	swaggerkit.Mount(r, cfg.MayBool("SWAGGER", true))

	srv := phttp.NewServer(*l, r.Mux(), phttp.ServerOpts{
		Addr: cfg.MayPort("PORT", ":8080"),
	})

	l.Info().Interface("build", version.Info("chime-api")).Msg("starting")
	if err := srv.Run(ctx, 10*time.Second); err != nil {
		l.Error().Err(err).Msg("http server stopped")
		return exitConfig
	}
	return exitOK
}
