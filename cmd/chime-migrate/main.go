// chime-migrate applies the embedded schema files to postgres, once each,
// in lexical order. Safe to re-run. -dry prints the pending plan without
// applying (the ledger table is still created).
//
// Exit codes: 0 all applied, 1 configuration or migration failure,
// 2 database unreachable
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"chime/internal/platform/config"
	"chime/internal/platform/logger"
	"chime/internal/platform/store"
	"chime/migrations"
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
	dry := flag.Bool("dry", false, "print pending migrations without applying")
	flag.Parse()

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		AppName: "chime",
		PG:      store.PGConfig{Enabled: true, URL: dbURL, MinConns: 1, MaxConns: 2},
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

	applied, err := apply(ctx, st.PG, *dry)
	if err != nil {
		l.Error().Err(err).Msg("migration failed")
		return exitConfig
	}
	if *dry {
		l.Info().Int("pending", applied).Msg("dry run complete")
		return exitOK
	}
	l.Info().Int("applied", applied).Msg("migrations up to date")
	return exitOK
}

// apply runs every pending .sql file inside its own transaction
func apply(ctx context.Context, db store.TxRunner, dry bool) (int, error) {
	const ledger = `
create table if not exists schema_migrations (
    version    text primary key,
    applied_at timestamptz not null default now()
)`
	if _, err := db.Exec(ctx, ledger); err != nil {
		return 0, err
	}

	names, err := pending(ctx, db)
	if err != nil {
		return 0, err
	}

	if dry {
		for _, name := range names {
			logger.Get().Info().Str("version", name).Msg("pending")
		}
		return len(names), nil
	}

	for _, name := range names {
		sql, err := migrations.FS.ReadFile(name)
		if err != nil {
			return 0, err
		}
		err = db.Tx(ctx, func(q store.RowQuerier) error {
			if _, err := q.Exec(ctx, string(sql)); err != nil {
				return err
			}
			_, err := q.Exec(ctx, `insert into schema_migrations (version) values ($1)`, name)
			return err
		})
		if err != nil {
			return 0, err
		}
		logger.Get().Info().Str("version", name).Msg("applied")
	}
	return len(names), nil
}

// pending returns embedded versions not yet in the ledger, sorted
func pending(ctx context.Context, db store.TxRunner) ([]string, error) {
	done := map[string]bool{}
	rows, err := db.Query(ctx, `select version from schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".sql") || done[e.Name()] {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}
