// Package modkit provides module wiring and shared dependencies
package modkit

import (
	"chime/internal/modkit/repokit"
	"chime/internal/platform/config"
	"chime/internal/platform/logger"
	"chime/internal/platform/store"
)

// Deps holds the core dependencies handed to every module.
// Wiring only; no new abstractions live here
type Deps struct {
	Log *logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	Bus store.Bus
	CH  store.Clickhouse
}
