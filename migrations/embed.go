// Package migrations embeds the schema files applied by chime-migrate
package migrations

import "embed"

// FS holds every .sql file in lexical apply order
//
//go:embed *.sql
var FS embed.FS
