// Package migrations embeds the Postgres schema.
package migrations

import "embed"

// FS holds the *.up.sql files applied at startup in name order.
//
//go:embed *.sql
var FS embed.FS
