// Package migrations embeds the SQL schema.
package migrations

import "embed"

// FS holds the ordered *.up.sql migration files.
//
//go:embed *.sql
var FS embed.FS
