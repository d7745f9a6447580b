// Package migrations embeds the SQL migrations applied at startup (ordering
// by filename: 001, 002, ...).
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
