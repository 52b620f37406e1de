// Package migrations embeds the goose SQL migrations shared by the SQLite
// and PostgreSQL credential stores. Statements stick to the subset both
// dialects accept.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
