// Package migrations embeds the goose migrations for the page's local sqlite
// database, which holds the flat key-value snapshot of sync results.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
