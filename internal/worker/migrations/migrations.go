// Package migrations embeds the goose migrations for the worker's local
// sqlite database: cache partitions, the periodic-sync registrations, the
// pending purchase queue, and the sync status snapshot.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
