// Package db embeds the goose migrations for the record store.
package db

import "embed"

// Migrations holds migrations/*.sql; pass it to pg.Migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS
