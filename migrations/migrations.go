// Package migrations embeds the SQL schema for the civilian registry.
// Files follow the NNNNNN_name.up.sql / NNNNNN_name.down.sql layout and are
// applied in version order by db.Migrate.
package migrations

import "embed"

// FS holds every up and down migration.
//
//go:embed *.sql
var FS embed.FS
