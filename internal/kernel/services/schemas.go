package services

import "embed"

// sqlSchemas embeds the restart-audit table's migration files, following
// the same embed.FS layout as the rest of the daemon's sqlite stores.
//
//go:embed migrations/*.sql
var sqlSchemas embed.FS
