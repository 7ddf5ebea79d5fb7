package store

import "embed"

// migrationsFS embeds the SQL migration files applied at startup.
//
//go:embed migrations
var migrationsFS embed.FS
