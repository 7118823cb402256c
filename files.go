package auth

import "embed"

// Schema migrations ship with the package so hosts can replay them against
// any bun-supported database without tracking separate SQL assets.
//
//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the embedded migration files.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
