package resources

import "embed"

// FS holds the database migrations applied at store startup.
//
//go:embed migrations/*.sql
var FS embed.FS
