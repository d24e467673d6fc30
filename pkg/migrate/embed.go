package migrate

import "embed"

// Migrations is the SQL set compiled into every binary so dev auto-run does
// not depend on the working directory.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const embeddedDir = "migrations"
