// Package assets embeds the static files shipped with the binaries:
// SQL migrations per database engine, email templates and the common passwords list.
package assets

import "embed"

//go:embed migrations templates/email/* common-passwords.txt.gz
var FS embed.FS

// MigrationsDir returns the directory holding the migrations of the given engine.
func MigrationsDir(engine string) string {
	return "migrations/" + engine
}
