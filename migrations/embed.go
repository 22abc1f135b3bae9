// Package migrations embeds the SQL schema of the configuration store.
// Files follow golang-migrate naming: NNN_name.up.sql / NNN_name.down.sql.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
