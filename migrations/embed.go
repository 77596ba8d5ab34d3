// Package migrations holds the Postgres schema, embedded so the binaries do
// not depend on the working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
