package migrations

import "embed"

// FS contains the embedded PostgreSQL migrations for the List Store.
//
//go:embed *.sql
var FS embed.FS
