// Package migrations embeds the goose SQL migrations for the decision store.
package migrations

import "embed"

// FS holds every migration file, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
