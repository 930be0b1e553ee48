// Package migrations embeds the goose SQL migrations owned by this service.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
