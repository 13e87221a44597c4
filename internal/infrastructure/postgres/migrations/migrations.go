// Package migrations embeds the SQL that provisions the document store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
