// Package migrations embeds the focuserd SQL schema into the binary so the
// daemon can migrate its database without the files on disk.
package migrations

import "embed"

// FS holds every *.up.sql migration at its root.
//
//go:embed *.sql
var FS embed.FS
