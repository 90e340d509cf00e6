// Package appfs embeds the files the binaries ship with.
package appfs

import "embed"

// FS holds the SQL migrations and the common-passwords list.
//
//go:embed migrations/*.sql common-passwords.txt
var FS embed.FS
