// Package db embeds the storefront schema so the server and the seed/ingest
// tools can migrate a fresh database without shipping SQL files alongside
// the binary.
package db

import _ "embed"

// Schema holds the DDL for the catalog, promotion, usage, session, and
// order tables. Statements are idempotent (IF NOT EXISTS) so applying the
// schema on every startup is safe.
//
//go:embed migrations/001_schema.sql
var Schema string
