// Package db embeds the database schema so binaries can migrate on startup
// without shipping separate SQL files.
package db

import _ "embed"

// Schema holds the DDL for every application table and index. Statements are
// idempotent (IF NOT EXISTS) so the schema can be reapplied safely.
//
//go:embed migrations/001_schema.sql
var Schema string
