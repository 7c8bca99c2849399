// Package db embeds the PostgreSQL schema applied at startup.
package db

import _ "embed"

// Schema holds the idempotent DDL for every table and index.
//
//go:embed migrations/001_schema.sql
var Schema string
