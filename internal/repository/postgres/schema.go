package postgres

import _ "embed"

// Schema is the planner's Postgres DDL.
//
//go:embed schema.sql
var Schema string
