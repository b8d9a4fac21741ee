// Package db ships the SQL schema so the integration test harness can apply
// it to a fresh container without depending on deploy tooling.
package db

import _ "embed"

//go:embed schema.sql
var Schema string
