// Package db provides the embedded database schema and seed data.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedCoupons is the demo coupon catalog loaded by seed-db, as a JSON array.
//
//go:embed seed/coupons.json
var SeedCoupons []byte
