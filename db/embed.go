// Package db embeds the coupon engine schema.
package db

import _ "embed"

// Schema holds the idempotent DDL for coupons, orders, redemptions and API keys.
//
//go:embed migrations/001_schema.sql
var Schema string
