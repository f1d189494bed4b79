package database

import "errors"

// Database configuration errors
var (
	ErrInvalidDatabasePath = errors.New("invalid database path")
)

// Repository errors
var (
	ErrSettingNotFound = errors.New("setting not found")
	ErrPlayNotFound    = errors.New("play not found")
	ErrInvalidReason   = errors.New("invalid end reason")
)

// Migration errors
var (
	ErrMigrationFailed = errors.New("migration failed")
)
