package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Database is the bot's SQLite store for settings and play history
type Database struct {
	db *sql.DB
}

// Play is one row of play history. EndedAt is zero while the track is playing.
type Play struct {
	ID        string
	GuildID   string
	Title     string
	Locator   string
	StartedAt time.Time
	EndedAt   time.Time
	EndReason string
}

// Playing reports whether the play has not ended yet
func (p Play) Playing() bool {
	return p.EndedAt.IsZero()
}

var validReasons = map[string]bool{
	"ended":    true,
	"skipped":  true,
	"stopped":  true,
	"replaced": true,
	"failed":   true,
}

// migration is one schema step; version is recorded in schema_migrations once applied
type migration struct {
	version int
	name    string
	up      string
}

var migrations = []migration{
	{
		version: 1,
		name:    "settings",
		up: `
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	},
	{
		version: 2,
		name:    "play history",
		up: `
		CREATE TABLE IF NOT EXISTS play_history (
			id TEXT PRIMARY KEY,
			guild_id TEXT NOT NULL,
			title TEXT NOT NULL,
			locator TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			end_reason TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_play_history_guild ON play_history(guild_id, started_at);`,
	},
}

// NewDatabase opens (creating if needed) the database at dbPath and brings its schema up to date
func NewDatabase(dbPath string) (*Database, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, ErrInvalidDatabasePath
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serialises writers anyway
	db.SetMaxOpenConns(1)

	if err := initDatabase(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Database{db: db}, nil
}

// initDatabase applies every migration newer than the recorded schema version
func initDatabase(db *sql.DB) error {
	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("%w: %d (%s): %v", ErrMigrationFailed, m.version, m.name, err)
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.up); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// SchemaVersion returns the highest applied migration
func (d *Database) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := d.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// GetSetting returns the stored value for key, or ErrSettingNotFound
func (d *Database) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores value under key, replacing any previous value
func (d *Database) SetSetting(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx, `
	INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// GetFloat returns the setting parsed as a float, or fallback when it is missing or malformed
func (d *Database) GetFloat(ctx context.Context, key string, fallback float64) float64 {
	value, err := d.GetSetting(ctx, key)
	if err != nil {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

// GetBool returns the setting parsed as a bool, or fallback when it is missing or malformed
func (d *Database) GetBool(ctx context.Context, key string, fallback bool) bool {
	value, err := d.GetSetting(ctx, key)
	if err != nil {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

// TrackStarted records the start of a playback and returns its id
func (d *Database) TrackStarted(ctx context.Context, guildID, title, locator string) (string, error) {
	id := uuid.NewString()
	_, err := d.db.ExecContext(ctx, `
	INSERT INTO play_history (id, guild_id, title, locator, started_at)
	VALUES (?, ?, ?, ?, ?)
	`, id, guildID, title, locator, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to record play: %w", err)
	}
	return id, nil
}

// TrackEnded closes the play with id. Ending a play twice keeps the first reason.
func (d *Database) TrackEnded(ctx context.Context, id, reason string) error {
	if !validReasons[reason] {
		return fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}

	res, err := d.db.ExecContext(ctx, `
	UPDATE play_history SET ended_at = ?, end_reason = ?
	WHERE id = ? AND ended_at IS NULL
	`, time.Now().UTC(), reason, id)
	if err != nil {
		return fmt.Errorf("failed to end play: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to end play: %w", err)
	}
	if n == 0 {
		var exists int
		err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM play_history WHERE id = ?", id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to end play: %w", err)
		}
		if exists == 0 {
			return ErrPlayNotFound
		}
	}
	return nil
}

// RecentPlays returns up to limit plays for guildID, newest first
func (d *Database) RecentPlays(ctx context.Context, guildID string, limit int) ([]Play, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.db.QueryContext(ctx, `
	SELECT id, guild_id, title, locator, started_at, ended_at, end_reason
	FROM play_history
	WHERE guild_id = ?
	ORDER BY started_at DESC, rowid DESC
	LIMIT ?
	`, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent plays: %w", err)
	}
	defer rows.Close()

	var plays []Play
	for rows.Next() {
		var (
			p       Play
			endedAt sql.NullTime
			reason  sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.GuildID, &p.Title, &p.Locator, &p.StartedAt, &endedAt, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		if endedAt.Valid {
			p.EndedAt = endedAt.Time
		}
		p.EndReason = reason.String
		plays = append(plays, p)
	}
	return plays, rows.Err()
}

// PruneHistory deletes finished plays that started before cutoff and returns how many were removed
func (d *Database) PruneHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
	DELETE FROM play_history WHERE started_at < ? AND ended_at IS NOT NULL
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

// CloseOpenPlays marks plays left open by a previous run as stopped
func (d *Database) CloseOpenPlays(ctx context.Context) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
	UPDATE play_history SET ended_at = ?, end_reason = 'stopped' WHERE ended_at IS NULL
	`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to close open plays: %w", err)
	}
	return res.RowsAffected()
}
