package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDatabase(t *testing.T) {
	_, err := NewDatabase(" ")
	assert.ErrorIs(t, err, ErrInvalidDatabasePath)

	path := filepath.Join(t.TempDir(), "kenny.db")
	db, err := NewDatabase(path)
	require.NoError(t, err)

	version, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
	require.NoError(t, db.Close())

	// reopening must not reapply migrations
	db, err = NewDatabase(path)
	require.NoError(t, err)
	defer db.Close()
	version, err = db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestSettings(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	_, err := db.GetSetting(ctx, "prefix")
	assert.ErrorIs(t, err, ErrSettingNotFound)

	require.NoError(t, db.SetSetting(ctx, "prefix", "k!"))
	require.NoError(t, db.SetSetting(ctx, "prefix", "!"))

	got, err := db.GetSetting(ctx, "prefix")
	require.NoError(t, err)
	assert.Equal(t, "!", got)
}

func TestTypedSettings(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.SetSetting(ctx, "volume", "0.8"))
	require.NoError(t, db.SetSetting(ctx, "shuffle", "false"))
	require.NoError(t, db.SetSetting(ctx, "broken", "loud"))

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"stored float", db.GetFloat(ctx, "volume", 0.5), 0.8},
		{"missing float", db.GetFloat(ctx, "missing", 0.5), 0.5},
		{"malformed float", db.GetFloat(ctx, "broken", 0.5), 0.5},
		{"stored bool", db.GetBool(ctx, "shuffle", true), false},
		{"missing bool", db.GetBool(ctx, "missing", true), true},
		{"malformed bool", db.GetBool(ctx, "broken", true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestPlayHistory(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	first, err := db.TrackStarted(ctx, "g1", "Song 1", "https://youtube.com/watch?v=1")
	require.NoError(t, err)
	second, err := db.TrackStarted(ctx, "g1", "Song 2", "https://youtube.com/watch?v=2")
	require.NoError(t, err)
	_, err = db.TrackStarted(ctx, "g2", "Other", "https://youtube.com/watch?v=3")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, db.TrackEnded(ctx, first, "skipped"))
	// the first reason wins
	require.NoError(t, db.TrackEnded(ctx, first, "stopped"))

	plays, err := db.RecentPlays(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, plays, 2)

	assert.Equal(t, second, plays[0].ID)
	assert.True(t, plays[0].Playing())
	assert.Empty(t, plays[0].EndReason)

	assert.Equal(t, first, plays[1].ID)
	assert.Equal(t, "Song 1", plays[1].Title)
	assert.False(t, plays[1].Playing())
	assert.Equal(t, "skipped", plays[1].EndReason)
}

func TestTrackEndedErrors(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	assert.ErrorIs(t, db.TrackEnded(ctx, "missing", "ended"), ErrPlayNotFound)

	id, err := db.TrackStarted(ctx, "g1", "Song", "loc")
	require.NoError(t, err)
	assert.ErrorIs(t, db.TrackEnded(ctx, id, "exploded"), ErrInvalidReason)
}

func TestRecentPlaysLimit(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := db.TrackStarted(ctx, "g1", "Song", "loc")
		require.NoError(t, err)
	}

	plays, err := db.RecentPlays(ctx, "g1", 3)
	require.NoError(t, err)
	assert.Len(t, plays, 3)
}

func TestPruneAndCloseOpenPlays(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	done, err := db.TrackStarted(ctx, "g1", "Done", "loc")
	require.NoError(t, err)
	require.NoError(t, db.TrackEnded(ctx, done, "ended"))
	_, err = db.TrackStarted(ctx, "g1", "Open", "loc")
	require.NoError(t, err)

	n, err := db.PruneHistory(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = db.CloseOpenPlays(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	plays, err := db.RecentPlays(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, plays, 1)
	assert.Equal(t, "Open", plays[0].Title)
	assert.Equal(t, "stopped", plays[0].EndReason)
}
