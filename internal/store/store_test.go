package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elicit-dev/elicit/internal/domain"
	"github.com/elicit-dev/elicit/internal/logging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "error", "json")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	// Running migrate again should be a no-op
	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestOpen_BusyTimeout(t *testing.T) {
	db := testDB(t)

	var ms int
	err := db.sql.QueryRow("PRAGMA busy_timeout").Scan(&ms)
	require.NoError(t, err)
	assert.Equal(t, 5000, ms)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"scenarios", "scenario_details", "scenario_hints", "saved_sessions"}
	for _, table := range tables {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

// --- SQLite session store tests ---

func sampleSession(savedAt time.Time) domain.SavedSession {
	return domain.SavedSession{
		ScenarioID: "kindrell",
		Messages: []domain.Message{
			{ID: "m1", Role: domain.RoleAssistant, Content: "Hi. I'm Gareth."},
			{ID: "m2", Role: domain.RoleUser, Content: "Tell me about your process."},
		},
		SavedAt: savedAt,
	}
}

func TestSessionStore_PutGet(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db, 0)
	ctx := context.Background()

	require.NoError(t, ss.Put(ctx, "client-1", sampleSession(time.Now())))

	got, err := ss.Get(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "kindrell", got.ScenarioID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, domain.RoleUser, got.Messages[1].Role)
}

func TestSessionStore_Get_NotFound(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db, 0)

	got, err := ss.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStore_Put_Replaces(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db, 0)
	ctx := context.Background()

	require.NoError(t, ss.Put(ctx, "client-1", sampleSession(time.Now())))

	updated := sampleSession(time.Now())
	updated.ScenarioID = "panther"
	require.NoError(t, ss.Put(ctx, "client-1", updated))

	got, err := ss.Get(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "panther", got.ScenarioID)
}

func TestSessionStore_Get_Expired(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db, 0)
	ctx := context.Background()

	require.NoError(t, ss.Put(ctx, "client-1", sampleSession(time.Now())))

	// Jump past the resume window
	ss.now = func() time.Time { return time.Now().Add(domain.ResumeTTL + time.Minute) }

	got, err := ss.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Stale row is gone even when the clock rolls back
	ss.now = time.Now
	got, err = ss.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStore_CustomResumeWindow(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	saved := sampleSession(time.Now().Add(-20 * time.Minute))

	short := NewSQLiteSessionStore(db, 15*time.Minute)
	require.NoError(t, short.Put(ctx, "client-1", saved))

	got, err := short.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, got, "session older than the configured window should not resume")

	long := NewSQLiteSessionStore(db, time.Hour)
	require.NoError(t, long.Put(ctx, "client-2", saved))

	got, err = long.Get(ctx, "client-2")
	require.NoError(t, err)
	assert.NotNil(t, got, "session within the configured window should resume")
}

func TestSessionStore_Get_QueryError(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db, 0)
	ctx := context.Background()

	require.NoError(t, ss.Put(ctx, "client-1", sampleSession(time.Now())))
	require.NoError(t, db.Close())

	_, err := ss.Get(ctx, "client-1")
	require.Error(t, err, "query failures must surface, not read as a cache miss")
}

func TestSessionStore_Get_CorruptRow(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db, 0)
	ctx := context.Background()

	_, err := db.sql.Exec(
		`INSERT INTO saved_sessions (key, scenario_id, messages, saved_at) VALUES (?, ?, ?, ?)`,
		"client-1", "kindrell", "{not json", time.Now().UTC().Format(time.RFC3339),
	)
	require.NoError(t, err)

	// Corrupt data reads as absent, never as an error
	got, err := ss.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM saved_sessions").Scan(&count))
	assert.Equal(t, 0, count, "corrupt row should be deleted")
}

func TestSessionStore_Delete(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db, 0)
	ctx := context.Background()

	require.NoError(t, ss.Put(ctx, "client-1", sampleSession(time.Now())))
	require.NoError(t, ss.Delete(ctx, "client-1"))

	got, err := ss.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStore_Prune(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db, 0)
	ctx := context.Background()

	old := sampleSession(time.Now().Add(-2 * domain.ResumeTTL))
	fresh := sampleSession(time.Now())
	require.NoError(t, ss.Put(ctx, "old", old))
	require.NoError(t, ss.Put(ctx, "fresh", fresh))

	removed, err := ss.Prune(ctx, time.Now().Add(-domain.ResumeTTL))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got, err := ss.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

// --- Memory session store tests ---

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ms := NewMemorySessionStore(0)
	ctx := context.Background()

	require.NoError(t, ms.Put(ctx, "client-1", sampleSession(time.Now())))
	assert.Equal(t, 1, ms.Len())

	got, err := ms.Get(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "kindrell", got.ScenarioID)

	require.NoError(t, ms.Delete(ctx, "client-1"))
	got, err = ms.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_Get_Expired(t *testing.T) {
	ms := NewMemorySessionStore(0)
	ctx := context.Background()

	require.NoError(t, ms.Put(ctx, "client-1", sampleSession(time.Now())))
	ms.now = func() time.Time { return time.Now().Add(domain.ResumeTTL + time.Minute) }

	got, err := ms.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, ms.Len(), "expired entry should be evicted")
}

func TestMemoryStore_CustomResumeWindow(t *testing.T) {
	ctx := context.Background()
	saved := sampleSession(time.Now().Add(-20 * time.Minute))

	short := NewMemorySessionStore(15 * time.Minute)
	require.NoError(t, short.Put(ctx, "client-1", saved))

	got, err := short.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	long := NewMemorySessionStore(time.Hour)
	require.NoError(t, long.Put(ctx, "client-1", saved))

	got, err = long.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMemoryStore_Get_ReturnsCopy(t *testing.T) {
	ms := NewMemorySessionStore(0)
	ctx := context.Background()

	require.NoError(t, ms.Put(ctx, "client-1", sampleSession(time.Now())))

	got, err := ms.Get(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	got.Messages[0].Content = "mutated"

	again, err := ms.Get(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "Hi. I'm Gareth.", again.Messages[0].Content)
}
