package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newSQLiteURL(t *testing.T) string {
	t.Helper()
	return "sqlite://" + filepath.Join(t.TempDir(), "accountlink.db")
}

func TestRunMigrations_SQLite_CreatesTables(t *testing.T) {
	dbURL := newSQLiteURL(t)
	require.NoError(t, RunMigrations(dbURL))

	db, err := Open(dbURL)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range expectedTables {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "テーブル %q が存在しません", table)
	}
}

func TestRunMigrations_SQLite_Idempotent(t *testing.T) {
	dbURL := newSQLiteURL(t)
	require.NoError(t, RunMigrations(dbURL))
	require.NoError(t, RunMigrations(dbURL))
}

func TestMigrations_SQLite_UpAndDown(t *testing.T) {
	dbURL := newSQLiteURL(t)

	m, err := NewMigrator(dbURL)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Up())
	require.NoError(t, m.Down())

	db, err := Open(dbURL)
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users','connections','sessions')`).Scan(&count)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSQLite_ConnectionUniqueAndCascade(t *testing.T) {
	dbURL := newSQLiteURL(t)
	require.NoError(t, RunMigrations(dbURL))

	db, err := Open(dbURL)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO users (id, name) VALUES ('u1', 'PP works'), ('u2', 'Other')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO connections (id, user_id, provider, uid) VALUES ('c1', 'u1', 'developer', '123456')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO connections (id, user_id, provider, uid) VALUES ('c2', 'u2', 'developer', '123456')`)
	require.Error(t, err, "重複する(provider, uid)の挿入がエラーにならなかった")

	_, err = db.Exec(`DELETE FROM users WHERE id = 'u1'`)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM connections WHERE user_id = 'u1'`).Scan(&count))
	require.Zero(t, count, "ユーザー削除でconnectionsがCASCADE削除されていない")
}

func TestNewMigrator_UnsupportedScheme(t *testing.T) {
	_, err := NewMigrator("mysql://localhost/accountlink")
	require.Error(t, err)
}

func TestMigrationVersion_SQLite(t *testing.T) {
	dbURL := newSQLiteURL(t)

	version, dirty, err := MigrationVersion(dbURL)
	require.NoError(t, err)
	require.Zero(t, version)
	require.False(t, dirty)

	require.NoError(t, RunMigrations(dbURL))

	version, dirty, err = MigrationVersion(dbURL)
	require.NoError(t, err)
	require.Equal(t, uint(3), version)
	require.False(t, dirty)
}

func TestRunMigrations_SQLite_DirtyDatabase_ReturnsError(t *testing.T) {
	dbURL := newSQLiteURL(t)
	require.NoError(t, RunMigrations(dbURL))

	m, err := NewMigrator(dbURL)
	require.NoError(t, err)
	// 途中で失敗したマイグレーションを再現する
	require.NoError(t, m.Force(2))
	db, err := Open(dbURL)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE schema_migrations SET dirty = 1`)
	require.NoError(t, err)
	db.Close()
	m.Close()

	err = RunMigrations(dbURL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "dirty")
}
