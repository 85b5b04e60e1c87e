package database

import (
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "test_db_*.db")
	require.NoError(t, err)
	path := tmpFile.Name()
	require.NoError(t, tmpFile.Close())

	db, err := New(Config{Path: path, Profile: ProfileStandard, Name: "test"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
		_ = os.Remove(path)
	})

	_, err = db.Conn().Exec("CREATE TABLE items (id TEXT PRIMARY KEY, value INTEGER)")
	require.NoError(t, err)
	return db
}

func countItems(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM items").Scan(&n))
	return n
}

func TestWithTransactionCommits(t *testing.T) {
	db := newTestDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO items (id, value) VALUES ('a', 1)"); err != nil {
			return err
		}
		_, err := tx.Exec("INSERT INTO items (id, value) VALUES ('b', 2)")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, countItems(t, db))
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := newTestDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO items (id, value) VALUES ('a', 1)"); err != nil {
			return err
		}
		// Duplicate key forces the whole transaction to roll back.
		_, err := tx.Exec("INSERT INTO items (id, value) VALUES ('a', 2)")
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 0, countItems(t, db))
}

func TestWithTransactionRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO items (id, value) VALUES ('a', 1)"); err != nil {
			return err
		}
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")
	assert.Equal(t, 0, countItems(t, db))
}

func TestWithTransactionNilConnection(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
	assert.Error(t, err)
}
