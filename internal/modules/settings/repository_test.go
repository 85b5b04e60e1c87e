package settings

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testdb "github.com/aristath/foundry/internal/testing"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, cleanup := testdb.NewTestDB(t, "config")
	t.Cleanup(cleanup)
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	repo := newTestRepository(t)

	value, err := repo.Get("no_such_key")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestSetAndGet(t *testing.T) {
	repo := newTestRepository(t)

	desc := "retention policy"
	require.NoError(t, repo.Set("model_keep_count", "7", &desc))

	value, err := repo.Get("model_keep_count")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "7", *value)
}

func TestSetOverwritesExisting(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Set("schedule_enabled", "true", nil))
	require.NoError(t, repo.Set("schedule_enabled", "false", nil))

	enabled, err := repo.GetBool("schedule_enabled", true)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestTypedAccessors(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.SetBool("auto_cleanup_enabled", true))
	require.NoError(t, repo.SetInt("model_keep_count", 3))
	require.NoError(t, repo.SetInt64("schedule_interval_seconds", 86400))

	enabled, err := repo.GetBool("auto_cleanup_enabled", false)
	require.NoError(t, err)
	assert.True(t, enabled)

	keep, err := repo.GetInt("model_keep_count", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, keep)

	interval, err := repo.GetInt64("schedule_interval_seconds", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(86400), interval)
}

func TestTypedAccessorDefaults(t *testing.T) {
	repo := newTestRepository(t)

	enabled, err := repo.GetBool("unset", true)
	require.NoError(t, err)
	assert.True(t, enabled)

	keep, err := repo.GetInt("unset", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, keep)

	// An unparsable stored value falls back to the default rather than
	// failing the caller.
	require.NoError(t, repo.Set("model_keep_count", "not-a-number", nil))
	keep, err = repo.GetInt("model_keep_count", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, keep)
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Set("schedule_enabled", "true", nil))
	require.NoError(t, repo.Delete("schedule_enabled"))
	require.NoError(t, repo.Delete("schedule_enabled"))

	value, err := repo.Get("schedule_enabled")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestGetAll(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Set("a", "1", nil))
	require.NoError(t, repo.Set("b", "2", nil))

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)
}
