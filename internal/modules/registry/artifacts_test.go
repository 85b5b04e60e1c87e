package registry

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArtifactStore(t *testing.T) *ArtifactStore {
	t.Helper()
	store, err := NewArtifactStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return store
}

func TestArtifactStoreSaveLoadRoundTrip(t *testing.T) {
	store := newTestArtifactStore(t)

	data := []byte("weights and biases")
	created := time.Now().UTC().Truncate(time.Second)
	path, size, err := store.Save("model_x", data, 0.72, created)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)
	assert.Equal(t, store.ArtifactPath("model_x"), path)

	loaded, err := store.Load("model_x")
	require.NoError(t, err)
	assert.Equal(t, data, loaded)

	manifest, err := store.LoadManifest("model_x")
	require.NoError(t, err)
	assert.Equal(t, "model_x", manifest.ModelID)
	assert.InDelta(t, 0.72, manifest.Accuracy, 1e-9)
	assert.Equal(t, int64(len(data)), manifest.SizeBytes)
	assert.True(t, manifest.CreatedAt.Equal(created))
}

func TestArtifactStoreLoadMissing(t *testing.T) {
	store := newTestArtifactStore(t)

	_, err := store.Load("model_missing")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestArtifactStoreRemoveIdempotent(t *testing.T) {
	store := newTestArtifactStore(t)

	_, _, err := store.Save("model_x", []byte("abc"), 0.5, time.Now())
	require.NoError(t, err)

	require.NoError(t, store.Remove("model_x"))
	require.NoError(t, store.Remove("model_x"), "removing twice must not fail")

	_, err = store.Load("model_x")
	assert.Error(t, err)
}

func TestArtifactStoreTotalSize(t *testing.T) {
	store := newTestArtifactStore(t)

	_, _, err := store.Save("model_a", make([]byte, 100), 0.5, time.Now())
	require.NoError(t, err)
	_, _, err = store.Save("model_b", make([]byte, 50), 0.6, time.Now())
	require.NoError(t, err)

	total, err := store.TotalSizeBytes()
	require.NoError(t, err)
	// Artifacts plus their manifest sidecars.
	assert.GreaterOrEqual(t, total, int64(150))
}
