package storage

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/custodix/evidence-engine/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend_StoreFetch(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)

	ctx := context.Background()
	manifest := []byte(`{"packId":"test"}`)

	id, err := backend.Store(ctx, manifest, interfaces.ManifestType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(manifest), id)

	fetched, err := backend.Fetch(ctx, id, interfaces.ManifestType)
	require.NoError(t, err)
	assert.Equal(t, manifest, fetched)

	// Namespaces are separate: the same ID does not exist as an archive.
	_, err = backend.Fetch(ctx, id, interfaces.ArchiveType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	assert.True(t, backend.Available(ctx))
	assert.Contains(t, backend.LocationURI(), "file://")
}

func TestFileBackend_FetchMissing(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)

	_, err = backend.Fetch(context.Background(), interfaces.ComputeID([]byte("absent")), interfaces.ArchiveType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

// mockBackend is a scriptable in-memory backend for multi-storage tests.
type mockBackend struct {
	name      string
	available bool
	failStore bool
	data      map[interfaces.ContentID][]byte
}

func newMockBackend(name string, available bool) *mockBackend {
	return &mockBackend{
		name:      name,
		available: available,
		data:      make(map[interfaces.ContentID][]byte),
	}
}

func (m *mockBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	data, ok := m.data[id]
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}
	return data, nil
}

func (m *mockBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)
	if m.failStore {
		return id, errors.New("store failed")
	}
	m.data[id] = data
	return id, nil
}

func (m *mockBackend) Available(ctx context.Context) bool { return m.available }
func (m *mockBackend) Name() string                       { return m.name }
func (m *mockBackend) LocationURI() string                { return "mock://" + m.name }

func TestMultiStorageBackend_StoresToAllAvailable(t *testing.T) {
	primary := newMockBackend("primary", true)
	secondary := newMockBackend("secondary", true)
	offline := newMockBackend("offline", false)

	multi := NewMultiStorageBackend([]interfaces.StorageBackend{primary, secondary, offline}, slog.Default())

	ctx := context.Background()
	data := []byte("sealed pack archive")

	id, err := multi.Store(ctx, data, interfaces.ArchiveType)
	require.NoError(t, err)
	assert.Contains(t, primary.data, id)
	assert.Contains(t, secondary.data, id)
	assert.NotContains(t, offline.data, id)
}

func TestMultiStorageBackend_FetchFallsBack(t *testing.T) {
	primary := newMockBackend("primary", true)
	secondary := newMockBackend("secondary", true)
	multi := NewMultiStorageBackend([]interfaces.StorageBackend{primary, secondary}, slog.Default())

	ctx := context.Background()
	data := []byte("only on the secondary")
	id, err := secondary.Store(ctx, data, interfaces.ArchiveType)
	require.NoError(t, err)

	fetched, err := multi.Fetch(ctx, id, interfaces.ArchiveType)
	require.NoError(t, err)
	assert.Equal(t, data, fetched)

	_, err = multi.Fetch(ctx, interfaces.ComputeID([]byte("nowhere")), interfaces.ArchiveType)
	assert.Error(t, err)
}

func TestMultiStorageBackend_StoreFailureIsPartial(t *testing.T) {
	broken := newMockBackend("broken", true)
	broken.failStore = true
	working := newMockBackend("working", true)

	multi := NewMultiStorageBackend([]interfaces.StorageBackend{broken, working}, slog.Default())

	id, err := multi.Store(context.Background(), []byte("data"), interfaces.ManifestType)
	require.NoError(t, err, "one successful backend is enough")
	assert.Contains(t, working.data, id)

	allBroken := NewMultiStorageBackend([]interfaces.StorageBackend{broken}, slog.Default())
	_, err = allBroken.Store(context.Background(), []byte("data"), interfaces.ManifestType)
	assert.Error(t, err)
}

func TestStorageBackendFactory_Schemes(t *testing.T) {
	factory := NewStorageBackendFactory(slog.Default())

	backend, err := factory.StorageBackendFor(interfaces.StorageBackendLocation("file://" + t.TempDir()))
	require.NoError(t, err)
	assert.Contains(t, backend.Name(), "file-")

	backend, err = factory.StorageBackendFor("s3://evidence-bucket/packs?region=eu-central-1")
	require.NoError(t, err)
	assert.Equal(t, "s3-evidence-bucket", backend.Name())

	backend, err = factory.StorageBackendFor("ipfs://127.0.0.1:5001/")
	require.NoError(t, err)
	assert.Equal(t, "ipfs-127.0.0.1-5001", backend.Name())

	_, err = factory.StorageBackendFor("ftp://example.com/evidence")
	assert.Error(t, err)
}

func TestStorageBackendFactory_MultiBackend(t *testing.T) {
	factory := NewStorageBackendFactory(slog.Default())

	multi, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		interfaces.StorageBackendLocation("file://" + t.TempDir()),
		"bogus://nowhere",
	})
	require.NoError(t, err, "invalid URIs are skipped, not fatal")
	assert.Equal(t, "multi-storage", multi.Name())

	_, err = factory.CreateMultiBackend([]interfaces.StorageBackendLocation{"bogus://nowhere"})
	assert.Error(t, err)
}
