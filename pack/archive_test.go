package pack

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive_RoundTrip(t *testing.T) {
	sealed, keyManager := sealTestPack(t, testSnapshot())

	data, err := Archive(sealed.Dir)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restoreDir := t.TempDir()
	require.NoError(t, Unarchive(data, restoreDir))

	restored, err := Open(restoreDir)
	require.NoError(t, err)
	assert.Equal(t, sealed.Manifest.PackID, restored.Manifest.PackID)

	report, err := restored.Verify(keyManager, nil, nil)
	require.NoError(t, err)
	assert.True(t, report.Confirmed, "archive round trip preserves the sealed pack")
}

func TestArchive_Deterministic(t *testing.T) {
	sealed, _ := sealTestPack(t, testSnapshot())

	first, err := Archive(sealed.Dir)
	require.NoError(t, err)
	second, err := Archive(sealed.Dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestUnarchive_RejectsUnsafePaths(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	payload := []byte("escape")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "../escape.txt",
		Mode: 0o644,
		Size: int64(len(payload)),
	}))
	_, err := tw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	err = Unarchive(buf.Bytes(), t.TempDir())
	assert.Error(t, err)

	err = Unarchive([]byte("not a gzip stream"), t.TempDir())
	assert.Error(t, err)
}
