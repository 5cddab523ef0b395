package merkle

import (
	"testing"

	"github.com/custodix/evidence-engine/cryptoutils"
	"github.com/custodix/evidence-engine/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPack_Unmodified(t *testing.T) {
	snapshot := testSnapshot()
	meta := Build(snapshot, cryptoutils.SHA256).Metadata()

	report := VerifyPack(snapshot, meta)

	assert.False(t, report.IsTampered)
	assert.True(t, report.RootHashValid)
	assert.Len(t, report.ValidFiles, len(snapshot))
	assert.Empty(t, report.TamperedFiles)
	assert.Empty(t, report.MissingFiles)
	assert.Empty(t, report.NewFiles)
}

func TestVerifyPack_TamperedFile(t *testing.T) {
	snapshot := testSnapshot()
	meta := Build(snapshot, cryptoutils.SHA256).Metadata()

	snapshot["lineage.json"] = []byte(`{"source":"crm","rows":43}`)
	report := VerifyPack(snapshot, meta)

	assert.True(t, report.IsTampered)
	assert.Equal(t, []string{"lineage.json"}, report.TamperedFiles)
	assert.False(t, report.RootHashValid)
}

func TestVerifyPack_MissingFile(t *testing.T) {
	snapshot := testSnapshot()
	meta := Build(snapshot, cryptoutils.SHA256).Metadata()

	delete(snapshot, "decisions.json")
	report := VerifyPack(snapshot, meta)

	assert.True(t, report.IsTampered)
	assert.Equal(t, []string{"decisions.json"}, report.MissingFiles)
	assert.False(t, report.RootHashValid)
}

func TestVerifyPack_NewFile(t *testing.T) {
	snapshot := testSnapshot()
	meta := Build(snapshot, cryptoutils.SHA256).Metadata()

	snapshot["planted.txt"] = []byte("unauthorized")
	report := VerifyPack(snapshot, meta)

	// An added file is flagged even though the recorded path set still
	// reproduces the original root.
	assert.True(t, report.IsTampered)
	assert.Equal(t, []string{"planted.txt"}, report.NewFiles)
}

func TestVerifyPack_AlteredMetadataRoot(t *testing.T) {
	snapshot := testSnapshot()
	meta := Build(snapshot, cryptoutils.SHA256).Metadata()

	// Per-file hashes untouched but the recorded root replaced: the
	// independent rebuild must catch it.
	meta.MerkleRoot = cryptoutils.SHA256.Sum([]byte("forged root"))
	report := VerifyPack(snapshot, meta)

	assert.True(t, report.IsTampered)
	assert.False(t, report.RootHashValid)
	assert.Empty(t, report.TamperedFiles)
}

func TestVerifyPack_UnsupportedAlgorithm(t *testing.T) {
	meta := Build(testSnapshot(), cryptoutils.SHA256).Metadata()
	meta.Algorithm = "CRC32"

	report := VerifyPack(testSnapshot(), meta)

	assert.True(t, report.IsTampered)
	require.NotEmpty(t, report.Errors)
}

func hashSnapshot(snapshot interfaces.ContentSnapshot) map[string]string {
	hashes := make(map[string]string, len(snapshot))
	for path, content := range snapshot {
		hashes[path] = cryptoutils.SHA256.Sum(content)
	}
	return hashes
}

func TestVerifyHashes_Unmodified(t *testing.T) {
	snapshot := testSnapshot()
	meta := Build(snapshot, cryptoutils.SHA256).Metadata()

	report := VerifyHashes(hashSnapshot(snapshot), meta)

	assert.False(t, report.IsTampered)
	assert.True(t, report.RootHashValid)
	assert.Len(t, report.ValidFiles, len(snapshot))
}

func TestVerifyHashes_TamperedAndMissing(t *testing.T) {
	snapshot := testSnapshot()
	meta := Build(snapshot, cryptoutils.SHA256).Metadata()

	observed := hashSnapshot(snapshot)
	observed["lineage.json"] = cryptoutils.SHA256.Sum([]byte("forged"))
	delete(observed, "decisions.json")

	report := VerifyHashes(observed, meta)

	assert.True(t, report.IsTampered)
	assert.Equal(t, []string{"lineage.json"}, report.TamperedFiles)
	assert.Equal(t, []string{"decisions.json"}, report.MissingFiles)
	assert.False(t, report.RootHashValid)
}

func TestRootFromHashes_MatchesTree(t *testing.T) {
	snapshot := testSnapshot()
	tree := Build(snapshot, cryptoutils.SHA256)

	root := RootFromHashes(hashSnapshot(snapshot), cryptoutils.SHA256)
	assert.Equal(t, tree.RootHash(), root)

	// Empty hash set reduces to the hash of the empty byte string.
	assert.Equal(t, cryptoutils.SHA256.Sum(nil), RootFromHashes(nil, cryptoutils.SHA256))
}

func TestVerifyPack_Scenario(t *testing.T) {
	// Build a pack from two files, verify clean, then flip one byte.
	snapshot := interfaces.ContentSnapshot{
		"a.txt": []byte("hello"),
		"b.txt": []byte("world"),
	}
	meta := Build(snapshot, cryptoutils.SHA256).Metadata()

	clean := VerifyPack(snapshot, meta)
	assert.False(t, clean.IsTampered)

	flipped := []byte("world")
	flipped[0] ^= 0x01
	snapshot["b.txt"] = flipped

	report := VerifyPack(snapshot, meta)
	assert.True(t, report.IsTampered)
	assert.Equal(t, []string{"b.txt"}, report.TamperedFiles)
}
