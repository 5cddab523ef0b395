package merkle

import (
	"fmt"
	"sort"
	"time"

	"github.com/custodix/evidence-engine/cryptoutils"
	"github.com/custodix/evidence-engine/interfaces"
)

// Tree is a binary hash tree over the files of an evidence pack.
//
// Leaves are content hashes of individual files ordered by sorted path;
// internal nodes hash the concatenation of their children. The root hash is
// the pack-level integrity fingerprint: rebuilding from an identical
// snapshot always yields the same root, regardless of map iteration order.
type Tree struct {
	algorithm cryptoutils.HashAlgorithm

	// levels[0] holds the leaf hashes (including duplicate padding),
	// levels[len-1] holds the single root hash.
	levels [][]string

	paths      []string
	fileHashes map[string]string
	root       string
}

// Build constructs a tree from a content snapshot.
//
// Paths are sorted lexicographically for determinism. Levels with an odd
// number of nodes duplicate their last node before pairwise combination.
// An empty snapshot yields a defined empty-tree root (the hash of the empty
// byte string) rather than an error.
func Build(snapshot interfaces.ContentSnapshot, algorithm cryptoutils.HashAlgorithm) *Tree {
	t := &Tree{
		algorithm:  algorithm,
		fileHashes: make(map[string]string, len(snapshot)),
	}

	if len(snapshot) == 0 {
		t.root = algorithm.Sum(nil)
		return t
	}

	t.paths = make([]string, 0, len(snapshot))
	for path := range snapshot {
		t.paths = append(t.paths, path)
	}
	sort.Strings(t.paths)

	leaves := make([]string, 0, len(t.paths))
	for _, path := range t.paths {
		fileHash := algorithm.Sum(snapshot[path])
		t.fileHashes[path] = fileHash
		leaves = append(leaves, fileHash)
	}

	t.levels = combineLevels(leaves, algorithm)
	t.root = t.levels[len(t.levels)-1][0]
	return t
}

// combineLevels runs the iterative level-by-level combination; no recursion
// so very large file counts cannot exhaust the stack.
func combineLevels(leaves []string, algorithm cryptoutils.HashAlgorithm) [][]string {
	var levels [][]string
	level := leaves
	for {
		if len(level)%2 == 1 && len(level) > 1 {
			level = append(level, level[len(level)-1])
		}
		levels = append(levels, level)

		if len(level) == 1 {
			break
		}

		parents := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			parents = append(parents, algorithm.Combine(level[i], level[i+1]))
		}
		level = parents
	}
	return levels
}

// RootFromHashes recomputes the Merkle root from per-file leaf hashes,
// without access to the content itself. Used by audit tooling that holds
// integrity metadata but not the (encrypted) pack content.
func RootFromHashes(perFileHash map[string]string, algorithm cryptoutils.HashAlgorithm) string {
	if len(perFileHash) == 0 {
		return algorithm.Sum(nil)
	}

	paths := make([]string, 0, len(perFileHash))
	for path := range perFileHash {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	leaves := make([]string, 0, len(paths))
	for _, path := range paths {
		leaves = append(leaves, perFileHash[path])
	}

	levels := combineLevels(leaves, algorithm)
	return levels[len(levels)-1][0]
}

// RootHash returns the pack-level integrity fingerprint.
func (t *Tree) RootHash() string {
	return t.root
}

// Algorithm returns the digest the tree was built with.
func (t *Tree) Algorithm() cryptoutils.HashAlgorithm {
	return t.algorithm
}

// FileHash returns the leaf hash for a file path, or "" if not present.
func (t *Tree) FileHash(path string) string {
	return t.fileHashes[path]
}

// Depth returns the number of levels above the leaves.
func (t *Tree) Depth() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels) - 1
}

// Proof generates the inclusion proof for a file: the ordered sibling
// hashes needed to recombine the leaf hash up to the root. Verification
// needs only the file content and this proof, not the rest of the snapshot.
func (t *Tree) Proof(path string) (Proof, error) {
	fileHash, ok := t.fileHashes[path]
	if !ok {
		return Proof{}, fmt.Errorf("file not in tree: %s", path)
	}

	index := sort.SearchStrings(t.paths, path)

	proof := Proof{
		FilePath:  path,
		FileHash:  fileHash,
		RootHash:  t.root,
		Algorithm: string(t.algorithm),
	}

	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling >= len(level) {
			// Last node of an odd level pairs with its own duplicate.
			sibling = index
		}
		position := PositionRight
		if sibling < index {
			position = PositionLeft
		}
		proof.Siblings = append(proof.Siblings, ProofNode{
			Hash:     level[sibling],
			Position: position,
		})
		index /= 2
	}

	return proof, nil
}

// Metadata produces the persistable integrity record for the pack. It is
// sufficient to re-verify the pack later without rebuilding tree state.
func (t *Tree) Metadata() IntegrityMetadata {
	perFile := make(map[string]string, len(t.fileHashes))
	for path, hash := range t.fileHashes {
		perFile[path] = hash
	}

	return IntegrityMetadata{
		MerkleRoot:  t.root,
		Algorithm:   string(t.algorithm),
		TotalFiles:  len(t.fileHashes),
		TreeDepth:   t.Depth(),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		PerFileHash: perFile,
	}
}

// IntegrityMetadata is the persisted integrity record of an evidence pack
// (serialized as checksums.json). It allows later re-verification without
// access to the original tree.
type IntegrityMetadata struct {
	MerkleRoot  string            `json:"merkleRoot"`
	Algorithm   string            `json:"algorithm"`
	TotalFiles  int               `json:"totalFiles"`
	TreeDepth   int               `json:"treeDepth"`
	CreatedAt   string            `json:"createdAt"`
	PerFileHash map[string]string `json:"perFileHash"`
}
