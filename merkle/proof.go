package merkle

import "github.com/custodix/evidence-engine/cryptoutils"

// Sibling positions in an inclusion proof.
const (
	PositionLeft  = "left"
	PositionRight = "right"
)

// ProofNode is one sibling hash on the path from a leaf to the root.
type ProofNode struct {
	Hash     string `json:"hash"`
	Position string `json:"position"`
}

// Proof is a Merkle inclusion proof: the minimal sibling set needed to show
// a file's hash belongs to a tree with a known root. Verification is
// O(log n) and requires no other pack content.
type Proof struct {
	FilePath  string      `json:"filePath"`
	FileHash  string      `json:"fileHash"`
	Siblings  []ProofNode `json:"proofHashes"`
	RootHash  string      `json:"rootHash"`
	Algorithm string      `json:"algorithm"`
}

// Verify recombines the file hash with each sibling in order and reports
// whether the result reproduces the root hash. It is a pure function over
// the proof contents.
func (p Proof) Verify() bool {
	algorithm, err := cryptoutils.ParseHashAlgorithm(p.Algorithm)
	if err != nil {
		return false
	}

	current := p.FileHash
	for _, node := range p.Siblings {
		if node.Position == PositionLeft {
			current = algorithm.Combine(node.Hash, current)
		} else {
			current = algorithm.Combine(current, node.Hash)
		}
	}

	return current == p.RootHash
}

// VerifyContent checks a file's raw bytes against its inclusion proof:
// first that the content hashes to the proof's leaf hash, then that the
// proof reproduces the root.
func (p Proof) VerifyContent(content []byte) bool {
	algorithm, err := cryptoutils.ParseHashAlgorithm(p.Algorithm)
	if err != nil {
		return false
	}

	if algorithm.Sum(content) != p.FileHash {
		return false
	}
	return p.Verify()
}
