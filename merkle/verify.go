package merkle

import (
	"fmt"
	"sort"

	"github.com/custodix/evidence-engine/cryptoutils"
	"github.com/custodix/evidence-engine/interfaces"
)

// TamperReport is the structured outcome of a full pack verification.
//
// Integrity violations are reported as data rather than returned as errors
// so audit tooling sees the complete diagnostic even in the tampered case.
// Any report with IsTampered true means pack integrity is NOT confirmed.
type TamperReport struct {
	IsTampered    bool     `json:"isTampered"`
	ValidFiles    []string `json:"validFiles"`
	TamperedFiles []string `json:"tamperedFiles"`
	MissingFiles  []string `json:"missingFiles"`
	NewFiles      []string `json:"newFiles"`
	RootHashValid bool     `json:"rootHashValid"`
	Errors        []string `json:"errors,omitempty"`
}

// VerifyPack compares a current snapshot against previously persisted
// integrity metadata.
//
// Files present in both with differing hashes are tampered; files present
// only in the metadata are missing; files present only in the snapshot are
// unauthorized additions. Independently of the per-file diff, the full tree
// is rebuilt from current content and compared against the recorded root,
// which also catches alteration of the metadata itself. This check is O(n);
// for a single file the O(log n) alternative is Proof.VerifyContent.
func VerifyPack(current interfaces.ContentSnapshot, prior IntegrityMetadata) TamperReport {
	report := TamperReport{
		ValidFiles:    []string{},
		TamperedFiles: []string{},
		MissingFiles:  []string{},
		NewFiles:      []string{},
		RootHashValid: true,
	}

	algorithm, err := cryptoutils.ParseHashAlgorithm(prior.Algorithm)
	if err != nil {
		report.IsTampered = true
		report.RootHashValid = false
		report.Errors = append(report.Errors, fmt.Sprintf("verification error: %v", err))
		return report
	}

	currentHashes := make(map[string]string, len(current))
	for path, content := range current {
		currentHashes[path] = algorithm.Sum(content)
	}

	priorPaths := make([]string, 0, len(prior.PerFileHash))
	for path := range prior.PerFileHash {
		priorPaths = append(priorPaths, path)
	}
	sort.Strings(priorPaths)

	for _, path := range priorPaths {
		currentHash, ok := currentHashes[path]
		switch {
		case !ok:
			report.MissingFiles = append(report.MissingFiles, path)
		case currentHash != prior.PerFileHash[path]:
			report.TamperedFiles = append(report.TamperedFiles, path)
		default:
			report.ValidFiles = append(report.ValidFiles, path)
		}
	}

	currentPaths := make([]string, 0, len(current))
	for path := range current {
		if _, ok := prior.PerFileHash[path]; !ok {
			currentPaths = append(currentPaths, path)
		}
	}
	sort.Strings(currentPaths)
	report.NewFiles = currentPaths

	// Rebuild the tree over the recorded path set from current content.
	// Missing files keep the tree shape with an empty placeholder so a
	// single deletion cannot masquerade as a wholly different pack.
	rebuild := make(interfaces.ContentSnapshot, len(prior.PerFileHash))
	for _, path := range priorPaths {
		if content, ok := current[path]; ok {
			rebuild[path] = content
		} else {
			rebuild[path] = []byte{}
		}
	}
	report.RootHashValid = Build(rebuild, algorithm).RootHash() == prior.MerkleRoot

	report.IsTampered = len(report.TamperedFiles) > 0 ||
		len(report.MissingFiles) > 0 ||
		len(report.NewFiles) > 0 ||
		!report.RootHashValid

	return report
}

// VerifyHashes is the hash-level variant of VerifyPack for callers that
// hold per-file hashes but not the content, such as remote audit tooling.
// The diff and root rebuild follow the same rules; missing files take the
// empty-content leaf hash as placeholder.
func VerifyHashes(current map[string]string, prior IntegrityMetadata) TamperReport {
	report := TamperReport{
		ValidFiles:    []string{},
		TamperedFiles: []string{},
		MissingFiles:  []string{},
		NewFiles:      []string{},
		RootHashValid: true,
	}

	algorithm, err := cryptoutils.ParseHashAlgorithm(prior.Algorithm)
	if err != nil {
		report.IsTampered = true
		report.RootHashValid = false
		report.Errors = append(report.Errors, fmt.Sprintf("verification error: %v", err))
		return report
	}

	priorPaths := make([]string, 0, len(prior.PerFileHash))
	for path := range prior.PerFileHash {
		priorPaths = append(priorPaths, path)
	}
	sort.Strings(priorPaths)

	for _, path := range priorPaths {
		currentHash, ok := current[path]
		switch {
		case !ok:
			report.MissingFiles = append(report.MissingFiles, path)
		case currentHash != prior.PerFileHash[path]:
			report.TamperedFiles = append(report.TamperedFiles, path)
		default:
			report.ValidFiles = append(report.ValidFiles, path)
		}
	}

	newPaths := make([]string, 0)
	for path := range current {
		if _, ok := prior.PerFileHash[path]; !ok {
			newPaths = append(newPaths, path)
		}
	}
	sort.Strings(newPaths)
	report.NewFiles = newPaths

	rebuild := make(map[string]string, len(prior.PerFileHash))
	for _, path := range priorPaths {
		if hash, ok := current[path]; ok {
			rebuild[path] = hash
		} else {
			rebuild[path] = algorithm.Sum([]byte{})
		}
	}
	report.RootHashValid = RootFromHashes(rebuild, algorithm) == prior.MerkleRoot

	report.IsTampered = len(report.TamperedFiles) > 0 ||
		len(report.MissingFiles) > 0 ||
		len(report.NewFiles) > 0 ||
		!report.RootHashValid

	return report
}
