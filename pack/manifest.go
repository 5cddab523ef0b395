package pack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodix/evidence-engine/custody"
	"github.com/custodix/evidence-engine/envelope"
	"github.com/custodix/evidence-engine/merkle"
)

const (
	// FormatVersion identifies the pack layout written by this engine.
	FormatVersion = "1.0"

	manifestFileName  = "manifest.json"
	checksumsFileName = "checksums.json"
	contentDirName    = "content"
)

// Manifest is the top-level record of a sealed evidence pack, persisted as
// manifest.json next to checksums.json and the encrypted content files.
type Manifest struct {
	FormatVersion  string                      `json:"formatVersion"`
	PackID         string                      `json:"packId"`
	CreatedAt      string                      `json:"createdAt"`
	Custodian      custody.Custodian           `json:"custodian"`
	Files          []string                    `json:"files"`
	Encryption     envelope.EncryptionMetadata `json:"encryption"`
	ChainOfCustody []custody.CustodyEvent      `json:"chainOfCustody"`
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readManifest(dir string) (Manifest, error) {
	var manifest Manifest
	data, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		return manifest, fmt.Errorf("failed to read pack manifest: %w", err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("failed to parse pack manifest: %w", err)
	}
	return manifest, nil
}

func readIntegrity(dir string) (merkle.IntegrityMetadata, error) {
	var integrity merkle.IntegrityMetadata
	data, err := os.ReadFile(filepath.Join(dir, checksumsFileName))
	if err != nil {
		return integrity, fmt.Errorf("failed to read pack checksums: %w", err)
	}
	if err := json.Unmarshal(data, &integrity); err != nil {
		return integrity, fmt.Errorf("failed to parse pack checksums: %w", err)
	}
	return integrity, nil
}
