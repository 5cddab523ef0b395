package pack

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/custodix/evidence-engine/cryptoutils"
	"github.com/custodix/evidence-engine/custody"
	"github.com/custodix/evidence-engine/envelope"
	"github.com/custodix/evidence-engine/interfaces"
	"github.com/custodix/evidence-engine/merkle"
)

// Pack is a sealed evidence pack directory opened for verification, audit,
// or further custody events.
type Pack struct {
	Dir       string
	Manifest  Manifest
	Integrity merkle.IntegrityMetadata
}

// VerificationReport combines the integrity and custody diagnostics of one
// pack. Confirmed is the only basis for treating the pack as verified:
// it requires an untampered content set and an intact custody chain.
type VerificationReport struct {
	Integrity      merkle.TamperReport             `json:"integrity"`
	ChainOfCustody custody.ChainVerificationResult `json:"chainOfCustody"`
	Confirmed      bool                            `json:"confirmed"`
}

// Open loads a pack directory written by Builder.Seal.
func Open(dir string) (*Pack, error) {
	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	integrity, err := readIntegrity(dir)
	if err != nil {
		return nil, err
	}
	if _, err := interfaces.ParsePackID(manifest.PackID); err != nil {
		return nil, fmt.Errorf("invalid pack ID in manifest: %w", err)
	}
	return &Pack{Dir: dir, Manifest: manifest, Integrity: integrity}, nil
}

// PackID returns the pack's identifier.
func (p *Pack) PackID() interfaces.PackID {
	return interfaces.PackID(p.Manifest.PackID)
}

// DecryptFile decrypts a single declared file.
func (p *Pack) DecryptFile(keyManager interfaces.KeyManager, path string) ([]byte, error) {
	decryptor := envelope.NewDecryptor(keyManager)
	if err := decryptor.Initialize(p.Manifest.Encryption); err != nil {
		return nil, err
	}
	return p.decryptOne(decryptor, path)
}

// Snapshot decrypts every declared file into a content snapshot. It fails
// fast on the first decryption error; use Verify for the diagnostic view.
func (p *Pack) Snapshot(keyManager interfaces.KeyManager) (interfaces.ContentSnapshot, error) {
	decryptor := envelope.NewDecryptor(keyManager)
	if err := decryptor.Initialize(p.Manifest.Encryption); err != nil {
		return nil, err
	}

	snapshot := make(interfaces.ContentSnapshot, len(p.Manifest.Files))
	for _, path := range p.Manifest.Files {
		plaintext, err := p.decryptOne(decryptor, path)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %s: %w", path, err)
		}
		snapshot[path] = plaintext
	}
	return snapshot, nil
}

// Proof decrypts the pack and produces the Merkle inclusion proof for one
// file. The proof alone then verifies against the recorded root without any
// further pack access.
func (p *Pack) Proof(keyManager interfaces.KeyManager, path string) (merkle.Proof, error) {
	snapshot, err := p.Snapshot(keyManager)
	if err != nil {
		return merkle.Proof{}, err
	}
	algorithm, err := p.algorithm()
	if err != nil {
		return merkle.Proof{}, err
	}
	return merkle.Build(snapshot, algorithm).Proof(path)
}

// Verify produces the full diagnostic report for the pack: it decrypts the
// declared content, diffs it against the recorded integrity metadata,
// rebuilds the Merkle root, scans for undeclared files on disk, and
// re-validates the custody chain.
//
// Per-file decryption failures are reported as tampered files rather than
// aborting, so auditors see the complete picture of a damaged pack. Key
// unwrap failure still aborts: without the data key nothing can be checked.
func (p *Pack) Verify(keyManager interfaces.KeyManager, signatureVerifier custody.SignatureVerifier, log *slog.Logger) (VerificationReport, error) {
	if log == nil {
		log = slog.Default()
	}

	decryptor := envelope.NewDecryptor(keyManager)
	if err := decryptor.Initialize(p.Manifest.Encryption); err != nil {
		return VerificationReport{}, fmt.Errorf("failed to unwrap pack data key: %w", err)
	}

	snapshot := make(interfaces.ContentSnapshot, len(p.Manifest.Files))
	var authFailed []string
	var decryptErrors []string

	for _, path := range p.Manifest.Files {
		plaintext, err := p.decryptOne(decryptor, path)
		switch {
		case err == nil:
			snapshot[path] = plaintext
		case errors.Is(err, fs.ErrNotExist):
			// Left out of the snapshot: reported as missing by the diff.
		case errors.Is(err, envelope.ErrAuthenticationFailed):
			authFailed = append(authFailed, path)
			decryptErrors = append(decryptErrors, fmt.Sprintf("%s: %v", path, err))
		default:
			authFailed = append(authFailed, path)
			decryptErrors = append(decryptErrors, fmt.Sprintf("%s: %v", path, err))
		}
	}

	report := merkle.VerifyPack(snapshot, p.Integrity)

	// Files that failed authentication are tampered, not missing: the bytes
	// are present but cannot be trusted.
	if len(authFailed) > 0 {
		missing := report.MissingFiles[:0]
		failed := make(map[string]bool, len(authFailed))
		for _, path := range authFailed {
			failed[path] = true
		}
		for _, path := range report.MissingFiles {
			if failed[path] {
				report.TamperedFiles = append(report.TamperedFiles, path)
			} else {
				missing = append(missing, path)
			}
		}
		report.MissingFiles = missing
		sort.Strings(report.TamperedFiles)
		report.Errors = append(report.Errors, decryptErrors...)
		report.IsTampered = true
	}

	undeclared, err := p.undeclaredFiles()
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("content scan failed: %v", err))
	}
	if len(undeclared) > 0 {
		report.NewFiles = append(report.NewFiles, undeclared...)
		sort.Strings(report.NewFiles)
		report.IsTampered = true
	}

	chainResult := custody.NewChainVerifier(signatureVerifier).Verify(p.Manifest.ChainOfCustody)

	confirmed := !report.IsTampered && chainResult.Valid
	log.Info("verified evidence pack",
		"packID", p.Manifest.PackID,
		"confirmed", confirmed,
		"isTampered", report.IsTampered,
		"chainValid", chainResult.Valid,
	)

	return VerificationReport{
		Integrity:      report,
		ChainOfCustody: chainResult,
		Confirmed:      confirmed,
	}, nil
}

// AppendEvent records a lifecycle event onto the pack's custody chain and
// rewrites the manifest. The new event links onto the persisted history.
func (p *Pack) AppendEvent(action custody.CustodyAction, custodian custody.Custodian, details custody.EventDetails, signer custody.Signer, log *slog.Logger) (custody.CustodyEvent, error) {
	chain := custody.ResumeChain(p.PackID(), p.Manifest.ChainOfCustody, signer, log)
	event, err := chain.RecordEvent(action, custodian, details)
	if err != nil {
		return custody.CustodyEvent{}, err
	}

	p.Manifest.ChainOfCustody = chain.Events()
	if err := writeJSONFile(filepath.Join(p.Dir, manifestFileName), p.Manifest); err != nil {
		return custody.CustodyEvent{}, err
	}
	return event, nil
}

func (p *Pack) decryptOne(decryptor *envelope.Decryptor, path string) ([]byte, error) {
	if err := validateRelativePath(path); err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(filepath.Join(p.Dir, contentDirName, filepath.FromSlash(path)))
	if err != nil {
		return nil, err
	}
	return decryptor.DecryptFile(blob, envelope.FileAAD(p.PackID(), path))
}

// undeclaredFiles lists content files on disk that the manifest does not
// declare. Their presence alone marks the pack tampered.
func (p *Pack) undeclaredFiles() ([]string, error) {
	declared := make(map[string]bool, len(p.Manifest.Files))
	for _, path := range p.Manifest.Files {
		declared[path] = true
	}

	contentDir := filepath.Join(p.Dir, contentDirName)
	var undeclared []string
	err := filepath.WalkDir(contentDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(contentDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !declared[rel] {
			undeclared = append(undeclared, rel)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return undeclared, err
}

func (p *Pack) algorithm() (cryptoutils.HashAlgorithm, error) {
	return cryptoutils.ParseHashAlgorithm(p.Integrity.Algorithm)
}
