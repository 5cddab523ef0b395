package pack

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/custodix/evidence-engine/cryptoutils"
	"github.com/custodix/evidence-engine/custody"
	"github.com/custodix/evidence-engine/envelope"
	"github.com/custodix/evidence-engine/interfaces"
	"github.com/custodix/evidence-engine/merkle"
)

// BuilderConfig configures pack sealing. KeyManager is required; Signer is
// the optional custodian signer for custody events; Algorithm defaults to
// SHA-256.
type BuilderConfig struct {
	KeyManager interfaces.KeyManager
	Signer     custody.Signer
	Algorithm  cryptoutils.HashAlgorithm
	Log        *slog.Logger
}

// Builder seals content snapshots into evidence pack directories.
type Builder struct {
	keyManager interfaces.KeyManager
	signer     custody.Signer
	algorithm  cryptoutils.HashAlgorithm
	log        *slog.Logger
}

// NewBuilder validates the configuration and returns a builder.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.KeyManager == nil {
		return nil, errors.New("pack builder requires a key manager")
	}
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = cryptoutils.SHA256
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		keyManager: cfg.KeyManager,
		signer:     cfg.Signer,
		algorithm:  algorithm,
		log:        log,
	}, nil
}

// Seal builds a complete evidence pack from a content snapshot under
// outputDir/<packID>.
//
// Pipeline: Merkle tree over the plaintext snapshot, one fresh data key,
// per-file envelope encryption, then the custody genesis and seal events.
// Write ordering is crash-safe: encrypted content and checksums.json are
// fully materialized before the manifest carrying the custody chain, so an
// interrupted build never leaves a custody record for content that was not
// written.
func (b *Builder) Seal(outputDir string, custodian custody.Custodian, snapshot interfaces.ContentSnapshot) (*Pack, error) {
	paths := make([]string, 0, len(snapshot))
	for path := range snapshot {
		if err := validateRelativePath(path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	packID := interfaces.NewPackID()
	tree := merkle.Build(snapshot, b.algorithm)
	integrity := tree.Metadata()

	encryptor := envelope.NewEncryptor(b.keyManager)
	encryptionMetadata, err := encryptor.Initialize()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pack encryption: %w", err)
	}

	packDir := filepath.Join(outputDir, string(packID))
	contentDir := filepath.Join(packDir, contentDirName)
	if err := os.MkdirAll(contentDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create pack directory: %w", err)
	}

	for _, path := range paths {
		blob, err := encryptor.EncryptFile(snapshot[path], envelope.FileAAD(packID, path))
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt %s: %w", path, err)
		}

		target := filepath.Join(contentDir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create content directory for %s: %w", path, err)
		}
		if err := os.WriteFile(target, blob, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write encrypted %s: %w", path, err)
		}
	}

	if err := writeJSONFile(filepath.Join(packDir, checksumsFileName), integrity); err != nil {
		return nil, err
	}

	chain := custody.NewChain(packID, b.signer, b.log)
	if _, err := chain.RecordCreation(custodian, tree.RootHash()); err != nil {
		return nil, fmt.Errorf("failed to record pack creation: %w", err)
	}
	if _, err := chain.RecordSeal(custodian, tree.RootHash()); err != nil {
		return nil, fmt.Errorf("failed to record pack seal: %w", err)
	}

	manifest := Manifest{
		FormatVersion:  FormatVersion,
		PackID:         string(packID),
		CreatedAt:      time.Now().UTC().Format(time.RFC3339Nano),
		Custodian:      custodian,
		Files:          paths,
		Encryption:     encryptionMetadata,
		ChainOfCustody: chain.Events(),
	}
	if err := writeJSONFile(filepath.Join(packDir, manifestFileName), manifest); err != nil {
		return nil, err
	}

	b.log.Info("sealed evidence pack",
		"packID", packID,
		"files", len(paths),
		"merkleRoot", tree.RootHash(),
		"keyID", encryptionMetadata.KeyID,
	)

	return &Pack{
		Dir:       packDir,
		Manifest:  manifest,
		Integrity: integrity,
	}, nil
}

func validateRelativePath(path string) error {
	if path == "" {
		return errors.New("empty file path in snapshot")
	}
	if strings.HasPrefix(path, "/") || filepath.IsAbs(path) {
		return fmt.Errorf("absolute file path in snapshot: %s", path)
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return fmt.Errorf("file path escapes pack directory: %s", path)
		}
	}
	return nil
}
