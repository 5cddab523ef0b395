package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/custodix/evidence-engine/common"
	"github.com/custodix/evidence-engine/cryptoutils"
	"github.com/custodix/evidence-engine/custody"
	"github.com/custodix/evidence-engine/interfaces"
	"github.com/custodix/evidence-engine/kms"
	"github.com/custodix/evidence-engine/merkle"
	"github.com/custodix/evidence-engine/pack"
	"github.com/custodix/evidence-engine/storage"
	"github.com/urfave/cli/v2"
)

var logFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
}

var kmsFlag = &cli.StringFlag{
	Name:  "kms",
	Value: "local://dev",
	Usage: "key manager URI (local://, aws-kms://, vault://)",
}

var custodianFlags = []cli.Flag{
	&cli.StringFlag{Name: "custodian-id", Value: "system", Usage: "custodian identifier"},
	&cli.StringFlag{Name: "custodian-name", Value: "packtool", Usage: "custodian display name"},
	&cli.StringFlag{Name: "custodian-role", Value: "system", Usage: "custodian role"},
	&cli.StringFlag{Name: "custodian-org", Value: "", Usage: "custodian organization"},
}

func main() {
	app := &cli.App{
		Name:  "packtool",
		Usage: "Seal, verify, and audit evidence packs",
		Commands: []*cli.Command{
			sealCommand(),
			verifyCommand(),
			proofCommand(),
			checkProofCommand(),
			eventCommand(),
			keygenCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(cCtx *cli.Context) *slog.Logger {
	return common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool("log-debug"),
		JSON:    cCtx.Bool("log-json"),
		Service: "packtool",
		Version: common.Version,
	})
}

func keyManagerFor(cCtx *cli.Context, logger *slog.Logger) (interfaces.KeyManager, error) {
	return kms.NewFactory(logger).KeyManagerFor(cCtx.String("kms"))
}

func custodianFor(cCtx *cli.Context) custody.Custodian {
	return custody.Custodian{
		ID:           cCtx.String("custodian-id"),
		Name:         cCtx.String("custodian-name"),
		Role:         cCtx.String("custodian-role"),
		Organization: cCtx.String("custodian-org"),
	}
}

func signerFor(cCtx *cli.Context) (custody.Signer, error) {
	keyFile := cCtx.String("signing-key")
	if keyFile == "" {
		return nil, nil
	}
	pemData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	return custody.ParseSignerPEM(pemData)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sealCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "input", Required: true, Usage: "directory with the content to seal"},
		&cli.StringFlag{Name: "output", Value: "./evidence", Usage: "directory to create the pack under"},
		&cli.StringFlag{Name: "algorithm", Value: "SHA-256", Usage: "hash algorithm (SHA-256, SHA-384, SHA-512)"},
		&cli.StringFlag{Name: "signing-key", Value: "", Usage: "PEM file with the ECDSA custody signing key"},
		&cli.StringSliceFlag{Name: "store", Usage: "storage backend URIs to push the sealed pack to"},
		kmsFlag,
	}
	flags = append(flags, custodianFlags...)
	flags = append(flags, logFlags...)

	return &cli.Command{
		Name:  "seal",
		Usage: "Seal a directory into an evidence pack",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			logger := setupLogger(cCtx)

			algorithm, err := cryptoutils.ParseHashAlgorithm(cCtx.String("algorithm"))
			if err != nil {
				return err
			}

			keyManager, err := keyManagerFor(cCtx, logger)
			if err != nil {
				return err
			}

			signer, err := signerFor(cCtx)
			if err != nil {
				return err
			}

			snapshot, err := snapshotFromDir(cCtx.String("input"))
			if err != nil {
				return err
			}

			builder, err := pack.NewBuilder(pack.BuilderConfig{
				KeyManager: keyManager,
				Signer:     signer,
				Algorithm:  algorithm,
				Log:        logger,
			})
			if err != nil {
				return err
			}

			sealed, err := builder.Seal(cCtx.String("output"), custodianFor(cCtx), snapshot)
			if err != nil {
				return err
			}

			fmt.Printf("sealed pack %s\n", sealed.Manifest.PackID)
			fmt.Printf("  directory:   %s\n", sealed.Dir)
			fmt.Printf("  merkle root: %s\n", sealed.Integrity.MerkleRoot)
			fmt.Printf("  files:       %d\n", sealed.Integrity.TotalFiles)

			storeURIs := cCtx.StringSlice("store")
			if len(storeURIs) == 0 {
				return nil
			}
			return pushToStorage(cCtx.Context, logger, sealed, storeURIs)
		},
	}
}

func pushToStorage(ctx context.Context, logger *slog.Logger, sealed *pack.Pack, uris []string) error {
	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		locations = append(locations, interfaces.StorageBackendLocation(uri))
	}

	backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
	if err != nil {
		return err
	}

	manifestData, err := json.Marshal(sealed.Manifest)
	if err != nil {
		return err
	}
	manifestID, err := backend.Store(ctx, manifestData, interfaces.ManifestType)
	if err != nil {
		return fmt.Errorf("failed to store manifest: %w", err)
	}

	archiveData, err := pack.Archive(sealed.Dir)
	if err != nil {
		return err
	}
	archiveID, err := backend.Store(ctx, archiveData, interfaces.ArchiveType)
	if err != nil {
		return fmt.Errorf("failed to store archive: %w", err)
	}

	fmt.Printf("  manifest id: %s\n", manifestID)
	fmt.Printf("  archive id:  %s\n", archiveID)
	return nil
}

func verifyCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "pack", Required: true, Usage: "pack directory to verify"},
		&cli.StringFlag{Name: "verifier-key", Value: "", Usage: "PEM file with the ECDSA custody verification key"},
		kmsFlag,
	}
	flags = append(flags, logFlags...)

	return &cli.Command{
		Name:  "verify",
		Usage: "Verify a pack's integrity and chain of custody",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			logger := setupLogger(cCtx)

			keyManager, err := keyManagerFor(cCtx, logger)
			if err != nil {
				return err
			}

			var signatureVerifier custody.SignatureVerifier
			if keyFile := cCtx.String("verifier-key"); keyFile != "" {
				pemData, err := os.ReadFile(keyFile)
				if err != nil {
					return fmt.Errorf("failed to read verifier key: %w", err)
				}
				verifier, err := custody.ParseVerifierPEM(pemData)
				if err != nil {
					return err
				}
				signatureVerifier = verifier
			}

			opened, err := pack.Open(cCtx.String("pack"))
			if err != nil {
				return err
			}

			report, err := opened.Verify(keyManager, signatureVerifier, logger)
			if err != nil {
				return err
			}

			if err := printJSON(report); err != nil {
				return err
			}
			if !report.Confirmed {
				return cli.Exit("pack integrity NOT confirmed", 1)
			}
			return nil
		},
	}
}

func proofCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "pack", Required: true, Usage: "pack directory"},
		&cli.StringFlag{Name: "file", Required: true, Usage: "relative path of the file to prove"},
		kmsFlag,
	}
	flags = append(flags, logFlags...)

	return &cli.Command{
		Name:  "proof",
		Usage: "Emit the Merkle inclusion proof for one pack file",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			logger := setupLogger(cCtx)

			keyManager, err := keyManagerFor(cCtx, logger)
			if err != nil {
				return err
			}

			opened, err := pack.Open(cCtx.String("pack"))
			if err != nil {
				return err
			}

			proof, err := opened.Proof(keyManager, cCtx.String("file"))
			if err != nil {
				return err
			}
			return printJSON(proof)
		},
	}
}

func checkProofCommand() *cli.Command {
	return &cli.Command{
		Name:  "check-proof",
		Usage: "Verify a previously emitted inclusion proof",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "proof", Required: true, Usage: "JSON file with the proof document"},
		}, logFlags...),
		Action: func(cCtx *cli.Context) error {
			data, err := os.ReadFile(cCtx.String("proof"))
			if err != nil {
				return fmt.Errorf("failed to read proof file: %w", err)
			}

			var proof merkle.Proof
			if err := json.Unmarshal(data, &proof); err != nil {
				return fmt.Errorf("failed to parse proof document: %w", err)
			}

			if !proof.Verify() {
				return cli.Exit("proof INVALID", 1)
			}
			fmt.Printf("proof valid: %s is included under root %s\n", proof.FilePath, proof.RootHash)
			return nil
		},
	}
}

func eventCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "pack", Required: true, Usage: "pack directory"},
		&cli.StringFlag{Name: "action", Required: true, Usage: "custody action (accessed, transferred, verified, exported, legal_hold, ...)"},
		&cli.StringFlag{Name: "description", Value: "", Usage: "event description"},
		&cli.StringFlag{Name: "signing-key", Value: "", Usage: "PEM file with the ECDSA custody signing key"},
	}
	flags = append(flags, custodianFlags...)
	flags = append(flags, logFlags...)

	return &cli.Command{
		Name:  "event",
		Usage: "Append a custody event to a pack",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			logger := setupLogger(cCtx)

			action, err := parseAction(cCtx.String("action"))
			if err != nil {
				return err
			}

			signer, err := signerFor(cCtx)
			if err != nil {
				return err
			}

			opened, err := pack.Open(cCtx.String("pack"))
			if err != nil {
				return err
			}

			event, err := opened.AppendEvent(action, custodianFor(cCtx), custody.EventDetails{
				Description: cCtx.String("description"),
				Context:     custody.Context{AccessMethod: "cli"},
			}, signer, logger)
			if err != nil {
				return err
			}

			return printJSON(event)
		},
	}
}

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate an ECDSA custody signing keypair",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "out", Value: "custody", Usage: "output file prefix (<out>.key, <out>.pub)"},
		}, logFlags...),
		Action: func(cCtx *cli.Context) error {
			signer, err := custody.GenerateSigner()
			if err != nil {
				return err
			}

			privPEM, err := signer.MarshalPrivateKeyPEM()
			if err != nil {
				return err
			}
			pubPEM, err := signer.Verifier().MarshalPublicKeyPEM()
			if err != nil {
				return err
			}

			out := cCtx.String("out")
			if err := os.WriteFile(out+".key", privPEM, 0o600); err != nil {
				return err
			}
			if err := os.WriteFile(out+".pub", pubPEM, 0o644); err != nil {
				return err
			}

			fmt.Printf("wrote %s.key and %s.pub\n", out, out)
			return nil
		},
	}
}

func snapshotFromDir(dir string) (interfaces.ContentSnapshot, error) {
	snapshot := make(interfaces.ContentSnapshot)
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		snapshot[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}
	return snapshot, nil
}

var knownActions = map[string]custody.CustodyAction{
	"created":            custody.ActionCreated,
	"sealed":             custody.ActionSealed,
	"transferred":        custody.ActionTransferred,
	"accessed":           custody.ActionAccessed,
	"verified":           custody.ActionVerified,
	"exported":           custody.ActionExported,
	"decrypted":          custody.ActionDecrypted,
	"legal_hold":         custody.ActionLegalHold,
	"legal_release":      custody.ActionLegalRelease,
	"retention_set":      custody.ActionRetentionSet,
	"archived":           custody.ActionArchived,
	"restored":           custody.ActionRestored,
	"deletion_scheduled": custody.ActionDeletionScheduled,
	"deleted":            custody.ActionDeleted,
}

func parseAction(s string) (custody.CustodyAction, error) {
	action, ok := knownActions[s]
	if !ok {
		return "", fmt.Errorf("unknown custody action: %q", s)
	}
	return action, nil
}
