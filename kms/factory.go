package kms

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/custodix/evidence-engine/interfaces"
)

// Factory creates key managers from URI strings, mirroring how storage
// backends are selected. Shamir managers are constructed directly since
// they require interactive share submission.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a key manager factory.
func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{log: logger}
}

// KeyManagerFor creates a key manager from a provider URI.
//
// Supported schemes:
//   - local://secret@host?salt=<hex> - PBKDF2-derived local KEK
//   - aws-kms://<key-id-or-alias>?region=us-east-1&endpoint=... - AWS KMS
//   - vault://host:port/<transit-key>?mount=transit&token=... - Vault transit
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (f *Factory) KeyManagerFor(providerURI string) (interfaces.KeyManager, error) {
	u, err := url.Parse(providerURI)
	if err != nil {
		return nil, fmt.Errorf("invalid key provider URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "local":
		return f.createLocal(u)
	case "aws-kms":
		return f.createAWSKMS(u)
	case "vault":
		return f.createVault(u)
	default:
		return nil, fmt.Errorf("unsupported key provider scheme: %s", u.Scheme)
	}
}

// createLocal creates a PBKDF2-based local key manager.
// URI format: local://master-secret@dev?salt=<hex>
// The salt parameter is required to unwrap keys from an earlier run.
func (f *Factory) createLocal(u *url.URL) (interfaces.KeyManager, error) {
	f.log.Debug("Creating local key manager")

	var secret string
	if u.User != nil {
		secret = u.User.Username()
	}
	if secret == "" {
		secret = os.Getenv("EVIDENCE_MASTER_SECRET")
	}
	if secret == "" {
		return nil, fmt.Errorf("local key manager requires a master secret (URI userinfo or EVIDENCE_MASTER_SECRET)")
	}

	var salt []byte
	if saltHex := u.Query().Get("salt"); saltHex != "" {
		var err error
		salt, err = hex.DecodeString(saltHex)
		if err != nil {
			return nil, fmt.Errorf("invalid salt parameter: %w", err)
		}
	}

	return NewLocalKeyManager(secret, salt)
}

// createAWSKMS creates an AWS KMS key manager.
// URI format: aws-kms://<key-id-or-alias>?region=us-west-2&endpoint=custom.kms.example.com
func (f *Factory) createAWSKMS(u *url.URL) (interfaces.KeyManager, error) {
	f.log.Debug("Creating AWS KMS key manager", slog.String("uri", u.Redacted()))

	keyID := u.Host + u.Path
	if keyID == "" {
		return nil, fmt.Errorf("aws-kms URI must name a key ID or alias")
	}

	query := u.Query()
	return NewAWSKMSKeyManager(keyID, query.Get("region"), query.Get("endpoint"))
}

// createVault creates a Vault transit key manager.
// URI format: vault://vault.example.com:8200/evidence-key?mount=transit&token=...
// The token falls back to the VAULT_TOKEN environment variable.
func (f *Factory) createVault(u *url.URL) (interfaces.KeyManager, error) {
	f.log.Debug("Creating Vault key manager", slog.String("uri", u.Redacted()))

	keyName := strings.Trim(u.Path, "/")
	if keyName == "" {
		return nil, fmt.Errorf("vault URI must name a transit key")
	}

	query := u.Query()
	scheme := "https"
	if query.Get("insecure") == "true" {
		scheme = "http"
	}
	address := fmt.Sprintf("%s://%s", scheme, u.Host)

	token := query.Get("token")
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}

	return NewVaultKeyManager(address, token, query.Get("mount"), keyName)
}
