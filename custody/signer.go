package custody

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// SignatureAlgorithmECDSAP256 is the algorithm string recorded alongside
// custodian signatures produced by ECDSASigner.
const SignatureAlgorithmECDSAP256 = "ECDSA-P256-SHA256"

// ErrInvalidSignature is returned by verifiers when a signature does not
// match the payload. Distinct from the warning case where no verifier is
// configured at all.
var ErrInvalidSignature = errors.New("invalid signature")

// Signer produces custodian signatures over canonical event payloads.
// "No signer configured" is represented by a nil Signer on the chain, an
// explicit and testable state.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
	Algorithm() string
}

// SignatureVerifier checks custodian signatures during chain verification.
type SignatureVerifier interface {
	Verify(payload, signature []byte) error
}

// ECDSASigner signs payloads with an ECDSA P-256 key over SHA-256 digests.
type ECDSASigner struct {
	key *ecdsa.PrivateKey
}

// NewECDSASigner wraps an existing private key.
func NewECDSASigner(key *ecdsa.PrivateKey) *ECDSASigner {
	return &ECDSASigner{key: key}
}

// GenerateSigner creates a signer with a fresh P-256 key.
func GenerateSigner() (*ECDSASigner, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return &ECDSASigner{key: key}, nil
}

// Sign returns an ASN.1 DER encoded signature over SHA-256(payload).
func (s *ECDSASigner) Sign(payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	return ecdsa.SignASN1(rand.Reader, s.key, digest[:])
}

// Algorithm identifies the signature scheme for the event record.
func (s *ECDSASigner) Algorithm() string {
	return SignatureAlgorithmECDSAP256
}

// PublicKey returns the verification key for this signer.
func (s *ECDSASigner) PublicKey() *ecdsa.PublicKey {
	return &s.key.PublicKey
}

// Verifier returns a SignatureVerifier for signatures produced by this
// signer.
func (s *ECDSASigner) Verifier() *ECDSAVerifier {
	return &ECDSAVerifier{key: s.PublicKey()}
}

// MarshalPrivateKeyPEM exports the signing key in PKCS#8 PEM form.
func (s *ECDSASigner) MarshalPrivateKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signing key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParseSignerPEM loads an ECDSA signer from a PKCS#8 PEM private key.
func ParseSignerPEM(data []byte) (*ECDSASigner, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block in signing key")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key is %T, expected ECDSA", parsed)
	}
	return &ECDSASigner{key: key}, nil
}

// ECDSAVerifier validates ECDSA P-256 signatures against a public key.
type ECDSAVerifier struct {
	key *ecdsa.PublicKey
}

// NewECDSAVerifier wraps a verification key.
func NewECDSAVerifier(key *ecdsa.PublicKey) *ECDSAVerifier {
	return &ECDSAVerifier{key: key}
}

// ParseVerifierPEM loads a verifier from a PKIX PEM public key.
func ParseVerifierPEM(data []byte) (*ECDSAVerifier, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block in verification key")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse verification key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("verification key is %T, expected ECDSA", parsed)
	}
	return &ECDSAVerifier{key: key}, nil
}

// MarshalPublicKeyPEM exports the verification key in PKIX PEM form.
func (v *ECDSAVerifier) MarshalPublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(v.key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verification key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// Verify checks an ASN.1 DER signature over SHA-256(payload).
func (v *ECDSAVerifier) Verify(payload, signature []byte) error {
	digest := sha256.Sum256(payload)
	if !ecdsa.VerifyASN1(v.key, digest[:], signature) {
		return ErrInvalidSignature
	}
	return nil
}
