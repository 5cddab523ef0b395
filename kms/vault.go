package kms

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/custodix/evidence-engine/interfaces"
)

// VaultKeyManager generates and unwraps data keys through the HashiCorp
// Vault transit secrets engine. The key-encryption key lives in Vault;
// wrapped keys are transit ciphertext strings ("vault:v1:...").
type VaultKeyManager struct {
	client  *api.Client
	transit string
	keyName string
	address string
	timeout time.Duration
}

// NewVaultKeyManager creates a key manager backed by a transit key.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - token: Vault token with access to the transit mount
//   - mountPath: transit mount path (e.g. "transit")
//   - keyName: name of the transit key used for wrapping
func NewVaultKeyManager(address, token, mountPath, keyName string) (*VaultKeyManager, error) {
	if keyName == "" {
		return nil, fmt.Errorf("transit key name must not be empty")
	}
	if mountPath == "" {
		mountPath = "transit"
	}

	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	return &VaultKeyManager{
		client:  client,
		transit: mountPath,
		keyName: keyName,
		address: address,
		timeout: 30 * time.Second,
	}, nil
}

// GenerateDataKey asks transit for a plaintext/ciphertext data key pair.
func (m *VaultKeyManager) GenerateDataKey() ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	path := fmt.Sprintf("%s/datakey/plaintext/%s", m.transit, m.keyName)
	secret, err := m.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"bits": 256,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", interfaces.ErrKeyGeneration, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil, fmt.Errorf("%w: empty transit response", interfaces.ErrKeyGeneration)
	}

	plaintextB64, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, nil, fmt.Errorf("%w: transit response missing plaintext", interfaces.ErrKeyGeneration)
	}
	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok {
		return nil, nil, fmt.Errorf("%w: transit response missing ciphertext", interfaces.ErrKeyGeneration)
	}

	plaintext, err := base64.StdEncoding.DecodeString(plaintextB64)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid plaintext encoding: %v", interfaces.ErrKeyGeneration, err)
	}

	return plaintext, []byte(ciphertext), nil
}

// DecryptDataKey unwraps a transit ciphertext back to the plaintext key.
func (m *VaultKeyManager) DecryptDataKey(wrapped []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	path := fmt.Sprintf("%s/decrypt/%s", m.transit, m.keyName)
	secret, err := m.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"ciphertext": string(wrapped),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrKeyUnwrap, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: empty transit response", interfaces.ErrKeyUnwrap)
	}

	plaintextB64, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: transit response missing plaintext", interfaces.ErrKeyUnwrap)
	}

	plaintext, err := base64.StdEncoding.DecodeString(plaintextB64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid plaintext encoding: %v", interfaces.ErrKeyUnwrap, err)
	}

	return plaintext, nil
}

// KeyID identifies the transit key.
func (m *VaultKeyManager) KeyID() string {
	return fmt.Sprintf("vault:%s/%s/%s", m.address, m.transit, m.keyName)
}
