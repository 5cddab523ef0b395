package kms

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awskms "github.com/aws/aws-sdk-go/service/kms"

	"github.com/custodix/evidence-engine/interfaces"
)

// encryptionContext binds AWS KMS data keys to their purpose. Decrypt calls
// must present the same context or the unwrap is rejected by KMS.
var encryptionContext = map[string]*string{
	"purpose": aws.String("evidence-pack"),
}

// AWSKMSKeyManager generates and unwraps data keys through AWS KMS.
// The key-encryption key never leaves the KMS service.
type AWSKMSKeyManager struct {
	client  *awskms.KMS
	keyARN  string
	timeout time.Duration
}

// NewAWSKMSKeyManager creates a key manager backed by the given KMS key.
// The endpoint parameter is optional and supports KMS-compatible services
// for testing; region defaults to us-east-1.
func NewAWSKMSKeyManager(keyARN, region, endpoint string) (*AWSKMSKeyManager, error) {
	if keyARN == "" {
		return nil, fmt.Errorf("key ARN must not be empty")
	}
	if region == "" {
		region = "us-east-1"
	}

	cfg := aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &AWSKMSKeyManager{
		client:  awskms.New(sess),
		keyARN:  keyARN,
		timeout: 30 * time.Second,
	}, nil
}

// GenerateDataKey requests a fresh AES-256 data key from KMS. Generation
// failure is fatal for pack creation and is not retried here.
func (m *AWSKMSKeyManager) GenerateDataKey() ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	out, err := m.client.GenerateDataKeyWithContext(ctx, &awskms.GenerateDataKeyInput{
		KeyId:             aws.String(m.keyARN),
		KeySpec:           aws.String(awskms.DataKeySpecAes256),
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", interfaces.ErrKeyGeneration, err)
	}

	return out.Plaintext, out.CiphertextBlob, nil
}

// DecryptDataKey unwraps a data key through KMS. Callers performing
// read-only verification may retry on transient failures.
func (m *AWSKMSKeyManager) DecryptDataKey(wrapped []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	out, err := m.client.DecryptWithContext(ctx, &awskms.DecryptInput{
		CiphertextBlob:    wrapped,
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrKeyUnwrap, err)
	}

	return out.Plaintext, nil
}

// KeyID identifies the KMS key.
func (m *AWSKMSKeyManager) KeyID() string {
	return "aws-kms:" + m.keyARN
}
