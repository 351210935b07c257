package keyservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// KMSAPI is the subset of the AWS KMS client used by KMSService.
type KMSAPI interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSService encrypts directly under a KMS key. The key never leaves KMS.
type KMSService struct {
	client KMSAPI
	keyID  string
}

// NewKMSService returns a KMSService that uses keyID (id, ARN or alias) for both directions.
func NewKMSService(client KMSAPI, keyID string) *KMSService {
	return &KMSService{client: client, keyID: keyID}
}

// Encrypt returns the KMS ciphertext blob for plaintext.
func (s *KMSService) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	out, err := s.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(s.keyID),
		Plaintext: plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out.CiphertextBlob, nil
}

// Decrypt opens a KMS ciphertext blob. Rejections of the blob itself map to ErrInvalidCiphertext.
func (s *KMSService) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	out, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          aws.String(s.keyID),
		CiphertextBlob: ciphertext,
	})
	if err != nil {
		var invalid *kmstypes.InvalidCiphertextException
		var incorrect *kmstypes.IncorrectKeyException
		if errors.As(err, &invalid) || errors.As(err, &incorrect) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out.Plaintext, nil
}

var _ KeyService = (*KMSService)(nil)
