package secretvault

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vespid-ai/control-plane/internal/config"
	"github.com/vespid-ai/control-plane/internal/crypto"
)

// KEK is the process-wide key-encryption key, loaded once at startup (spec
// §5: "KEK material is loaded once at startup") and held only in memory for
// the process lifetime.
type KEK struct {
	ID    string
	Bytes []byte
}

// LoadKEK fetches the KEK object from an S3-compatible bucket and derives a
// 32-byte AES key from its raw bytes via HKDF-SHA256, scoped by cfg.KEKObjectKey
// so rotating to a different object key never collides with a prior
// derivation. Grounded on Mindburn-Labs-helm's S3Store (config.LoadDefaultConfig
// + optional custom endpoint for non-AWS S3-compatible stores).
func LoadKEK(ctx context.Context, cfg config.Config) (*KEK, error) {
	if cfg.KEKObjectBucket == "" {
		return nil, fmt.Errorf("secretvault: KEK_OBJECT_BUCKET is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretvault: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.KEKEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.KEKEndpointURL)
			o.UsePathStyle = true
		}
	})

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(cfg.KEKObjectBucket),
		Key:    aws.String(cfg.KEKObjectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("secretvault: fetching KEK object: %w", err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("secretvault: reading KEK object: %w", err)
	}

	key, err := crypto.DeriveKey(raw, nil, []byte("vespid-kek:"+cfg.KEKObjectKey), crypto.DEKSize)
	if err != nil {
		return nil, fmt.Errorf("secretvault: deriving KEK: %w", err)
	}

	return &KEK{ID: cfg.KEKObjectKey, Bytes: key}, nil
}
