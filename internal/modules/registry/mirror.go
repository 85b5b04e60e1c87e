package registry

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	appconfig "github.com/aristath/foundry/internal/config"
)

// Mirror uploads model artifacts to an S3-compatible bucket so a to-be-wiped
// host doesn't take the model history with it. Uploads are best-effort: a
// mirror failure never fails the training pipeline.
type Mirror struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewMirror builds an S3 client from the mirror configuration. Supports
// custom endpoints (MinIO, R2) via the endpoint resolver.
func NewMirror(ctx context.Context, cfg *appconfig.MirrorConfig, log zerolog.Logger) (*Mirror, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load mirror credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Mirror{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		log:      log.With().Str("component", "mirror").Logger(),
	}, nil
}

// Upload pushes one artifact to the bucket under <prefix>/<model-id>.model.
func (m *Mirror) Upload(ctx context.Context, modelID string, data []byte) error {
	key := path.Join(m.prefix, modelID+".model")

	started := time.Now()
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	m.log.Info().
		Str("model_id", modelID).
		Str("key", key).
		Dur("took", time.Since(started)).
		Msg("Artifact mirrored")
	return nil
}

// Delete removes a mirrored artifact after local eviction.
func (m *Mirror) Delete(ctx context.Context, modelID string) error {
	key := path.Join(m.prefix, modelID+".model")
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
