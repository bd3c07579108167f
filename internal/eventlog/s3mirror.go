package eventlog

import (
	"context"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ottojung/volodyslav-scheduler/internal/logging"
)

// S3Mirror uploads copied event-log assets to an off-site bucket, the
// optional mirror spec §2 C13 names alongside the git remote.
type S3Mirror struct {
	uploader *manager.Uploader
	bucket   string
	log      logging.Logger
}

// NewS3Mirror constructs a mirror against bucket, resolving AWS
// credentials the standard SDK way (environment, shared config, or an
// explicit static pair when accessKey is non-empty).
func NewS3Mirror(ctx context.Context, bucket, region, accessKey, secretKey string, log logging.Logger) (*S3Mirror, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("eventlog: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Mirror{uploader: manager.NewUploader(client), bucket: bucket, log: log}, nil
}

// Upload streams body to bucket/key. A failure is logged here at
// warning level and not returned, so the caller (mirrorAssets) never
// sees it.
func (m *S3Mirror) Upload(ctx context.Context, key string, body io.Reader) {
	if m == nil {
		return
	}
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &m.bucket,
		Key:    &key,
		Body:   body,
	})
	if err != nil {
		m.log.Warn("eventlog: S3 upload failed", "bucket", m.bucket, "key", key, "error", err.Error())
	}
}
