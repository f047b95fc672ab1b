package diarize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/mediswift/intake-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by the uploader.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader publishes converted voice recordings so the diarization provider
// can fetch them by URL. Objects are keyed by date and a random id; a bucket
// lifecycle rule is expected to expire them.
type S3Uploader struct {
	client    S3API
	bucket    string
	publicURL string
	logger    *logging.Logger
}

// NewS3Uploader builds the uploader. publicURL is the bucket's public base
// URL, without a trailing slash; empty falls back to the standard S3 form.
func NewS3Uploader(client S3API, bucket, publicURL string, logger *logging.Logger) *S3Uploader {
	if client == nil {
		panic("diarize: s3 client cannot be nil")
	}
	if bucket == "" {
		panic("diarize: upload bucket cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Uploader{client: client, bucket: bucket, publicURL: publicURL, logger: logger}
}

// Upload stores the local file and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("diarize: open %s: %w", path, err)
	}
	defer f.Close()

	now := time.Now().UTC()
	key := fmt.Sprintf("voice/%d/%02d/%02d/%s%s",
		now.Year(), now.Month(), now.Day(), uuid.NewString(), filepath.Ext(path))

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("audio/mp4"),
	})
	if err != nil {
		return "", fmt.Errorf("diarize: s3 put %s: %w", key, err)
	}
	u.logger.Debug("uploaded voice recording", "bucket", u.bucket, "key", key)

	if u.publicURL != "" {
		return u.publicURL + "/" + key, nil
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", u.bucket, key), nil
}
