package persistent

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/moisesblank/people-flow-desk-sub004/pkg/s3client"
)

// SnapshotRepo stores exam evidence blobs (entry snapshots, dispute
// attachments) in object storage.
type SnapshotRepo struct {
	*s3client.S3Client
	bucket string
}

func NewSnapshotRepo(s3c *s3client.S3Client, bucket string) *SnapshotRepo {
	return &SnapshotRepo{s3c, bucket}
}

func (r *SnapshotRepo) Put(ctx context.Context, key string, data []byte, contentType string) error {
	b := bytes.NewReader(data)

	_, err := r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          b,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("SnapshotRepo - Put - r.Client.PutObject: %w", err)
	}

	return nil
}

func (r *SnapshotRepo) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := r.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("SnapshotRepo - Get - r.Client.GetObject: %w", err)
	}
	defer result.Body.Close()

	b, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("SnapshotRepo - Get - io.ReadAll: %w", err)
	}

	return b, nil
}
