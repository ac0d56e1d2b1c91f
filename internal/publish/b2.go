package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/Backblaze/blazer/b2"
)

// B2 mirrors published files into a Backblaze B2 bucket under an optional
// prefix.
type B2 struct {
	BucketName string
	Prefix     string

	bucket *b2.Bucket
}

// NewB2 builds a B2 publisher authenticated with keyID/key, targeting
// bucketName.
func NewB2(ctx context.Context, keyID, key, bucketName, prefix string) (*B2, error) {
	client, err := b2.NewClient(ctx, keyID, key)
	if err != nil {
		return nil, fmt.Errorf("create b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("open b2 bucket %s: %w", bucketName, err)
	}
	return &B2{BucketName: bucketName, Prefix: prefix, bucket: bucket}, nil
}

func (p *B2) Publish(ctx context.Context, localPath, destinationName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open file for b2 upload: %w", err)
	}
	defer f.Close()

	name := path.Join(p.Prefix, destinationName)
	writer := p.bucket.Object(name).NewWriter(ctx)
	if _, err := io.Copy(writer, f); err != nil {
		writer.Close()
		return "", fmt.Errorf("b2 object write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("b2 object close: %w", err)
	}
	return fmt.Sprintf("b2://%s/%s", p.BucketName, name), nil
}
