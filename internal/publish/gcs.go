package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"
)

// GCS mirrors published files into a Google Cloud Storage bucket under an
// optional prefix.
type GCS struct {
	Bucket string
	Prefix string

	client *storage.Client
}

// NewGCS builds a GCS publisher using application-default credentials.
func NewGCS(ctx context.Context, bucket, prefix string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCS{Bucket: bucket, Prefix: prefix, client: client}, nil
}

func (p *GCS) Publish(ctx context.Context, localPath, destinationName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open file for gcs upload: %w", err)
	}
	defer f.Close()

	object := path.Join(p.Prefix, destinationName)
	writer := p.client.Bucket(p.Bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(writer, f); err != nil {
		writer.Close()
		return "", fmt.Errorf("gcs object write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("gcs object close: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", p.Bucket, object), nil
}
