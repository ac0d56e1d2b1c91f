package publish

import (
	"context"
	"fmt"
	"os"
	"path"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 mirrors published files into an S3 bucket under an optional prefix.
type S3 struct {
	Bucket string
	Prefix string

	uploader *manager.Uploader
}

// NewS3 builds an S3 publisher for bucket/region, loading credentials from
// the default AWS credential chain.
func NewS3(ctx context.Context, bucket, region, prefix string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3{
		Bucket:   bucket,
		Prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

func (p *S3) Publish(ctx context.Context, localPath, destinationName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open file for s3 upload: %w", err)
	}
	defer f.Close()

	key := path.Join(p.Prefix, destinationName)
	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &p.Bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", p.Bucket, key), nil
}
