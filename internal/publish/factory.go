package publish

import (
	"context"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/validforge/validpipe/internal/pipelineconfig"
)

// RemoteFromConfig constructs the optional remote mirror publisher selected
// by cfg.PublishBackend. It returns (nil, nil) when the backend is "none".
// Credentials are read from the same kind of environment variables the
// underlying SDKs already document, never from the config file.
func RemoteFromConfig(ctx context.Context, cfg *pipelineconfig.Config) (Publisher, error) {
	switch cfg.PublishBackend {
	case "", "none":
		return nil, nil
	case "s3":
		return NewS3(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
	case "azure":
		return newAzureFromEnv(cfg)
	case "gcs":
		return NewGCS(ctx, cfg.GCSBucket, cfg.GCSPrefix)
	case "b2":
		return newB2FromEnv(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown publish backend %q", cfg.PublishBackend)
	}
}

func newAzureFromEnv(cfg *pipelineconfig.Config) (Publisher, error) {
	accountName := os.Getenv("AZURE_STORAGE_ACCOUNT")
	accountKey := os.Getenv("AZURE_STORAGE_KEY")
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("azure publish backend requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
	}
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure shared key credential: %w", err)
	}
	return NewAzure(cfg.AzureAccountURL, cfg.AzureContainer, cfg.AzurePrefix, cred)
}

func newB2FromEnv(ctx context.Context, cfg *pipelineconfig.Config) (Publisher, error) {
	keyID := os.Getenv("B2_ACCOUNT_ID")
	key := os.Getenv("B2_APPLICATION_KEY")
	if keyID == "" || key == "" {
		return nil, fmt.Errorf("b2 publish backend requires B2_ACCOUNT_ID and B2_APPLICATION_KEY")
	}
	return NewB2(ctx, keyID, key, cfg.B2Bucket, cfg.B2Prefix)
}
