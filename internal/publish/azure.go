package publish

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// Azure mirrors published files into an Azure Blob Storage container under
// an optional prefix.
type Azure struct {
	Container string
	Prefix    string

	client *azblob.Client
}

// NewAzure builds an Azure publisher against accountURL using the supplied
// shared key credential.
func NewAzure(accountURL, container, prefix string, cred *azblob.SharedKeyCredential) (*Azure, error) {
	client, err := azblob.NewClientWithSharedKeyCredential(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}
	return &Azure{Container: container, Prefix: prefix, client: client}, nil
}

func (p *Azure) Publish(ctx context.Context, localPath, destinationName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open file for azure upload: %w", err)
	}
	defer f.Close()

	blobName := strings.TrimPrefix(p.Prefix+"/"+destinationName, "/")
	if _, err := p.client.UploadFile(ctx, p.Container, blobName, f, nil); err != nil {
		return "", fmt.Errorf("azure blob upload: %w", err)
	}
	return fmt.Sprintf("azblob://%s/%s", p.Container, blobName), nil
}
