package blobstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/homegrid/homegrid/internal/config"
	"github.com/homegrid/homegrid/internal/observability/logger"
)

// Compile-time check: AzureStore implements Store.
var _ Store = (*AzureStore)(nil)

// AzureStore manages tenant containers on Azure Blob Storage using
// shared-key credentials.
type AzureStore struct {
	client *azblob.Client
}

// NewAzureStore creates an AzureStore from the storage configuration.
func NewAzureStore(cfg config.StorageConfig) (*AzureStore, error) {
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &AzureStore{client: client}, nil
}

// EnsureContainer creates the container, treating an already existing
// container as satisfied.
func (s *AzureStore) EnsureContainer(ctx context.Context, name string) error {
	_, err := s.client.CreateContainer(ctx, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			slog.DebugContext(ctx, "container already exists", logger.Component("blobstore"), logger.Container(name))
			return nil
		}
		return fmt.Errorf("failed to create container %q: %w", name, err)
	}
	return nil
}

// DeleteContainer removes the container; absence is not an error.
func (s *AzureStore) DeleteContainer(ctx context.Context, name string) error {
	_, err := s.client.DeleteContainer(ctx, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete container %q: %w", name, err)
	}
	return nil
}
