// Package blobstore manages the per-tenant object storage container
// created in the last provisioning stage.
package blobstore

import (
	"context"

	"github.com/homegrid/homegrid/internal/config"
)

// Store creates and removes tenant storage containers. Container names
// follow the tenant schema name.
type Store interface {
	EnsureContainer(ctx context.Context, name string) error
	DeleteContainer(ctx context.Context, name string) error
}

// New selects the store implementation from configuration.
func New(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return NoopStore{}, nil
	}
	return NewAzureStore(cfg)
}
