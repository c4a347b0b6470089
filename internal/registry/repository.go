package registry

import (
	"context"
	"errors"
)

var (
	ErrHomeNotFound      = errors.New("home not found")
	ErrHomeAlreadyExists = errors.New("home already exists")
	ErrInvalidHomeName   = errors.New("home name must match [A-Za-z0-9_-]+")
)

// Repository defines the interface for home catalog storage
type Repository interface {
	Create(ctx context.Context, home *Home) error
	GetByID(ctx context.Context, id int64) (*Home, error)
	GetByName(ctx context.Context, name string) (*Home, error)
	GetBySchema(ctx context.Context, schema string) (*Home, error)
	Update(ctx context.Context, home *Home) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Home, error)
}
