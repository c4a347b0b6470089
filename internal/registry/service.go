// Copyright 2026 The HomeGrid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/homegrid/homegrid/internal/audit"
)

// Service provides home catalog business logic. Reads go straight to the
// repository: the catalog is small and always read fresh, in contrast to
// connection handles which are expensive and cached separately.
type Service struct {
	repo        Repository
	hasher      *PasswordHasher
	auditLogger audit.Logger
}

// NewService creates a new registry service
func NewService(repo Repository, hasher *PasswordHasher, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		hasher:      hasher,
		auditLogger: auditLogger,
	}
}

// Create registers a new home. The name charset is validated here, before
// any insert, because the storage layer only enforces uniqueness.
func (s *Service) Create(ctx context.Context, spec CreateSpec) (*Home, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidHomeName)
	}
	if !ValidName(spec.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHomeName, spec.Name)
	}
	if spec.Schema == "" {
		spec.Schema = spec.Name
	}
	if !ValidName(spec.Schema) {
		return nil, fmt.Errorf("%w: schema %q", ErrInvalidHomeName, spec.Schema)
	}

	if _, err := s.repo.GetByName(ctx, spec.Name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrHomeAlreadyExists, spec.Name)
	} else if !errors.Is(err, ErrHomeNotFound) {
		return nil, fmt.Errorf("failed to check home name: %w", err)
	}

	hashed := ""
	if spec.AdminPassword != "" {
		var err error
		hashed, err = s.hasher.Hash(spec.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	}

	now := time.Now()
	home := &Home{
		Name:          spec.Name,
		Database:      spec.Database,
		Engine:        spec.Engine,
		Schema:        spec.Schema,
		AdminEmail:    spec.AdminEmail,
		AdminPassword: hashed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, home); err != nil {
		return nil, fmt.Errorf("failed to create home: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeHomeCreated,
		Home:     home.Name,
		Resource: home.Schema,
		Metadata: map[string]any{"home_id": home.ID, "engine": home.Engine},
	})

	return home, nil
}

// Lookup retrieves a home by name
func (s *Service) Lookup(ctx context.Context, name string) (*Home, error) {
	return s.repo.GetByName(ctx, name)
}

// LookupByID retrieves a home by ID
func (s *Service) LookupByID(ctx context.Context, id int64) (*Home, error) {
	return s.repo.GetByID(ctx, id)
}

// LookupBySchema retrieves the home owning a schema
func (s *Service) LookupBySchema(ctx context.Context, schema string) (*Home, error) {
	return s.repo.GetBySchema(ctx, schema)
}

// ListAll lists every registered home
func (s *Service) ListAll(ctx context.Context) ([]*Home, error) {
	return s.repo.List(ctx)
}

// ApplyUpdate patches the non-structural fields of a home. The Update type
// cannot express a name or schema change.
func (s *Service) ApplyUpdate(ctx context.Context, id int64, upd Update) (*Home, error) {
	home, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.AdminEmail != nil {
		home.AdminEmail = *upd.AdminEmail
	}
	if upd.AdminPassword != nil && *upd.AdminPassword != "" {
		hashed, err := s.hasher.Hash(*upd.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		home.AdminPassword = hashed
	}
	home.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, home); err != nil {
		return nil, fmt.Errorf("failed to update home: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeHomeUpdated,
		Home:     home.Name,
		Resource: home.Schema,
		Metadata: map[string]any{"home_id": home.ID},
	})

	return home, nil
}

// Remove deletes a home record. This does NOT drop the underlying schema;
// schema teardown is a separate, explicit provisioning operation.
func (s *Service) Remove(ctx context.Context, id int64) error {
	home, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete home: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeHomeDeleted,
		Home:     home.Name,
		Resource: home.Schema,
		Metadata: map[string]any{"home_id": home.ID},
	})

	return nil
}
