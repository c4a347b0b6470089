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

// Package conncache caches live database handles, one per tenant schema
// and, separately, one per tenant name. The cache deduplicates handle
// construction only; the *sql.DB handles themselves pool physical
// connections and are safe for concurrent use. Consumers borrow handles
// and must never close them directly.
package conncache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/homegrid/homegrid/internal/engine"
	"github.com/homegrid/homegrid/internal/observability/logger"
	"github.com/homegrid/homegrid/internal/registry"
)

// HomeLookup resolves homes for schema routing. Satisfied by
// *registry.Service.
type HomeLookup interface {
	LookupByID(ctx context.Context, id int64) (*registry.Home, error)
	LookupBySchema(ctx context.Context, schema string) (*registry.Home, error)
}

// OpenFunc opens a database handle. Swappable in tests.
type OpenFunc func(driver, dsn string) (*sql.DB, error)

// Cache owns every live tenant handle. Two explicit caches: bySchema is
// the primary routing cache, byTenant serves callers that already hold a
// privileged connection string and key by tenant name.
type Cache struct {
	mu       sync.Mutex
	bySchema map[string]*sql.DB
	byTenant map[string]*sql.DB

	homes HomeLookup
	eng   engine.Engine
	open  OpenFunc
}

// New creates an empty connection cache
func New(homes HomeLookup, eng engine.Engine) *Cache {
	return &Cache{
		bySchema: make(map[string]*sql.DB),
		byTenant: make(map[string]*sql.DB),
		homes:    homes,
		eng:      eng,
		open:     sql.Open,
	}
}

// SetOpenFunc overrides the handle opener. Test hook.
func (c *Cache) SetOpenFunc(open OpenFunc) {
	c.open = open
}

// ForSchema returns the cached handle for a schema, lazily opening one on
// first use. The schema must belong to a registered home: the schema-scoped
// credential is derived from the schema name by the provisioning convention.
func (c *Cache) ForSchema(ctx context.Context, schema string) (*sql.DB, error) {
	c.mu.Lock()
	if db, ok := c.bySchema[schema]; ok {
		c.mu.Unlock()
		return db, nil
	}
	c.mu.Unlock()

	if _, err := c.homes.LookupBySchema(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to resolve schema %q: %w", schema, err)
	}

	db, err := c.dial(ctx, c.eng.SchemaDSN(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to open connection for schema %q: %w", schema, err)
	}

	// First retained handle wins; a racing writer's handle is closed, never
	// leaked.
	c.mu.Lock()
	if existing, ok := c.bySchema[schema]; ok {
		c.mu.Unlock()
		db.Close()
		return existing, nil
	}
	c.bySchema[schema] = db
	c.mu.Unlock()

	slog.DebugContext(ctx, "cached schema connection", logger.Component("conncache"), logger.Schema(schema))
	return db, nil
}

// ForHome resolves the home's schema through the registry and delegates to
// ForSchema. This is the single chokepoint every business module routes
// through; none of them open their own connections.
func (c *Cache) ForHome(ctx context.Context, homeID int64) (*sql.DB, error) {
	home, err := c.homes.LookupByID(ctx, homeID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home %d: %w", homeID, err)
	}
	return c.ForSchema(ctx, home.Schema)
}

// ForTenantConnection caches by tenant name for callers that already hold a
// schema-level administrative connection string. Connectivity is validated
// immediately; a broken handle is discarded, never cached.
func (c *Cache) ForTenantConnection(ctx context.Context, dsn, tenantName string) (*sql.DB, error) {
	c.mu.Lock()
	if db, ok := c.byTenant[tenantName]; ok {
		c.mu.Unlock()
		return db, nil
	}
	c.mu.Unlock()

	db, err := c.dial(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection for tenant %q: %w", tenantName, err)
	}

	c.mu.Lock()
	if existing, ok := c.byTenant[tenantName]; ok {
		c.mu.Unlock()
		db.Close()
		return existing, nil
	}
	c.byTenant[tenantName] = db
	c.mu.Unlock()

	slog.DebugContext(ctx, "cached tenant connection", logger.Component("conncache"), logger.Home(tenantName))
	return db, nil
}

// Refresh disposes the handle for a schema (ignoring close errors) and
// recreates it immediately.
func (c *Cache) Refresh(ctx context.Context, schema string) (*sql.DB, error) {
	c.mu.Lock()
	if db, ok := c.bySchema[schema]; ok {
		delete(c.bySchema, schema)
		_ = db.Close()
	}
	c.mu.Unlock()

	return c.ForSchema(ctx, schema)
}

// DisposeAll closes every cached handle. Called on process shutdown.
func (c *Cache) DisposeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for schema, db := range c.bySchema {
		_ = db.Close()
		delete(c.bySchema, schema)
	}
	for tenant, db := range c.byTenant {
		_ = db.Close()
		delete(c.byTenant, tenant)
	}
}

// dial opens a handle and validates it with a trivial round-trip query
// before anyone depends on it.
func (c *Cache) dial(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := c.open(c.eng.Driver(), dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
