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

// Package engine implements per-database-engine schema provisioning: each
// supported engine knows how to create and tear down a tenant schema, its
// login/user pair, and the grants that bind them. The engine is selected
// once at startup from configuration; no caller branches on the kind string.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/homegrid/homegrid/internal/config"
)

var (
	ErrUnknownEngine    = errors.New("unknown database engine")
	ErrInvalidSchemaName = errors.New("schema name must match [A-Za-z0-9_-]+")
)

// schemaNameRe mirrors the registry's home-name constraint. Schema names
// are interpolated into DDL, so this check runs before any side effect.
var schemaNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidSchemaName reports whether s is a legal schema name.
func ValidSchemaName(s string) bool {
	return schemaNameRe.MatchString(s)
}

// TableInfo describes one live table of a tenant schema.
type TableInfo struct {
	Name    string `json:"name"`
	Columns int    `json:"columns"`
	Rows    int64  `json:"rows"`
}

// Engine is the per-database-engine provisioning strategy.
//
// CreateSchemaAndUser is idempotent: every sub-step checks for pre-existing
// state before acting, so re-running against an already-provisioned schema
// only creates what is missing and re-asserts grants.
//
// DeleteSchemaAndUser is retry-safe: a second call reports the schema as
// absent and still cleans up leftover login/user artifacts.
type Engine interface {
	Name() string
	Driver() string

	// AdminDSN builds the administrative connection string for the engine.
	AdminDSN() string

	// SchemaDSN builds a schema-scoped connection string using the derived
	// credential convention: login == schema, password == schema + suffix.
	SchemaDSN(schema string) string

	Dialect() Dialect

	CreateSchemaAndUser(ctx context.Context, db *sql.DB, schema string) Result
	DeleteSchemaAndUser(ctx context.Context, db *sql.DB, schema string) Result

	SchemaExists(ctx context.Context, db *sql.DB, schema string) (bool, error)
	ListTables(ctx context.Context, db *sql.DB, schema string) ([]TableInfo, error)
}

// New selects the engine strategy for the configured kind. This is the only
// place in the codebase that inspects the engine name.
func New(cfg config.ProvisionConfig) (Engine, error) {
	switch cfg.Engine {
	case "postgres":
		return NewPostgres(cfg), nil
	case "sqlserver":
		return NewSQLServer(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
}

// Open opens an administrative connection for the engine and verifies it
// with a round-trip ping.
func Open(ctx context.Context, e Engine) (*sql.DB, error) {
	db, err := sql.Open(e.Driver(), e.AdminDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s admin connection: %w", e.Name(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s admin connection: %w", e.Name(), err)
	}
	return db, nil
}
