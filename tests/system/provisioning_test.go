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

// Package system provides integration tests that run against a real
// PostgreSQL database.
//
// Test Execution:
//
//	INTEGRATION_TEST=true go test -v ./tests/system/...
//
// Prerequisites:
//
//	docker compose up -d postgres
package system

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homegrid/homegrid/internal/audit"
	"github.com/homegrid/homegrid/internal/blobstore"
	"github.com/homegrid/homegrid/internal/config"
	"github.com/homegrid/homegrid/internal/conncache"
	"github.com/homegrid/homegrid/internal/engine"
	"github.com/homegrid/homegrid/internal/observability/metrics"
	"github.com/homegrid/homegrid/internal/provision"
	"github.com/homegrid/homegrid/internal/registry"
	"github.com/homegrid/homegrid/internal/store/postgres"
	"github.com/homegrid/homegrid/internal/tables"
)

var (
	testDB  *postgres.DB
	testEng engine.Engine
)

// TestMain sets up and tears down the test database connection
func TestMain(m *testing.M) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		os.Exit(0)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         getEnvOrDefault("DB_HOST", "localhost"),
		Port:         getEnvOrDefault("DB_PORT", "5432"),
		User:         getEnvOrDefault("DB_USER", "homegrid"),
		Password:     getEnvOrDefault("DB_PASSWORD", "homegrid_dev_password"),
		Database:     getEnvOrDefault("DB_NAME", "homegrid"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	testDB = db

	if err := db.Migrate(ctx, postgres.AdminSchema); err != nil {
		// Already applied on a previous run.
		_ = err
	}

	testEng, err = engine.New(config.ProvisionConfig{
		Engine:         "postgres",
		Host:           getEnvOrDefault("DB_HOST", "localhost"),
		Port:           getEnvOrDefault("DB_PORT", "5432"),
		AdminUser:      getEnvOrDefault("DB_USER", "homegrid"),
		AdminPassword:  getEnvOrDefault("DB_PASSWORD", "homegrid_dev_password"),
		Database:       getEnvOrDefault("DB_NAME", "homegrid"),
		SSLMode:        "disable",
		PasswordSuffix: "#Hg2024!",
	})
	if err != nil {
		panic("failed to build engine: " + err.Error())
	}

	code := m.Run()

	testDB.Close()
	os.Exit(code)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newTestStack(t *testing.T) (*registry.Service, *provision.Pipeline, *engine.Provisioner, *conncache.Cache) {
	t.Helper()
	ctx := context.Background()

	adminDB, err := engine.Open(ctx, testEng)
	require.NoError(t, err)
	t.Cleanup(func() { adminDB.Close() })

	hasher := registry.NewPasswordHasher(64*1024, 3, 2, 16, 32)
	svc := registry.NewService(postgres.NewHomeRepository(testDB), hasher, audit.NewSlogLogger())

	cache := conncache.New(svc, testEng)
	t.Cleanup(cache.DisposeAll)

	meter, err := metrics.New(ctx, metrics.Config{}, "test")
	require.NoError(t, err)

	provisioner := engine.NewProvisioner(testEng, adminDB)
	initializer := tables.NewInitializer(cache, testEng.Dialect(), meter)
	pipe := provision.NewPipeline(svc, provisioner, initializer, blobstore.NoopStore{}, meter, audit.NewSlogLogger())

	return svc, pipe, provisioner, cache
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

// PRV-1: the full pipeline creates record, schema, tables, and demo data.
func TestProvisioning_FullPipeline(t *testing.T) {
	svc, pipe, provisioner, cache := newTestStack(t)
	ctx := context.Background()
	name := uniqueName("itest_full")

	home, report, err := pipe.CreateHome(ctx, registry.CreateSpec{Name: name, Engine: "postgres"})
	require.NoError(t, err)
	t.Cleanup(func() {
		pipe.TeardownSchema(ctx, home)
		_ = svc.Remove(ctx, home.ID)
	})

	assert.Equal(t, engine.StatusSuccess, report.Status)
	assert.True(t, report.SchemaCreated)
	assert.True(t, report.TablesCreated)
	assert.True(t, report.DataSeeded)

	// The schema is visible and fully populated.
	exists, err := provisioner.SchemaExists(ctx, name)
	require.NoError(t, err)
	assert.True(t, exists)

	infos, err := provisioner.Tables(ctx, name)
	require.NoError(t, err)
	assert.Len(t, infos, 10)

	// The derived credential works through the connection cache.
	db, err := cache.ForSchema(ctx, name)
	require.NoError(t, err)

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}

// PRV-2: creating the same schema twice converges to the same end state.
func TestProvisioning_IdempotentCreate(t *testing.T) {
	_, _, provisioner, _ := newTestStack(t)
	ctx := context.Background()
	name := uniqueName("itest_idem")

	first := provisioner.CreateSchema(ctx, name)
	t.Cleanup(func() { provisioner.DeleteSchema(ctx, name) })
	require.Equal(t, engine.StatusSuccess, first.Status)
	assert.False(t, first.SchemaExisted)

	second := provisioner.CreateSchema(ctx, name)
	require.NotEqual(t, engine.StatusError, second.Status)
	assert.True(t, second.SchemaExisted)
	assert.True(t, second.LoginExisted)
}

// PRV-3: double teardown is retry-safe.
func TestProvisioning_RetrySafeDelete(t *testing.T) {
	_, _, provisioner, _ := newTestStack(t)
	ctx := context.Background()
	name := uniqueName("itest_del")

	require.Equal(t, engine.StatusSuccess, provisioner.CreateSchema(ctx, name).Status)

	first := provisioner.DeleteSchema(ctx, name)
	require.NotEqual(t, engine.StatusError, first.Status)
	assert.True(t, first.SchemaExisted)

	second := provisioner.DeleteSchema(ctx, name)
	require.NotEqual(t, engine.StatusError, second.Status)
	assert.False(t, second.SchemaExisted)
}

// PRV-4: a duplicate tenant name is rejected with no side effects.
func TestProvisioning_DuplicateName(t *testing.T) {
	svc, pipe, provisioner, _ := newTestStack(t)
	ctx := context.Background()
	name := uniqueName("itest_dup")

	home, _, err := pipe.CreateHome(ctx, registry.CreateSpec{Name: name, Engine: "postgres"})
	require.NoError(t, err)
	t.Cleanup(func() {
		pipe.TeardownSchema(ctx, home)
		_ = svc.Remove(ctx, home.ID)
	})

	_, report, err := pipe.CreateHome(ctx, registry.CreateSpec{Name: name, Engine: "postgres"})
	assert.Error(t, err)
	assert.Equal(t, provision.StatusFailed, report.Status)

	// Still exactly one registration and one schema.
	got, err := svc.Lookup(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, home.ID, got.ID)

	exists, err := provisioner.SchemaExists(ctx, name)
	require.NoError(t, err)
	assert.True(t, exists)
}
