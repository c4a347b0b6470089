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

// Package provision runs the tenant onboarding pipeline: register the
// home, create its schema and credentials, create and seed its tables,
// and prepare its storage container.
//
// Failure handling is graduated. Schema creation is the only stage whose
// failure rolls back (it deletes the home record inserted moments
// earlier); every later stage is reconstructable by re-running the
// corresponding operation, so its failure degrades the report instead of
// undoing prior work.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/homegrid/homegrid/internal/audit"
	"github.com/homegrid/homegrid/internal/blobstore"
	"github.com/homegrid/homegrid/internal/engine"
	"github.com/homegrid/homegrid/internal/observability/logger"
	"github.com/homegrid/homegrid/internal/observability/metrics"
	"github.com/homegrid/homegrid/internal/registry"
	"github.com/homegrid/homegrid/internal/tables"
)

// ErrSchemaFailed wraps the schema-creation stage failure that aborts
// provisioning and triggers the rollback.
var ErrSchemaFailed = errors.New("schema provisioning failed")

// HomeRegistry is the slice of the registry service the pipeline needs.
type HomeRegistry interface {
	Create(ctx context.Context, spec registry.CreateSpec) (*registry.Home, error)
	Remove(ctx context.Context, id int64) error
}

// SchemaProvisioner creates and tears down tenant schemas.
type SchemaProvisioner interface {
	CreateSchema(ctx context.Context, schema string) engine.Result
	DeleteSchema(ctx context.Context, schema string) engine.Result
}

// TableInitializer creates and seeds the per-tenant table set.
type TableInitializer interface {
	CreateTables(ctx context.Context, home *registry.Home, drop bool) (*tables.Report, error)
	SeedDemoData(ctx context.Context, home *registry.Home) (*tables.Report, error)
}

// Pipeline wires the provisioning stages together.
type Pipeline struct {
	homes       HomeRegistry
	schemas     SchemaProvisioner
	tables      TableInitializer
	store       blobstore.Store
	meter       *metrics.Meter
	auditLogger audit.Logger
}

// NewPipeline creates a provisioning pipeline
func NewPipeline(homes HomeRegistry, schemas SchemaProvisioner, tbl TableInitializer, store blobstore.Store, meter *metrics.Meter, auditLogger audit.Logger) *Pipeline {
	return &Pipeline{
		homes:       homes,
		schemas:     schemas,
		tables:      tbl,
		store:       store,
		meter:       meter,
		auditLogger: auditLogger,
	}
}

// CreateHome runs the full onboarding pipeline. The returned report is
// non-nil even on failure; the returned home is nil only when the run
// ended in the failed state.
func (p *Pipeline) CreateHome(ctx context.Context, spec registry.CreateSpec) (*registry.Home, *SetupReport, error) {
	report := newSetupReport()
	start := time.Now()

	log := slog.With(logger.Component("provision"), logger.RunID(report.RunID), logger.Home(spec.Name))
	log.InfoContext(ctx, "provisioning started")

	// Stage 1: catalog insert. Fails before any side effects outside the
	// catalog, so there is nothing to undo.
	home, err := p.homes.Create(ctx, spec)
	if err != nil {
		report.failed(err)
		p.observe(ctx, report, start)
		return nil, report, err
	}
	report.HomeRegistered = true
	report.Stage = StageRegistered

	// Stage 2: schema, login, user, grants. The one irreversible stage:
	// on failure the catalog record is deleted again so a retry starts
	// clean.
	res := p.schemas.CreateSchema(ctx, home.Schema)
	report.SchemaResult = &res
	if res.Status == engine.StatusError {
		stageErr := fmt.Errorf("%w: %s", ErrSchemaFailed, res.Error)
		p.rollback(ctx, home, log)
		report.HomeRegistered = false
		report.failed(stageErr)
		p.observe(ctx, report, start)
		return nil, report, stageErr
	}
	report.SchemaCreated = true
	report.Stage = StageSchemaReady
	p.meter.SchemasCreated.Add(ctx, 1)
	p.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSchemaCreated,
		Home:     home.Name,
		Resource: home.Schema,
		Metadata: map[string]any{"run_id": report.RunID, "status": string(res.Status)},
	})

	// Stage 3: tables. A bad table is re-creatable through its own
	// endpoint; never unwinds the schema.
	tablesReport, err := p.tables.CreateTables(ctx, home, false)
	if err != nil {
		log.WarnContext(ctx, "table creation stage failed", logger.Error(err))
	} else {
		report.TablesReport = tablesReport
		report.TablesCreated = tablesReport.Status() == engine.StatusSuccess
		report.Stage = StageTablesReady
		p.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeTablesCreated,
			Home:     home.Name,
			Resource: home.Schema,
			Metadata: map[string]any{"run_id": report.RunID, "status": string(tablesReport.Status())},
		})
	}

	// Stage 4: demo data. Cosmetic; warn only.
	seedReport, err := p.tables.SeedDemoData(ctx, home)
	if err != nil {
		log.WarnContext(ctx, "seed stage failed", logger.Error(err))
	} else {
		report.SeedReport = seedReport
		report.DataSeeded = seedReport.Status() == engine.StatusSuccess
		report.Stage = StageDataReady
		p.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeDataSeeded,
			Home:     home.Name,
			Resource: home.Schema,
			Metadata: map[string]any{"run_id": report.RunID, "status": string(seedReport.Status())},
		})
	}

	// Stage 5: storage container. Re-runnable; warn only.
	if err := p.store.EnsureContainer(ctx, home.Schema); err != nil {
		log.WarnContext(ctx, "storage stage failed", logger.Error(err))
	} else {
		report.StorageReady = true
		report.Stage = StageStorageReady
		p.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeContainerCreated,
			Home:     home.Name,
			Resource: home.Schema,
			Metadata: map[string]any{"run_id": report.RunID},
		})
	}

	report.finalize()
	p.observe(ctx, report, start)
	log.InfoContext(ctx, "provisioning finished", logger.String("status", string(report.Status)))
	return home, report, nil
}

// TeardownSchema deletes the tenant schema and its storage container. The
// catalog record is untouched: record removal is a separate operation so
// an operator can tear down and re-provision under the same registration.
func (p *Pipeline) TeardownSchema(ctx context.Context, home *registry.Home) engine.Result {
	res := p.schemas.DeleteSchema(ctx, home.Schema)
	if res.Status != engine.StatusError {
		p.meter.SchemasDeleted.Add(ctx, 1)
		p.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeSchemaDeleted,
			Home:     home.Name,
			Resource: home.Schema,
			Metadata: map[string]any{"status": string(res.Status)},
		})
	}

	if err := p.store.DeleteContainer(ctx, home.Schema); err != nil {
		slog.WarnContext(ctx, "failed to delete storage container",
			logger.Component("provision"), logger.Schema(home.Schema), logger.Error(err))
	}

	return res
}

func (p *Pipeline) rollback(ctx context.Context, home *registry.Home, log *slog.Logger) {
	if err := p.homes.Remove(ctx, home.ID); err != nil {
		// The record survives as an orphan; the cleanup tool repairs these.
		log.ErrorContext(ctx, "rollback failed, orphaned home record left behind",
			logger.HomeID(home.ID), logger.Error(err))
		return
	}
	p.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeProvisionRolledBack,
		Home:     home.Name,
		Resource: home.Schema,
		Metadata: map[string]any{"home_id": home.ID},
	})
	log.InfoContext(ctx, "home record rolled back after schema failure", logger.HomeID(home.ID))
}

func (p *Pipeline) observe(ctx context.Context, report *SetupReport, start time.Time) {
	p.meter.HomesProvisioned.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", string(report.Status))))
	p.meter.ProvisionDuration.Record(ctx, time.Since(start).Seconds())
}
