package tables

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/homegrid/homegrid/internal/engine"
	"github.com/homegrid/homegrid/internal/observability/logger"
	"github.com/homegrid/homegrid/internal/observability/metrics"
	"github.com/homegrid/homegrid/internal/registry"
)

// ErrUnknownTable is returned when a table name has no registered step.
var ErrUnknownTable = errors.New("unknown table")

// ConnSource hands out the cached handle for a schema. Satisfied by
// *conncache.Cache.
type ConnSource interface {
	ForSchema(ctx context.Context, schema string) (*sql.DB, error)
}

// Initializer runs the table and seed step registries against a tenant
// schema. Runs never abort mid-list: a failed step is recorded and the
// next step still executes.
type Initializer struct {
	conns   ConnSource
	dialect engine.Dialect
	meter   *metrics.Meter

	// Overridable in tests.
	steps []Step
	seeds []SeedStep
}

// NewInitializer creates an initializer with the static step registries
func NewInitializer(conns ConnSource, d engine.Dialect, meter *metrics.Meter) *Initializer {
	return &Initializer{
		conns:   conns,
		dialect: d,
		meter:   meter,
		steps:   Registry(),
		seeds:   SeedRegistry(),
	}
}

// CreateTables creates every registered table in the home's schema. With
// drop set, each table is dropped first; a failed drop is recorded as that
// step's failure and the run moves on.
func (i *Initializer) CreateTables(ctx context.Context, home *registry.Home, drop bool) (*Report, error) {
	db, err := i.conns.ForSchema(ctx, home.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to schema %q: %w", home.Schema, err)
	}

	report := &Report{}
	for _, step := range i.steps {
		if drop {
			if _, err := db.ExecContext(ctx, i.dialect.DropTableIfExists(home.Schema, step.Name)); err != nil {
				i.recordFailure(ctx, report, home.Schema, step.Name, fmt.Errorf("drop: %w", err))
				continue
			}
		}
		if err := step.Create(ctx, db, i.dialect, home.Schema); err != nil {
			i.recordFailure(ctx, report, home.Schema, step.Name, err)
			continue
		}
		report.ok(step.Name)
	}

	slog.InfoContext(ctx, "table creation finished",
		logger.Component("tables"),
		logger.Schema(home.Schema),
		logger.String("status", string(report.Status())),
		slog.Int("succeeded", len(report.Succeeded)),
		slog.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// SeedDemoData runs every seed step in registry order.
func (i *Initializer) SeedDemoData(ctx context.Context, home *registry.Home) (*Report, error) {
	db, err := i.conns.ForSchema(ctx, home.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to schema %q: %w", home.Schema, err)
	}

	report := &Report{}
	for _, step := range i.seeds {
		if err := step.Seed(ctx, db, i.dialect, home.Schema); err != nil {
			i.recordFailure(ctx, report, home.Schema, step.Name, err)
			continue
		}
		report.ok(step.Name)
	}

	slog.InfoContext(ctx, "demo data seeding finished",
		logger.Component("tables"),
		logger.Schema(home.Schema),
		logger.String("status", string(report.Status())),
		slog.Int("succeeded", len(report.Succeeded)),
		slog.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// RecreateTable drops and recreates a single table by registry name.
func (i *Initializer) RecreateTable(ctx context.Context, home *registry.Home, table string) error {
	step, err := i.findStep(table)
	if err != nil {
		return err
	}

	db, err := i.conns.ForSchema(ctx, home.Schema)
	if err != nil {
		return fmt.Errorf("failed to connect to schema %q: %w", home.Schema, err)
	}

	if _, err := db.ExecContext(ctx, i.dialect.DropTableIfExists(home.Schema, table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return step.Create(ctx, db, i.dialect, home.Schema)
}

// LoadTableData runs the seed step for a single table by registry name.
func (i *Initializer) LoadTableData(ctx context.Context, home *registry.Home, table string) error {
	for _, step := range i.seeds {
		if step.Name == table {
			db, err := i.conns.ForSchema(ctx, home.Schema)
			if err != nil {
				return fmt.Errorf("failed to connect to schema %q: %w", home.Schema, err)
			}
			return step.Seed(ctx, db, i.dialect, home.Schema)
		}
	}
	return fmt.Errorf("%w: no seed step for %q", ErrUnknownTable, table)
}

func (i *Initializer) findStep(table string) (*Step, error) {
	for idx := range i.steps {
		if i.steps[idx].Name == table {
			return &i.steps[idx], nil
		}
	}
	return nil, fmt.Errorf("%w: no creation step for %q", ErrUnknownTable, table)
}

func (i *Initializer) recordFailure(ctx context.Context, report *Report, schema, step string, err error) {
	slog.WarnContext(ctx, "table step failed",
		logger.Component("tables"),
		logger.Schema(schema),
		logger.Table(step),
		logger.Error(err),
	)
	i.meter.TableStepFailures.Add(ctx, 1)
	report.fail(step, err)
}
