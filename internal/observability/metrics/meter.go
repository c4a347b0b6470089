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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps the OpenTelemetry meter and the provisioning instruments
// incremented by the pipeline.
type Meter struct {
	meter metric.Meter

	HomesProvisioned  metric.Int64Counter
	SchemasCreated    metric.Int64Counter
	SchemasDeleted    metric.Int64Counter
	TableStepFailures metric.Int64Counter
	ProvisionDuration metric.Float64Histogram
}

// New creates a new meter instance and pre-builds the provisioning
// instruments. With metrics disabled the noop meter provider makes every
// instrument a no-op, so callers never nil-check.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	var meter metric.Meter
	if cfg.Enabled {
		meter = otel.Meter(serviceName)
	} else {
		meter = otel.Meter("noop")
	}

	m := &Meter{meter: meter}

	var err error
	if m.HomesProvisioned, err = meter.Int64Counter("homegrid_homes_provisioned_total",
		metric.WithDescription("Completed provisioning pipeline runs by status")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.SchemasCreated, err = meter.Int64Counter("homegrid_schemas_created_total",
		metric.WithDescription("Tenant schemas created")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.SchemasDeleted, err = meter.Int64Counter("homegrid_schemas_deleted_total",
		metric.WithDescription("Tenant schemas deleted")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.TableStepFailures, err = meter.Int64Counter("homegrid_table_step_failures_total",
		metric.WithDescription("Failed table creation or seed steps")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.ProvisionDuration, err = meter.Float64Histogram("homegrid_provision_duration_seconds",
		metric.WithDescription("End-to-end provisioning pipeline duration"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}

	return m, nil
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}
