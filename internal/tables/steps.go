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

// Package tables creates and seeds the per-tenant table set. The step
// registry is static and ordered; each step fails independently and the
// run always visits every step.
package tables

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/homegrid/homegrid/internal/engine"
)

// CreateFunc issues the DDL for one table into the given schema.
type CreateFunc func(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error

// Step pairs a table name with its creation routine. Order in the
// registry encodes foreign-key dependency: referenced tables first.
type Step struct {
	Name   string
	Create CreateFunc
}

// Registry returns the ordered table-creation steps for a tenant schema.
func Registry() []Step {
	return []Step{
		{"users", createUsers},
		{"service_provider_types", createServiceProviderTypes},
		{"event_instructor", createEventInstructor},
		{"rooms", createRooms},
		{"events", createEvents},
		{"event_gallery", createEventGallery},
		{"events_registration", createEventsRegistration},
		{"home_notification", createHomeNotification},
		{"user_notification", createUserNotification},
		{"requests", createRequests},
	}
}

func execCreate(ctx context.Context, db *sql.DB, d engine.Dialect, schema, table, columns string) error {
	if _, err := db.ExecContext(ctx, d.CreateTable(schema, table, columns)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

func createUsers(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	columns := fmt.Sprintf(`
		id %s,
		email %s NOT NULL UNIQUE,
		first_name %s,
		last_name %s,
		phone %s,
		apartment %s,
		role %s NOT NULL,
		password_hash %s,
		is_active %s NOT NULL,
		created_at %s NOT NULL`,
		d.AutoPK, d.VarChar(255), d.VarChar(100), d.VarChar(100),
		d.VarChar(32), d.VarChar(16), d.VarChar(32), d.Text, d.Bool, d.Timestamp)
	return execCreate(ctx, db, d, schema, "users", columns)
}

func createServiceProviderTypes(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	columns := fmt.Sprintf(`
		id %s,
		name %s NOT NULL UNIQUE`,
		d.AutoPK, d.VarChar(100))
	return execCreate(ctx, db, d, schema, "service_provider_types", columns)
}

func createEventInstructor(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	columns := fmt.Sprintf(`
		id %s,
		name %s NOT NULL,
		phone %s,
		email %s`,
		d.AutoPK, d.VarChar(200), d.VarChar(32), d.VarChar(255))
	return execCreate(ctx, db, d, schema, "event_instructor", columns)
}

func createRooms(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	columns := fmt.Sprintf(`
		id %s,
		name %s NOT NULL,
		capacity %s,
		location %s`,
		d.AutoPK, d.VarChar(100), d.Int, d.VarChar(200))
	return execCreate(ctx, db, d, schema, "rooms", columns)
}

func createEvents(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	columns := fmt.Sprintf(`
		id %s,
		title %s NOT NULL,
		description %s,
		instructor_id %s,
		room_id %s,
		starts_at %s NOT NULL,
		recurrence_freq %s,
		recurrence_weekday %s,
		recurrence_day_of_month %s,
		series_end %s,
		next_occurrence %s,
		created_at %s NOT NULL`,
		d.AutoPK, d.VarChar(200), d.Text, d.BigInt, d.BigInt, d.Timestamp,
		d.VarChar(16), d.Int, d.Int, d.Timestamp, d.Timestamp, d.Timestamp)
	return execCreate(ctx, db, d, schema, "events", columns)
}

func createEventGallery(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	columns := fmt.Sprintf(`
		id %s,
		event_id %s NOT NULL,
		image_url %s NOT NULL,
		caption %s,
		uploaded_at %s NOT NULL`,
		d.AutoPK, d.BigInt, d.Text, d.VarChar(255), d.Timestamp)
	return execCreate(ctx, db, d, schema, "event_gallery", columns)
}

func createEventsRegistration(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	columns := fmt.Sprintf(`
		id %s,
		event_id %s NOT NULL,
		user_id %s NOT NULL,
		registered_at %s NOT NULL`,
		d.AutoPK, d.BigInt, d.BigInt, d.Timestamp)
	return execCreate(ctx, db, d, schema, "events_registration", columns)
}

func createHomeNotification(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	columns := fmt.Sprintf(`
		id %s,
		title %s NOT NULL,
		body %s,
		publish_at %s NOT NULL,
		expires_at %s`,
		d.AutoPK, d.VarChar(200), d.Text, d.Timestamp, d.Timestamp)
	return execCreate(ctx, db, d, schema, "home_notification", columns)
}

func createUserNotification(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	columns := fmt.Sprintf(`
		id %s,
		user_id %s NOT NULL,
		title %s NOT NULL,
		body %s,
		is_read %s NOT NULL,
		sent_at %s NOT NULL`,
		d.AutoPK, d.BigInt, d.VarChar(200), d.Text, d.Bool, d.Timestamp)
	return execCreate(ctx, db, d, schema, "user_notification", columns)
}

func createRequests(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	columns := fmt.Sprintf(`
		id %s,
		user_id %s NOT NULL,
		provider_type_id %s,
		subject %s NOT NULL,
		details %s,
		status %s NOT NULL,
		opened_at %s NOT NULL,
		closed_at %s`,
		d.AutoPK, d.BigInt, d.BigInt, d.VarChar(200), d.Text,
		d.VarChar(32), d.Timestamp, d.Timestamp)
	return execCreate(ctx, db, d, schema, "requests", columns)
}
