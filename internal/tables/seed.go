package tables

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/homegrid/homegrid/internal/engine"
	"github.com/homegrid/homegrid/internal/recurrence"
)

// SeedFunc inserts the demo rows for one table.
type SeedFunc func(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error

// SeedStep pairs a table name with its demo-data routine.
type SeedStep struct {
	Name string
	Seed SeedFunc
}

// SeedRegistry returns the ordered seed steps. Referenced rows are
// inserted before rows referencing them.
func SeedRegistry() []SeedStep {
	return []SeedStep{
		{"service_provider_types", seedServiceProviderTypes},
		{"users", seedUsers},
		{"rooms", seedRooms},
		{"event_instructor", seedEventInstructor},
		{"events", seedEvents},
		{"home_notification", seedHomeNotification},
		{"user_notification", seedUserNotification},
		{"requests", seedRequests},
	}
}

func insert(ctx context.Context, db *sql.DB, d engine.Dialect, schema, table string, columns string, n int, rows ...[]any) error {
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Qualify(schema, table), columns, d.Placeholders(1, n))
	for _, args := range rows {
		if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("failed to seed %s: %w", table, err)
		}
	}
	return nil
}

func seedServiceProviderTypes(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	return insert(ctx, db, d, schema, "service_provider_types", "name", 1,
		[]any{"plumbing"},
		[]any{"electricity"},
		[]any{"gardening"},
		[]any{"cleaning"},
		[]any{"general maintenance"},
	)
}

func seedUsers(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	now := time.Now().UTC()
	return insert(ctx, db, d, schema, "users",
		"email, first_name, last_name, phone, apartment, role, is_active, created_at", 8,
		[]any{"admin@" + schema + ".local", "Community", "Admin", "", "", "admin", true, now},
		[]any{"dana@" + schema + ".local", "Dana", "Peretz", "050-0000001", "12", "resident", true, now},
		[]any{"yossi@" + schema + ".local", "Yossi", "Mizrahi", "050-0000002", "34", "resident", true, now},
	)
}

func seedRooms(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	return insert(ctx, db, d, schema, "rooms", "name, capacity, location", 3,
		[]any{"Main Hall", 120, "Building A, ground floor"},
		[]any{"Club Room", 25, "Building B, floor 1"},
		[]any{"Gym", 30, "Building A, basement"},
	)
}

func seedEventInstructor(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	return insert(ctx, db, d, schema, "event_instructor", "name, phone, email", 3,
		[]any{"Noa Levi", "052-1112233", "noa.levi@example.com"},
		[]any{"Avi Cohen", "052-4455667", "avi.cohen@example.com"},
	)
}

// seedEvents inserts a recurring demo event and stores its next computed
// occurrence so the upcoming-events listing works immediately after
// provisioning.
func seedEvents(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	now := time.Now().UTC()
	pattern := recurrence.Pattern{
		Freq:    recurrence.FreqWeekly,
		Weekday: time.Wednesday,
		Hour:    18,
		Minute:  30,
	}
	seriesEnd := now.AddDate(0, 3, 0)
	next := recurrence.Next(now, pattern, seriesEnd, now)

	return insert(ctx, db, d, schema, "events",
		"title, description, instructor_id, room_id, starts_at, recurrence_freq, recurrence_weekday, recurrence_day_of_month, series_end, next_occurrence, created_at", 11,
		[]any{"Weekly Yoga", "Open yoga class for all residents", 1, 2, next,
			string(recurrence.FreqWeekly), int(time.Wednesday), 0, seriesEnd, next, now},
	)
}

func seedHomeNotification(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	now := time.Now().UTC()
	return insert(ctx, db, d, schema, "home_notification",
		"title, body, publish_at, expires_at", 4,
		[]any{"Welcome to your community portal",
			"Your community space is ready. Browse events, book rooms, and open service requests.",
			now, now.AddDate(0, 1, 0)},
	)
}

func seedUserNotification(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	now := time.Now().UTC()
	return insert(ctx, db, d, schema, "user_notification",
		"user_id, title, body, is_read, sent_at", 5,
		[]any{1, "Account created", "Your administrator account is active.", false, now},
	)
}

func seedRequests(ctx context.Context, db *sql.DB, d engine.Dialect, schema string) error {
	now := time.Now().UTC()
	return insert(ctx, db, d, schema, "requests",
		"user_id, provider_type_id, subject, details, status, opened_at", 6,
		[]any{2, 1, "Leaking faucet", "Kitchen faucet drips constantly.", "open", now},
	)
}
