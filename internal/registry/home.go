package registry

import (
	"regexp"
	"time"
)

// Home represents one isolated tenant of the platform: a residential
// community backed by its own database schema.
type Home struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Database      string    `json:"database"`
	Engine        string    `json:"engine"`
	Schema        string    `json:"schema"`
	AdminEmail    string    `json:"admin_email"`
	AdminPassword string    `json:"-"` // argon2id hash, never serialized
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// nameRe constrains home and schema names. The schema name is interpolated
// into DDL after this check, so the charset is load-bearing.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidName reports whether s is a legal home/schema name.
func ValidName(s string) bool {
	return nameRe.MatchString(s)
}

// CreateSpec carries the fields an operator supplies when registering a home.
// Schema defaults to Name when empty and is immutable afterwards.
type CreateSpec struct {
	Name          string `json:"name"`
	Database      string `json:"database"`
	Engine        string `json:"engine"`
	Schema        string `json:"schema"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
}

// Update carries the mutable fields of a home. Name and Schema are absent
// on purpose: routing caches key off the schema, so it never changes.
type Update struct {
	AdminEmail    *string `json:"admin_email"`
	AdminPassword *string `json:"admin_password"`
}
