package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/homegrid/homegrid/internal/registry"
)

// HomeRepository implements registry.Repository against the
// homegrid_admin.homes catalog table.
type HomeRepository struct {
	db *DB
}

// NewHomeRepository creates a new home repository
func NewHomeRepository(db *DB) *HomeRepository {
	return &HomeRepository{db: db}
}

const homeColumns = `id, name, database_name, engine, schema_name, admin_email, admin_password, created_at, updated_at`

// Create inserts a home and backfills the assigned ID
func (r *HomeRepository) Create(ctx context.Context, home *registry.Home) error {
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO homegrid_admin.homes (name, database_name, engine, schema_name, admin_email, admin_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, home.Name, home.Database, home.Engine, home.Schema, home.AdminEmail, home.AdminPassword, home.CreatedAt, home.UpdatedAt).Scan(&home.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return registry.ErrHomeAlreadyExists
		}
		return fmt.Errorf("failed to insert home: %w", err)
	}

	return nil
}

// GetByID retrieves a home by ID
func (r *HomeRepository) GetByID(ctx context.Context, id int64) (*registry.Home, error) {
	return r.scanOne(r.db.pool.QueryRow(ctx, `
		SELECT `+homeColumns+`
		FROM homegrid_admin.homes
		WHERE id = $1
	`, id))
}

// GetByName retrieves a home by its unique name
func (r *HomeRepository) GetByName(ctx context.Context, name string) (*registry.Home, error) {
	return r.scanOne(r.db.pool.QueryRow(ctx, `
		SELECT `+homeColumns+`
		FROM homegrid_admin.homes
		WHERE name = $1
	`, name))
}

// GetBySchema retrieves the home owning a schema
func (r *HomeRepository) GetBySchema(ctx context.Context, schema string) (*registry.Home, error) {
	return r.scanOne(r.db.pool.QueryRow(ctx, `
		SELECT `+homeColumns+`
		FROM homegrid_admin.homes
		WHERE schema_name = $1
	`, schema))
}

// Update writes the mutable fields of a home. Name and schema_name are
// intentionally absent from the SET list.
func (r *HomeRepository) Update(ctx context.Context, home *registry.Home) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE homegrid_admin.homes
		SET admin_email = $1, admin_password = $2, updated_at = $3
		WHERE id = $4
	`, home.AdminEmail, home.AdminPassword, home.UpdatedAt, home.ID)

	if err != nil {
		return fmt.Errorf("failed to update home: %w", err)
	}
	if result.RowsAffected() == 0 {
		return registry.ErrHomeNotFound
	}

	return nil
}

// Delete removes a home row. The tenant schema is untouched.
func (r *HomeRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM homegrid_admin.homes
		WHERE id = $1
	`, id)

	if err != nil {
		return fmt.Errorf("failed to delete home: %w", err)
	}
	if result.RowsAffected() == 0 {
		return registry.ErrHomeNotFound
	}

	return nil
}

// List retrieves every registered home ordered by name
func (r *HomeRepository) List(ctx context.Context) ([]*registry.Home, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+homeColumns+`
		FROM homegrid_admin.homes
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list homes: %w", err)
	}
	defer rows.Close()

	var homes []*registry.Home
	for rows.Next() {
		var h registry.Home
		if err := rows.Scan(&h.ID, &h.Name, &h.Database, &h.Engine, &h.Schema, &h.AdminEmail, &h.AdminPassword, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan home: %w", err)
		}
		homes = append(homes, &h)
	}

	return homes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *HomeRepository) scanOne(row rowScanner) (*registry.Home, error) {
	var h registry.Home
	err := row.Scan(&h.ID, &h.Name, &h.Database, &h.Engine, &h.Schema, &h.AdminEmail, &h.AdminPassword, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registry.ErrHomeNotFound
		}
		return nil, fmt.Errorf("failed to scan home: %w", err)
	}
	return &h, nil
}
