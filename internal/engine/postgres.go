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

package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/homegrid/homegrid/internal/config"
	"github.com/homegrid/homegrid/internal/observability/logger"
)

// Postgres provisions tenant schemas on a PostgreSQL server. PostgreSQL
// has no login/user split: one role with LOGIN serves as both, so the
// login and user sub-steps report the same pre-existence state.
type Postgres struct {
	cfg config.ProvisionConfig
}

// NewPostgres creates the PostgreSQL engine strategy
func NewPostgres(cfg config.ProvisionConfig) *Postgres {
	return &Postgres{cfg: cfg}
}

func (e *Postgres) Name() string   { return "postgres" }
func (e *Postgres) Driver() string { return "pgx" }

func (e *Postgres) AdminDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		e.cfg.Host, e.cfg.Port, e.cfg.AdminUser, e.cfg.AdminPassword, e.cfg.Database, e.cfg.SSLMode)
}

func (e *Postgres) SchemaDSN(schema string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		e.cfg.Host, e.cfg.Port, schema, schema+e.cfg.PasswordSuffix, e.cfg.Database, e.cfg.SSLMode, schema)
}

func (e *Postgres) Dialect() Dialect {
	return Dialect{
		Kind:           "postgres",
		AutoPK:         "BIGSERIAL PRIMARY KEY",
		Text:           "TEXT",
		Bool:           "BOOLEAN",
		Timestamp:      "TIMESTAMPTZ",
		Date:           "DATE",
		Int:            "INTEGER",
		BigInt:         "BIGINT",
		stringFmt:      "VARCHAR(%d)",
		quoteOpen:      `"`,
		quoteClose:     `"`,
		placeholderFmt: "$%d",
	}
}

// SchemaExists checks the catalog for the schema.
func (e *Postgres) SchemaExists(ctx context.Context, db *sql.DB, schema string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		schema).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check schema existence: %w", err)
	}
	return exists, nil
}

func (e *Postgres) roleExists(ctx context.Context, db *sql.DB, role string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)`,
		role).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check role existence: %w", err)
	}
	return exists, nil
}

// CreateSchemaAndUser creates the schema, a login role named after the
// schema with the derived password, transfers schema ownership to it, and
// re-asserts grants for both the role and the calling admin principal.
func (e *Postgres) CreateSchemaAndUser(ctx context.Context, db *sql.DB, schema string) Result {
	if !ValidSchemaName(schema) {
		return invalidNameResult("create", schema)
	}
	res := newResult("create", schema)
	d := e.Dialect()
	quoted := d.Quote(schema)

	// 1. Schema
	exists, err := e.SchemaExists(ctx, db, schema)
	if err != nil {
		return res.fail("check_schema", err)
	}
	res.SchemaExisted = exists
	if exists {
		res.step("create_schema", true, "schema already exists")
	} else {
		if _, err := db.ExecContext(ctx, "CREATE SCHEMA "+quoted); err != nil {
			return res.fail("create_schema", err)
		}
		res.step("create_schema", true, "schema created")
	}

	// 2+3. Login/user: a single role with LOGIN covers both in PostgreSQL.
	roleExists, err := e.roleExists(ctx, db, schema)
	if err != nil {
		return res.fail("check_role", err)
	}
	res.LoginExisted = roleExists
	res.UserExisted = roleExists
	if roleExists {
		res.step("create_login", true, "role already exists")
		res.step("create_user", true, "role already exists")
	} else {
		password := schema + e.cfg.PasswordSuffix
		stmt := fmt.Sprintf("CREATE ROLE %s LOGIN PASSWORD '%s'", quoted, strings.ReplaceAll(password, "'", "''"))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return res.fail("create_login", err)
		}
		res.step("create_login", true, "role created")
		res.step("create_user", true, "role created")
	}

	// 4. Ownership and grants for the tenant role; re-asserted on every run.
	grants := []struct {
		name string
		stmt string
	}{
		{"grant_ownership", fmt.Sprintf("ALTER SCHEMA %s OWNER TO %s", quoted, quoted)},
		{"grant_schema_rights", fmt.Sprintf("GRANT USAGE, CREATE ON SCHEMA %s TO %s", quoted, quoted)},
		{"grant_default_privileges", fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT ALL ON TABLES TO %s", quoted, quoted)},
		// 5. Membership keeps the calling admin connection able to run
		// schema-scoped DDL after the ownership transfer above.
		{"grant_admin_membership", fmt.Sprintf("GRANT %s TO CURRENT_USER", quoted)},
	}
	for _, g := range grants {
		if _, err := db.ExecContext(ctx, g.stmt); err != nil {
			slog.WarnContext(ctx, "grant failed", logger.Schema(schema), logger.Operation(g.name), logger.Error(err))
			res.step(g.name, false, err.Error())
			continue
		}
		res.step(g.name, true, "")
	}
	res.Granted = []string{"OWNER", "USAGE", "CREATE", "ALL (default table privileges)"}

	// Re-verify catalog visibility; individual steps reporting success is
	// not enough under transactional visibility races.
	visible, err := e.SchemaExists(ctx, db, schema)
	if err != nil {
		return res.fail("verify_schema", err)
	}
	if !visible {
		return res.fail("verify_schema", fmt.Errorf("schema %s not visible in catalog after provisioning", schema))
	}
	res.step("verify_schema", true, "")

	return res
}

// DeleteSchemaAndUser tears the schema down defensively: tables first, one
// by one, then the schema with CASCADE for remaining dependents, then the
// role. Login/user absence is never an error.
func (e *Postgres) DeleteSchemaAndUser(ctx context.Context, db *sql.DB, schema string) Result {
	if !ValidSchemaName(schema) {
		return invalidNameResult("delete", schema)
	}
	res := newResult("delete", schema)
	d := e.Dialect()
	quoted := d.Quote(schema)

	exists, err := e.SchemaExists(ctx, db, schema)
	if err != nil {
		return res.fail("check_schema", err)
	}
	res.SchemaExisted = exists

	if exists {
		tables, err := e.ListTables(ctx, db, schema)
		if err != nil {
			res.step("list_tables", false, err.Error())
		}
		for _, t := range tables {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", d.Qualify(schema, t.Name))); err != nil {
				slog.WarnContext(ctx, "failed to drop table", logger.Schema(schema), logger.Table(t.Name), logger.Error(err))
				res.DropFailures = append(res.DropFailures, t.Name+": "+err.Error())
				continue
			}
			res.TablesDropped++
		}
		res.step("drop_tables", len(res.DropFailures) == 0,
			fmt.Sprintf("%d dropped, %d failed", res.TablesDropped, len(res.DropFailures)))

		// CASCADE sweeps remaining dependents (views, functions, sequences).
		if _, err := db.ExecContext(ctx, "DROP SCHEMA "+quoted+" CASCADE"); err != nil {
			return res.fail("drop_schema", err)
		}
		res.step("drop_schema", true, "")
	} else {
		res.step("drop_schema", true, "schema did not exist")
	}

	roleExists, err := e.roleExists(ctx, db, schema)
	if err != nil {
		res.step("check_role", false, err.Error())
		return res
	}
	if roleExists {
		// Objects owned elsewhere block DROP ROLE; disown first.
		if _, err := db.ExecContext(ctx, "DROP OWNED BY "+quoted); err != nil {
			res.step("drop_owned", false, err.Error())
		}
		if _, err := db.ExecContext(ctx, "DROP ROLE "+quoted); err != nil {
			res.step("drop_login", false, err.Error())
			res.step("drop_user", false, err.Error())
		} else {
			res.step("drop_login", true, "role dropped")
			res.step("drop_user", true, "role dropped")
		}
	} else {
		res.step("drop_login", true, "role did not exist")
		res.step("drop_user", true, "role did not exist")
	}

	return res
}

// ListTables introspects the live schema: table name, column count, row count.
func (e *Postgres) ListTables(ctx context.Context, db *sql.DB, schema string) ([]TableInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT t.table_name, count(c.column_name)
		FROM information_schema.tables t
		LEFT JOIN information_schema.columns c
		  ON c.table_schema = t.table_schema AND c.table_name = t.table_name
		WHERE t.table_schema = $1 AND t.table_type = 'BASE TABLE'
		GROUP BY t.table_name
		ORDER BY t.table_name
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var infos []TableInfo
	for rows.Next() {
		var info TableInfo
		if err := rows.Scan(&info.Name, &info.Columns); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	d := e.Dialect()
	for i := range infos {
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+d.Qualify(schema, infos[i].Name)).Scan(&infos[i].Rows); err != nil {
			return nil, fmt.Errorf("failed to count rows of %s: %w", infos[i].Name, err)
		}
	}

	return infos, nil
}
