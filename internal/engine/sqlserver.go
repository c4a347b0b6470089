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
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // sqlserver database/sql driver

	"github.com/homegrid/homegrid/internal/config"
	"github.com/homegrid/homegrid/internal/observability/logger"
)

// SQLServer provisions tenant schemas on a SQL Server instance. Unlike
// PostgreSQL it has a real login (server principal) / user (database
// principal) split, so the two sub-steps are checked independently.
type SQLServer struct {
	cfg config.ProvisionConfig
}

// NewSQLServer creates the SQL Server engine strategy
func NewSQLServer(cfg config.ProvisionConfig) *SQLServer {
	return &SQLServer{cfg: cfg}
}

func (e *SQLServer) Name() string   { return "sqlserver" }
func (e *SQLServer) Driver() string { return "sqlserver" }

func (e *SQLServer) AdminDSN() string {
	return e.dsn(e.cfg.AdminUser, e.cfg.AdminPassword)
}

func (e *SQLServer) SchemaDSN(schema string) string {
	return e.dsn(schema, schema+e.cfg.PasswordSuffix)
}

func (e *SQLServer) dsn(user, password string) string {
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(user, password),
		Host:     e.cfg.Host + ":" + e.cfg.Port,
		RawQuery: url.Values{"database": {e.cfg.Database}}.Encode(),
	}
	return u.String()
}

func (e *SQLServer) Dialect() Dialect {
	return Dialect{
		Kind:           "sqlserver",
		AutoPK:         "BIGINT IDENTITY(1,1) PRIMARY KEY",
		Text:           "NVARCHAR(MAX)",
		Bool:           "BIT",
		Timestamp:      "DATETIME2",
		Date:           "DATE",
		Int:            "INT",
		BigInt:         "BIGINT",
		stringFmt:      "NVARCHAR(%d)",
		quoteOpen:      "[",
		quoteClose:     "]",
		placeholderFmt: "@p%d",
		guardedCreate:  true,
	}
}

// SchemaExists checks sys.schemas for the schema.
func (e *SQLServer) SchemaExists(ctx context.Context, db *sql.DB, schema string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sys.schemas WHERE name = @p1`, schema).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check schema existence: %w", err)
	}
	return n > 0, nil
}

func (e *SQLServer) loginExists(ctx context.Context, db *sql.DB, login string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sys.server_principals WHERE name = @p1`, login).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check login existence: %w", err)
	}
	return n > 0, nil
}

func (e *SQLServer) userExists(ctx context.Context, db *sql.DB, user string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sys.database_principals WHERE name = @p1`, user).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return n > 0, nil
}

// schemaRights is the explicit grant set asserted on the tenant schema.
var schemaRights = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "REFERENCES", "EXECUTE", "ALTER", "CONTROL"}

// CreateSchemaAndUser creates schema, login, user, ownership, and grants,
// each sub-step independently checked for pre-existence.
func (e *SQLServer) CreateSchemaAndUser(ctx context.Context, db *sql.DB, schema string) Result {
	if !ValidSchemaName(schema) {
		return invalidNameResult("create", schema)
	}
	res := newResult("create", schema)
	d := e.Dialect()
	quoted := d.Quote(schema)

	// 1. Schema. CREATE SCHEMA must be alone in its batch.
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

	// 2. Login named after the schema, password derived by convention.
	loginExists, err := e.loginExists(ctx, db, schema)
	if err != nil {
		return res.fail("check_login", err)
	}
	res.LoginExisted = loginExists
	if loginExists {
		res.step("create_login", true, "login already exists")
	} else {
		password := strings.ReplaceAll(schema+e.cfg.PasswordSuffix, "'", "''")
		stmt := fmt.Sprintf("CREATE LOGIN %s WITH PASSWORD = '%s', CHECK_POLICY = OFF", quoted, password)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return res.fail("create_login", err)
		}
		res.step("create_login", true, "login created")
	}

	// 3. Database user bound to the login.
	userExists, err := e.userExists(ctx, db, schema)
	if err != nil {
		return res.fail("check_user", err)
	}
	res.UserExisted = userExists
	if userExists {
		res.step("create_user", true, "user already exists")
	} else {
		stmt := fmt.Sprintf("CREATE USER %s FOR LOGIN %s WITH DEFAULT_SCHEMA = %s", quoted, quoted, quoted)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return res.fail("create_user", err)
		}
		res.step("create_user", true, "user created")
	}

	// 4. Ownership plus the explicit rights, re-asserted on every run.
	rights := strings.Join(schemaRights, ", ")
	grants := []struct {
		name string
		stmt string
	}{
		{"grant_ownership", fmt.Sprintf("ALTER AUTHORIZATION ON SCHEMA::%s TO %s", quoted, quoted)},
		{"grant_schema_rights", fmt.Sprintf("GRANT %s ON SCHEMA::%s TO %s", rights, quoted, quoted)},
		{"grant_create_table", fmt.Sprintf("GRANT CREATE TABLE TO %s", quoted)},
	}
	for _, g := range grants {
		if _, err := db.ExecContext(ctx, g.stmt); err != nil {
			slog.WarnContext(ctx, "grant failed", logger.Schema(schema), logger.Operation(g.name), logger.Error(err))
			res.step(g.name, false, err.Error())
			continue
		}
		res.step(g.name, true, "")
	}
	res.Granted = append([]string{"OWNER", "CREATE TABLE"}, schemaRights...)

	// 5. The ownership transfer above would otherwise lock the shared
	// admin connection out of schema-scoped DDL; re-grant to the calling
	// principal. dbo already holds CONTROL and cannot be granted to.
	var adminUser string
	if err := db.QueryRowContext(ctx, "SELECT USER_NAME()").Scan(&adminUser); err != nil {
		res.step("grant_admin_principal", false, err.Error())
	} else if adminUser == "dbo" {
		res.step("grant_admin_principal", true, "calling principal is dbo; implicit rights")
	} else {
		stmt := fmt.Sprintf("GRANT %s ON SCHEMA::%s TO %s", rights, quoted, d.Quote(adminUser))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			res.step("grant_admin_principal", false, err.Error())
		} else {
			res.step("grant_admin_principal", true, "")
		}
	}

	// Re-verify catalog visibility before declaring success.
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

// DeleteSchemaAndUser drops foreign keys, tables, and dependent objects
// best-effort, then the schema (hard failure), then user and login
// independently (absence is fine).
func (e *SQLServer) DeleteSchemaAndUser(ctx context.Context, db *sql.DB, schema string) Result {
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
		// Foreign keys block table drops; remove them first, best-effort.
		e.dropForeignKeys(ctx, db, schema, &res)

		tables, err := e.ListTables(ctx, db, schema)
		if err != nil {
			res.step("list_tables", false, err.Error())
		}
		for _, t := range tables {
			if _, err := db.ExecContext(ctx, "DROP TABLE "+d.Qualify(schema, t.Name)); err != nil {
				slog.WarnContext(ctx, "failed to drop table", logger.Schema(schema), logger.Table(t.Name), logger.Error(err))
				res.DropFailures = append(res.DropFailures, t.Name+": "+err.Error())
				continue
			}
			res.TablesDropped++
		}
		res.step("drop_tables", len(res.DropFailures) == 0,
			fmt.Sprintf("%d dropped, %d failed", res.TablesDropped, len(res.DropFailures)))

		e.dropDependentObjects(ctx, db, schema, &res)

		if _, err := db.ExecContext(ctx, "DROP SCHEMA "+quoted); err != nil {
			return res.fail("drop_schema", err)
		}
		res.step("drop_schema", true, "")
	} else {
		res.step("drop_schema", true, "schema did not exist")
	}

	// User and login are dropped independently; neither is required to exist.
	if userExists, err := e.userExists(ctx, db, schema); err != nil {
		res.step("drop_user", false, err.Error())
	} else if userExists {
		if _, err := db.ExecContext(ctx, "DROP USER "+quoted); err != nil {
			res.step("drop_user", false, err.Error())
		} else {
			res.step("drop_user", true, "user dropped")
		}
	} else {
		res.step("drop_user", true, "user did not exist")
	}

	if loginExists, err := e.loginExists(ctx, db, schema); err != nil {
		res.step("drop_login", false, err.Error())
	} else if loginExists {
		if _, err := db.ExecContext(ctx, "DROP LOGIN "+quoted); err != nil {
			res.step("drop_login", false, err.Error())
		} else {
			res.step("drop_login", true, "login dropped")
		}
	} else {
		res.step("drop_login", true, "login did not exist")
	}

	return res
}

func (e *SQLServer) dropForeignKeys(ctx context.Context, db *sql.DB, schema string, res *Result) {
	rows, err := db.QueryContext(ctx, `
		SELECT fk.name, t.name
		FROM sys.foreign_keys fk
		JOIN sys.tables t ON fk.parent_object_id = t.object_id
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE s.name = @p1
	`, schema)
	if err != nil {
		res.step("drop_foreign_keys", false, err.Error())
		return
	}
	defer rows.Close()

	type fk struct{ constraint, table string }
	var fks []fk
	for rows.Next() {
		var f fk
		if err := rows.Scan(&f.constraint, &f.table); err != nil {
			res.step("drop_foreign_keys", false, err.Error())
			return
		}
		fks = append(fks, f)
	}

	d := e.Dialect()
	failed := 0
	for _, f := range fks {
		stmt := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.Qualify(schema, f.table), d.Quote(f.constraint))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			failed++
		}
	}
	res.step("drop_foreign_keys", failed == 0, fmt.Sprintf("%d dropped, %d failed", len(fks)-failed, failed))
}

// dropDependentObjects sweeps views, procedures, and functions left in the
// schema. Every drop is best-effort.
func (e *SQLServer) dropDependentObjects(ctx context.Context, db *sql.DB, schema string, res *Result) {
	rows, err := db.QueryContext(ctx, `
		SELECT o.name, o.type
		FROM sys.objects o
		JOIN sys.schemas s ON o.schema_id = s.schema_id
		WHERE s.name = @p1 AND o.type IN ('V', 'P', 'FN', 'IF', 'TF')
	`, schema)
	if err != nil {
		res.step("drop_dependents", false, err.Error())
		return
	}
	defer rows.Close()

	type obj struct{ name, kind string }
	var objs []obj
	for rows.Next() {
		var o obj
		if err := rows.Scan(&o.name, &o.kind); err != nil {
			res.step("drop_dependents", false, err.Error())
			return
		}
		o.kind = strings.TrimSpace(o.kind)
		objs = append(objs, o)
	}

	d := e.Dialect()
	failed := 0
	for _, o := range objs {
		var keyword string
		switch o.kind {
		case "V":
			keyword = "VIEW"
		case "P":
			keyword = "PROCEDURE"
		default:
			keyword = "FUNCTION"
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP %s %s", keyword, d.Qualify(schema, o.name))); err != nil {
			failed++
		}
	}
	res.step("drop_dependents", failed == 0, fmt.Sprintf("%d dropped, %d failed", len(objs)-failed, failed))
}

// ListTables introspects the live schema: table name, column count, row count.
func (e *SQLServer) ListTables(ctx context.Context, db *sql.DB, schema string) ([]TableInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT t.name, (SELECT COUNT(*) FROM sys.columns c WHERE c.object_id = t.object_id)
		FROM sys.tables t
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE s.name = @p1
		ORDER BY t.name
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
