package engine

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/homegrid/homegrid/internal/observability/logger"
)

// Provisioner binds an engine strategy to the shared administrative
// connection so callers provision by schema name alone.
type Provisioner struct {
	eng   Engine
	admin *sql.DB
}

// NewProvisioner creates a provisioner over the admin connection
func NewProvisioner(eng Engine, admin *sql.DB) *Provisioner {
	return &Provisioner{eng: eng, admin: admin}
}

// Engine returns the bound engine strategy
func (p *Provisioner) Engine() Engine {
	return p.eng
}

// CreateSchema provisions schema, login, user, and grants.
func (p *Provisioner) CreateSchema(ctx context.Context, schema string) Result {
	res := p.eng.CreateSchemaAndUser(ctx, p.admin, schema)
	slog.InfoContext(ctx, "schema provisioning finished",
		logger.Component("provisioner"),
		logger.Engine(p.eng.Name()),
		logger.Schema(schema),
		logger.String("status", string(res.Status)),
	)
	return res
}

// DeleteSchema tears down schema, login, and user.
func (p *Provisioner) DeleteSchema(ctx context.Context, schema string) Result {
	res := p.eng.DeleteSchemaAndUser(ctx, p.admin, schema)
	slog.InfoContext(ctx, "schema teardown finished",
		logger.Component("provisioner"),
		logger.Engine(p.eng.Name()),
		logger.Schema(schema),
		logger.String("status", string(res.Status)),
	)
	return res
}

// SchemaExists checks catalog visibility of a schema.
func (p *Provisioner) SchemaExists(ctx context.Context, schema string) (bool, error) {
	return p.eng.SchemaExists(ctx, p.admin, schema)
}

// Tables introspects the live schema.
func (p *Provisioner) Tables(ctx context.Context, schema string) ([]TableInfo, error) {
	return p.eng.ListTables(ctx, p.admin, schema)
}
