package engine

import (
	"fmt"
	"strings"
)

// Dialect carries the engine-specific SQL atoms the table initializer uses
// to build DDL and DML without branching on the engine kind.
type Dialect struct {
	Kind      string
	AutoPK    string // auto-incrementing primary key column definition
	Text      string
	Bool      string
	Timestamp string
	Date      string
	Int       string
	BigInt    string

	stringFmt      string // printf template for a bounded string type
	quoteOpen      string
	quoteClose     string
	placeholderFmt string // printf template for the i-th bind parameter
	guardedCreate  bool   // engine lacks CREATE TABLE IF NOT EXISTS
}

// VarChar returns the bounded string type of width n.
func (d Dialect) VarChar(n int) string {
	return fmt.Sprintf(d.stringFmt, n)
}

// Quote quotes a single identifier.
func (d Dialect) Quote(ident string) string {
	return d.quoteOpen + strings.ReplaceAll(ident, d.quoteClose, "") + d.quoteClose
}

// Qualify returns the quoted schema-qualified table name.
func (d Dialect) Qualify(schema, table string) string {
	return d.Quote(schema) + "." + d.Quote(table)
}

// Placeholder returns the i-th (1-based) bind parameter marker.
func (d Dialect) Placeholder(i int) string {
	return fmt.Sprintf(d.placeholderFmt, i)
}

// Placeholders returns "(p1, p2, ... pn)" starting at 1-based offset start.
func (d Dialect) Placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = d.Placeholder(start + i)
	}
	return strings.Join(parts, ", ")
}

// CreateTable wraps a column body in an engine-appropriate guarded
// CREATE TABLE statement.
func (d Dialect) CreateTable(schema, table, body string) string {
	qualified := d.Qualify(schema, table)
	if d.guardedCreate {
		// T-SQL has no CREATE TABLE IF NOT EXISTS
		return fmt.Sprintf("IF OBJECT_ID(N'%s.%s', 'U') IS NULL CREATE TABLE %s (%s)",
			schema, table, qualified, body)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qualified, body)
}

// DropTableIfExists returns a guarded DROP TABLE statement.
func (d Dialect) DropTableIfExists(schema, table string) string {
	qualified := d.Qualify(schema, table)
	if d.guardedCreate {
		return fmt.Sprintf("IF OBJECT_ID(N'%s.%s', 'U') IS NOT NULL DROP TABLE %s",
			schema, table, qualified)
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", qualified)
}
