package tables

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/homegrid/homegrid/internal/config"
	"github.com/homegrid/homegrid/internal/engine"
	"github.com/homegrid/homegrid/internal/observability/metrics"
	"github.com/homegrid/homegrid/internal/registry"
)

// execDriver records every statement it is asked to execute and fails any
// statement containing failOn. One shared instance for the package.
type execDriver struct {
	mu     sync.Mutex
	stmts  []string
	failOn string
}

type execConn struct{ d *execDriver }

func (d *execDriver) Open(string) (driver.Conn, error) { return &execConn{d: d}, nil }

func (d *execDriver) reset(failOn string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stmts = nil
	d.failOn = failOn
}

func (d *execDriver) executed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.stmts...)
}

func (c *execConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (c *execConn) Close() error                        { return nil }
func (c *execConn) Begin() (driver.Tx, error)           { return nil, driver.ErrSkip }

func (c *execConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.stmts = append(c.d.stmts, query)
	if c.d.failOn != "" && strings.Contains(query, c.d.failOn) {
		return nil, fmt.Errorf("injected failure for %q", c.d.failOn)
	}
	return driver.RowsAffected(1), nil
}

var testDriver = &execDriver{}

func init() {
	sql.Register("tables_fake", testDriver)
}

type staticConns struct{ db *sql.DB }

func (s staticConns) ForSchema(context.Context, string) (*sql.DB, error) { return s.db, nil }

func testInitializer(t *testing.T, failOn string) (*Initializer, *execDriver) {
	t.Helper()
	testDriver.reset(failOn)

	db, err := sql.Open("tables_fake", "")
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eng, err := engine.New(config.ProvisionConfig{
		Engine: "postgres", Host: "localhost", Port: "5432",
		AdminUser: "admin", AdminPassword: "pw", Database: "homegrid",
		SSLMode: "disable", PasswordSuffix: "#Hg2024!",
	})
	assert.NoError(t, err)

	meter, err := metrics.New(context.Background(), metrics.Config{}, "test")
	assert.NoError(t, err)

	return NewInitializer(staticConns{db: db}, eng.Dialect(), meter), testDriver
}

func testHome() *registry.Home {
	return &registry.Home{ID: 1, Name: "sunset", Schema: "sunset", Engine: "postgres"}
}

func TestRegistry_OrderAndCount(t *testing.T) {
	want := []string{
		"users", "service_provider_types", "event_instructor", "rooms",
		"events", "event_gallery", "events_registration",
		"home_notification", "user_notification", "requests",
	}
	steps := Registry()
	assert.Len(t, steps, len(want))
	for i, step := range steps {
		assert.Equal(t, want[i], step.Name)
		assert.NotNil(t, step.Create)
	}
}

func TestCreateTables_AllSucceed(t *testing.T) {
	ti, drv := testInitializer(t, "")

	report, err := ti.CreateTables(context.Background(), testHome(), false)
	assert.NoError(t, err)
	assert.Equal(t, engine.StatusSuccess, report.Status())
	assert.Len(t, report.Succeeded, 10)
	assert.Empty(t, report.Failed)

	stmts := drv.executed()
	assert.Len(t, stmts, 10)
	assert.Contains(t, stmts[0], `CREATE TABLE IF NOT EXISTS "sunset"."users"`)
	assert.Contains(t, stmts[9], `"sunset"."requests"`)
}

func TestCreateTables_DropFirst(t *testing.T) {
	ti, drv := testInitializer(t, "")

	report, err := ti.CreateTables(context.Background(), testHome(), true)
	assert.NoError(t, err)
	assert.Equal(t, engine.StatusSuccess, report.Status())

	stmts := drv.executed()
	assert.Len(t, stmts, 20)
	assert.Contains(t, stmts[0], `DROP TABLE IF EXISTS "sunset"."users"`)
	assert.Contains(t, stmts[1], `CREATE TABLE IF NOT EXISTS "sunset"."users"`)
}

func TestCreateTables_PartialSuccess_EightOfTen(t *testing.T) {
	ti, _ := testInitializer(t, "")

	boom := errors.New("boom")
	var visited []string
	var steps []Step
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("t%02d", i)
		fail := i == 3 || i == 7
		steps = append(steps, Step{Name: name, Create: func(context.Context, *sql.DB, engine.Dialect, string) error {
			visited = append(visited, name)
			if fail {
				return boom
			}
			return nil
		}})
	}
	ti.steps = steps

	report, err := ti.CreateTables(context.Background(), testHome(), false)
	assert.NoError(t, err)
	assert.Equal(t, engine.StatusPartialSuccess, report.Status())
	assert.Len(t, report.Succeeded, 8)
	assert.Len(t, report.Failed, 2)
	assert.Equal(t, "t03", report.Failed[0].Name)
	assert.Equal(t, "t07", report.Failed[1].Name)

	// A failed step never aborts the run.
	assert.Len(t, visited, 10)
}

func TestCreateTables_SingleTableFailure(t *testing.T) {
	ti, drv := testInitializer(t, `"sunset"."rooms"`)

	report, err := ti.CreateTables(context.Background(), testHome(), false)
	assert.NoError(t, err)
	assert.Equal(t, engine.StatusPartialSuccess, report.Status())
	assert.Len(t, report.Succeeded, 9)
	assert.Len(t, report.Failed, 1)
	assert.Equal(t, "rooms", report.Failed[0].Name)

	// All ten creates were still attempted.
	assert.Len(t, drv.executed(), 10)
}

func TestSeedDemoData_Order(t *testing.T) {
	ti, drv := testInitializer(t, "")

	report, err := ti.SeedDemoData(context.Background(), testHome())
	assert.NoError(t, err)
	assert.Equal(t, engine.StatusSuccess, report.Status())
	assert.Equal(t, []string{
		"service_provider_types", "users", "rooms", "event_instructor",
		"events", "home_notification", "user_notification", "requests",
	}, report.Succeeded)

	stmts := drv.executed()
	assert.Contains(t, stmts[0], `INSERT INTO "sunset"."service_provider_types"`)
	for _, stmt := range stmts {
		assert.True(t, strings.HasPrefix(stmt, "INSERT INTO"))
	}
}

func TestRecreateTable(t *testing.T) {
	ti, drv := testInitializer(t, "")

	err := ti.RecreateTable(context.Background(), testHome(), "events")
	assert.NoError(t, err)

	stmts := drv.executed()
	assert.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], `DROP TABLE IF EXISTS "sunset"."events"`)
	assert.Contains(t, stmts[1], `CREATE TABLE IF NOT EXISTS "sunset"."events"`)

	err = ti.RecreateTable(context.Background(), testHome(), "no_such_table")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_table")
}

func TestLoadTableData_UnknownTable(t *testing.T) {
	ti, drv := testInitializer(t, "")

	err := ti.LoadTableData(context.Background(), testHome(), "rooms")
	assert.NoError(t, err)
	assert.NotEmpty(t, drv.executed())

	err = ti.LoadTableData(context.Background(), testHome(), "event_gallery")
	assert.Error(t, err)
}

func TestReport_Status(t *testing.T) {
	r := &Report{}
	r.ok("a")
	assert.Equal(t, engine.StatusSuccess, r.Status())

	r.fail("b", errors.New("x"))
	assert.Equal(t, engine.StatusPartialSuccess, r.Status())

	all := &Report{}
	all.fail("a", errors.New("x"))
	assert.Equal(t, engine.StatusError, all.Status())
}
