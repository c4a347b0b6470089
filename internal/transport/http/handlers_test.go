package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/homegrid/homegrid/internal/audit"
	"github.com/homegrid/homegrid/internal/engine"
	"github.com/homegrid/homegrid/internal/provision"
	"github.com/homegrid/homegrid/internal/registry"
	"github.com/homegrid/homegrid/internal/tables"
)

const testSecret = "test-secret"

type mockHomes struct{ mock.Mock }

func (m *mockHomes) Lookup(ctx context.Context, name string) (*registry.Home, error) {
	args := m.Called(ctx, name)
	if h := args.Get(0); h != nil {
		return h.(*registry.Home), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockHomes) LookupByID(ctx context.Context, id int64) (*registry.Home, error) {
	args := m.Called(ctx, id)
	if h := args.Get(0); h != nil {
		return h.(*registry.Home), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockHomes) LookupBySchema(ctx context.Context, schema string) (*registry.Home, error) {
	args := m.Called(ctx, schema)
	if h := args.Get(0); h != nil {
		return h.(*registry.Home), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockHomes) ListAll(ctx context.Context) ([]*registry.Home, error) {
	args := m.Called(ctx)
	if h := args.Get(0); h != nil {
		return h.([]*registry.Home), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockHomes) ApplyUpdate(ctx context.Context, id int64, upd registry.Update) (*registry.Home, error) {
	args := m.Called(ctx, id, upd)
	if h := args.Get(0); h != nil {
		return h.(*registry.Home), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockHomes) Remove(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockPipeline struct{ mock.Mock }

func (m *mockPipeline) CreateHome(ctx context.Context, spec registry.CreateSpec) (*registry.Home, *provision.SetupReport, error) {
	args := m.Called(ctx, spec)
	var home *registry.Home
	var report *provision.SetupReport
	if h := args.Get(0); h != nil {
		home = h.(*registry.Home)
	}
	if r := args.Get(1); r != nil {
		report = r.(*provision.SetupReport)
	}
	return home, report, args.Error(2)
}

func (m *mockPipeline) TeardownSchema(ctx context.Context, home *registry.Home) engine.Result {
	return m.Called(ctx, home).Get(0).(engine.Result)
}

type mockProvisioner struct{ mock.Mock }

func (m *mockProvisioner) CreateSchema(ctx context.Context, schema string) engine.Result {
	return m.Called(ctx, schema).Get(0).(engine.Result)
}

func (m *mockProvisioner) SchemaExists(ctx context.Context, schema string) (bool, error) {
	args := m.Called(ctx, schema)
	return args.Bool(0), args.Error(1)
}

func (m *mockProvisioner) Tables(ctx context.Context, schema string) ([]engine.TableInfo, error) {
	args := m.Called(ctx, schema)
	if t := args.Get(0); t != nil {
		return t.([]engine.TableInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockInitializer struct{ mock.Mock }

func (m *mockInitializer) CreateTables(ctx context.Context, home *registry.Home, drop bool) (*tables.Report, error) {
	args := m.Called(ctx, home, drop)
	if r := args.Get(0); r != nil {
		return r.(*tables.Report), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockInitializer) SeedDemoData(ctx context.Context, home *registry.Home) (*tables.Report, error) {
	args := m.Called(ctx, home)
	if r := args.Get(0); r != nil {
		return r.(*tables.Report), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockInitializer) RecreateTable(ctx context.Context, home *registry.Home, table string) error {
	return m.Called(ctx, home, table).Error(0)
}

func (m *mockInitializer) LoadTableData(ctx context.Context, home *registry.Home, table string) error {
	return m.Called(ctx, home, table).Error(0)
}

type mockCache struct{ mock.Mock }

func (m *mockCache) ForHome(ctx context.Context, homeID int64) (*sql.DB, error) {
	args := m.Called(ctx, homeID)
	if db := args.Get(0); db != nil {
		return db.(*sql.DB), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAudit struct{ mock.Mock }

func (m *mockAudit) Log(ctx context.Context, event audit.Event) { m.Called(ctx, event) }

type fixture struct {
	homes       *mockHomes
	pipeline    *mockPipeline
	provisioner *mockProvisioner
	initializer *mockInitializer
	cache       *mockCache
	handler     *Handler
	router      http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	auditLogger := new(mockAudit)
	auditLogger.On("Log", mock.Anything, mock.Anything).Maybe()

	f := &fixture{
		homes:       new(mockHomes),
		pipeline:    new(mockPipeline),
		provisioner: new(mockProvisioner),
		initializer: new(mockInitializer),
		cache:       new(mockCache),
	}
	f.handler = NewHandler(f.homes, f.pipeline, f.provisioner, f.initializer, f.cache, auditLogger, testSecret)
	f.router = NewRouter(f.handler, NewRateLimiter(100, 100))
	return f
}

func operatorToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops@homegrid",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	assert.NoError(t, err)
	return signed
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func sunsetHome() *registry.Home {
	return &registry.Home{ID: 42, Name: "sunset", Schema: "sunset", Engine: "postgres"}
}

func TestHealthCheck_NoAuthRequired(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_MissingToken(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/tenants", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	f.homes.AssertNotCalled(t, "ListAll", mock.Anything)
}

func TestAuth_WrongSecret(t *testing.T) {
	f := newFixture(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops", "exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("other-secret"))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/tenants", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateTenant_Success(t *testing.T) {
	f := newFixture(t)
	home := sunsetHome()
	report := &provision.SetupReport{RunID: "run-1", Status: engine.StatusSuccess, Stage: provision.StageComplete}

	f.pipeline.On("CreateHome", mock.Anything, mock.MatchedBy(func(spec registry.CreateSpec) bool {
		return spec.Name == "sunset"
	})).Return(home, report, nil)

	rec := f.do(t, http.MethodPost, "/tenants", CreateTenantRequest{Name: "sunset"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
}

func TestCreateTenant_Duplicate(t *testing.T) {
	f := newFixture(t)

	f.pipeline.On("CreateHome", mock.Anything, mock.Anything).
		Return(nil, &provision.SetupReport{Status: provision.StatusFailed}, registry.ErrHomeAlreadyExists)

	rec := f.do(t, http.MethodPost, "/tenants", CreateTenantRequest{Name: "sunset"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateTenant_InvalidName(t *testing.T) {
	f := newFixture(t)

	f.pipeline.On("CreateHome", mock.Anything, mock.Anything).
		Return(nil, &provision.SetupReport{Status: provision.StatusFailed}, registry.ErrInvalidHomeName)

	rec := f.do(t, http.MethodPost, "/tenants", CreateTenantRequest{Name: "bad name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTenant_NotFound(t *testing.T) {
	f := newFixture(t)

	f.homes.On("Lookup", mock.Anything, "ghost").Return(nil, registry.ErrHomeNotFound)

	rec := f.do(t, http.MethodGet, "/tenants/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateTenant_NonNumericID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/tenants/sunset", UpdateTenantRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.homes.AssertNotCalled(t, "ApplyUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteTenant_RecordOnly(t *testing.T) {
	f := newFixture(t)

	f.homes.On("Remove", mock.Anything, int64(42)).Return(nil)

	rec := f.do(t, http.MethodDelete, "/tenants/42", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	f.pipeline.AssertNotCalled(t, "TeardownSchema", mock.Anything, mock.Anything)
}

func TestCreateTables_DropFlagAndPartialStatus(t *testing.T) {
	f := newFixture(t)
	home := sunsetHome()

	report := &tables.Report{Succeeded: []string{"users"}}
	report.Failed = append(report.Failed, tables.Failure{Name: "rooms", Reason: "boom"})

	f.homes.On("Lookup", mock.Anything, "sunset").Return(home, nil)
	f.initializer.On("CreateTables", mock.Anything, home, true).Return(report, nil)

	rec := f.do(t, http.MethodPost, "/tenants/sunset/create_tables?drop_if_exists=true", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "partial_success", resp["status"])
}

func TestListTables(t *testing.T) {
	f := newFixture(t)
	home := sunsetHome()

	f.homes.On("Lookup", mock.Anything, "sunset").Return(home, nil)
	f.provisioner.On("Tables", mock.Anything, "sunset").Return([]engine.TableInfo{
		{Name: "users", Columns: 10, Rows: 3},
	}, nil)

	rec := f.do(t, http.MethodGet, "/tenants/sunset/tables", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["count"])
}

func TestRecreateTable_UnknownTable(t *testing.T) {
	f := newFixture(t)
	home := sunsetHome()

	f.homes.On("Lookup", mock.Anything, "sunset").Return(home, nil)
	f.initializer.On("RecreateTable", mock.Anything, home, "bogus").
		Return(fmt.Errorf("%w: no creation step for %q", tables.ErrUnknownTable, "bogus"))

	rec := f.do(t, http.MethodPost, "/tenants/sunset/tables/bogus/recreate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSchema_InvalidName(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/create_schema/bad%20name", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.provisioner.AssertNotCalled(t, "CreateSchema", mock.Anything, mock.Anything)
}

func TestDeleteSchema_UnregisteredSchemaStillTornDown(t *testing.T) {
	f := newFixture(t)

	f.homes.On("LookupBySchema", mock.Anything, "orphan").Return(nil, registry.ErrHomeNotFound)
	f.pipeline.On("TeardownSchema", mock.Anything, mock.MatchedBy(func(h *registry.Home) bool {
		return h.Schema == "orphan"
	})).Return(engine.Result{Operation: "delete", Schema: "orphan", Status: engine.StatusSuccess})

	rec := f.do(t, http.MethodDelete, "/delete_schema/orphan", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHomeMiddleware_Chokepoint(t *testing.T) {
	f := newFixture(t)

	db := &sql.DB{}
	f.cache.On("ForHome", mock.Anything, int64(7)).Return(db, nil)

	var gotID int64
	var gotDB *sql.DB
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetHomeID(r.Context())
		gotDB = GetHomeDB(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Home-ID", "7")
	rec := httptest.NewRecorder()
	f.handler.HomeMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, int64(7), gotID)
	assert.Same(t, db, gotDB)
}

func TestHomeMiddleware_BadHeader(t *testing.T) {
	f := newFixture(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Home-ID", "not-a-number")
	rec := httptest.NewRecorder()
	f.handler.HomeMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHomeMiddleware_UnknownHome(t *testing.T) {
	f := newFixture(t)

	f.cache.On("ForHome", mock.Anything, int64(99)).Return(nil, registry.ErrHomeNotFound)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Home-ID", "99")
	rec := httptest.NewRecorder()
	f.handler.HomeMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler must not run")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
