// @title HomeGrid Provisioning API
// @version 1.0.0
// @description Multi-tenant community provisioning control plane

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/homegrid/homegrid/internal/audit"
	"github.com/homegrid/homegrid/internal/engine"
	"github.com/homegrid/homegrid/internal/provision"
	"github.com/homegrid/homegrid/internal/registry"
	"github.com/homegrid/homegrid/internal/tables"
)

// HomeService is the slice of the registry service the handlers use.
type HomeService interface {
	Lookup(ctx context.Context, name string) (*registry.Home, error)
	LookupByID(ctx context.Context, id int64) (*registry.Home, error)
	LookupBySchema(ctx context.Context, schema string) (*registry.Home, error)
	ListAll(ctx context.Context) ([]*registry.Home, error)
	ApplyUpdate(ctx context.Context, id int64, upd registry.Update) (*registry.Home, error)
	Remove(ctx context.Context, id int64) error
}

// ProvisionPipeline runs full tenant onboarding and schema teardown.
type ProvisionPipeline interface {
	CreateHome(ctx context.Context, spec registry.CreateSpec) (*registry.Home, *provision.SetupReport, error)
	TeardownSchema(ctx context.Context, home *registry.Home) engine.Result
}

// SchemaProvisioner exposes the standalone schema operations.
type SchemaProvisioner interface {
	CreateSchema(ctx context.Context, schema string) engine.Result
	SchemaExists(ctx context.Context, schema string) (bool, error)
	Tables(ctx context.Context, schema string) ([]engine.TableInfo, error)
}

// TableInitializer creates, seeds, and repairs per-tenant tables.
type TableInitializer interface {
	CreateTables(ctx context.Context, home *registry.Home, drop bool) (*tables.Report, error)
	SeedDemoData(ctx context.Context, home *registry.Home) (*tables.Report, error)
	RecreateTable(ctx context.Context, home *registry.Home, table string) error
	LoadTableData(ctx context.Context, home *registry.Home, table string) error
}

// ConnCache hands out cached tenant connections for request scoping.
type ConnCache interface {
	ForHome(ctx context.Context, homeID int64) (*sql.DB, error)
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	homes       HomeService
	pipeline    ProvisionPipeline
	provisioner SchemaProvisioner
	initializer TableInitializer
	cache       ConnCache
	auditLogger audit.Logger
	tokenSecret string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	homes HomeService,
	pipeline ProvisionPipeline,
	provisioner SchemaProvisioner,
	initializer TableInitializer,
	cache ConnCache,
	auditLogger audit.Logger,
	tokenSecret string,
) *Handler {
	return &Handler{
		homes:       homes,
		pipeline:    pipeline,
		provisioner: provisioner,
		initializer: initializer,
		cache:       cache,
		auditLogger: auditLogger,
		tokenSecret: tokenSecret,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)
		r.Use(h.HomeMiddleware)

		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", h.CreateTenant)
			r.Get("/", h.ListTenants)

			// {tenant} is a name for reads and table operations, a
			// numeric ID for update and delete.
			r.Route("/{tenant}", func(r chi.Router) {
				r.Get("/", h.GetTenant)
				r.Put("/", h.UpdateTenant)
				r.Delete("/", h.DeleteTenant)

				r.Post("/create_tables", h.CreateTables)
				r.Post("/init_data_for_tenant", h.InitData)
				r.Get("/tables", h.ListTables)
				r.Route("/tables/{table}", func(r chi.Router) {
					r.Post("/recreate", h.RecreateTable)
					r.Post("/load_data", h.LoadTableData)
				})
			})
		})

		r.Post("/create_schema/{schema_name}", h.CreateSchema)
		r.Delete("/delete_schema/{schema_name}", h.DeleteSchema)
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "homegrid",
	})
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusCode maps a provisioning status to an HTTP status.
func statusCode(s engine.Status) int {
	switch s {
	case engine.StatusSuccess, engine.StatusPartialSuccess:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

func getIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
