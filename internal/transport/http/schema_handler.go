package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/homegrid/homegrid/internal/audit"
	"github.com/homegrid/homegrid/internal/engine"
	"github.com/homegrid/homegrid/internal/registry"
)

// CreateSchema provisions a schema with its login, user, and grants,
// without touching the tenant catalog
// @Summary Create a schema
// @Description Idempotent: pre-existing schema, login, or user is reported, not failed
// @Tags Schemas
// @Produce json
// @Param schema_name path string true "Schema name"
// @Success 200 {object} engine.Result
// @Failure 400 {object} map[string]string
// @Router /create_schema/{schema_name} [post]
func (h *Handler) CreateSchema(w http.ResponseWriter, r *http.Request) {
	schema := chi.URLParam(r, "schema_name")
	if !engine.ValidSchemaName(schema) {
		respondError(w, http.StatusBadRequest, engine.ErrInvalidSchemaName.Error())
		return
	}

	res := h.provisioner.CreateSchema(r.Context(), schema)
	if res.Status != engine.StatusError {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeSchemaCreated,
			ActorID:   GetOperator(r.Context()),
			Resource:  schema,
			IPAddress: getIPAddress(r),
			Metadata:  map[string]any{"status": string(res.Status), "schema_existed": res.SchemaExisted},
		})
	}

	respondJSON(w, statusCode(res.Status), res)
}

// DeleteSchema tears down a schema with its login and user. The tenant
// record, when one exists, is left in place so the schema can be
// re-provisioned under the same registration.
// @Summary Delete a schema
// @Description Retry-safe: an absent schema reports success
// @Tags Schemas
// @Produce json
// @Param schema_name path string true "Schema name"
// @Success 200 {object} engine.Result
// @Failure 400 {object} map[string]string
// @Router /delete_schema/{schema_name} [delete]
func (h *Handler) DeleteSchema(w http.ResponseWriter, r *http.Request) {
	schema := chi.URLParam(r, "schema_name")
	if !engine.ValidSchemaName(schema) {
		respondError(w, http.StatusBadRequest, engine.ErrInvalidSchemaName.Error())
		return
	}

	// Teardown works with or without a catalog record; an unregistered
	// schema still gets its container cleaned up under the schema name.
	home, err := h.homes.LookupBySchema(r.Context(), schema)
	if err != nil {
		if !errors.Is(err, registry.ErrHomeNotFound) {
			respondError(w, http.StatusInternalServerError, "failed to resolve schema")
			return
		}
		home = &registry.Home{Name: schema, Schema: schema}
	}

	res := h.pipeline.TeardownSchema(r.Context(), home)
	if res.Status != engine.StatusError {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeSchemaDeleted,
			Home:      home.Name,
			ActorID:   GetOperator(r.Context()),
			Resource:  schema,
			IPAddress: getIPAddress(r),
			Metadata:  map[string]any{"status": string(res.Status), "schema_existed": res.SchemaExisted},
		})
	}

	respondJSON(w, statusCode(res.Status), res)
}
