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

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/homegrid/homegrid/internal/engine"
	"github.com/homegrid/homegrid/internal/observability/logger"
	"github.com/homegrid/homegrid/internal/provision"
	"github.com/homegrid/homegrid/internal/registry"
	"github.com/homegrid/homegrid/internal/tables"
)

// CreateTenantRequest carries the onboarding parameters for a new home.
type CreateTenantRequest struct {
	Name          string `json:"name" example:"sunset-village"`
	Schema        string `json:"schema,omitempty" example:"sunset-village"`
	Engine        string `json:"engine,omitempty" example:"postgres"`
	Database      string `json:"database,omitempty"`
	AdminEmail    string `json:"admin_email,omitempty"`
	AdminPassword string `json:"admin_password,omitempty"`
}

// CreateTenant provisions a new home end to end
// @Summary Provision a tenant
// @Description Register a home, create its schema, tables, demo data, and storage
// @Tags Tenants
// @Accept json
// @Produce json
// @Param request body CreateTenantRequest true "Tenant parameters"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tenants [post]
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	home, report, err := h.pipeline.CreateHome(r.Context(), registry.CreateSpec{
		Name:          req.Name,
		Schema:        req.Schema,
		Engine:        req.Engine,
		Database:      req.Database,
		AdminEmail:    req.AdminEmail,
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "tenant provisioning failed",
			logger.Home(req.Name), logger.Error(err))

		switch {
		case errors.Is(err, registry.ErrInvalidHomeName):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, registry.ErrHomeAlreadyExists):
			respondError(w, http.StatusConflict, "tenant already exists")
		default:
			respondJSON(w, http.StatusInternalServerError, map[string]any{
				"status": string(provision.StatusFailed),
				"error":  err.Error(),
				"report": report,
			})
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"status": string(report.Status),
		"tenant": home,
		"report": report,
	})
}

// ListTenants lists every registered home
// @Summary List tenants
// @Tags Tenants
// @Produce json
// @Success 200 {object} map[string]any
// @Router /tenants [get]
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	homes, err := h.homes.ListAll(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list tenants", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list tenants")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"tenants": homes,
		"count":   len(homes),
	})
}

// GetTenant retrieves one home by name
// @Summary Get a tenant
// @Tags Tenants
// @Produce json
// @Param tenant path string true "Tenant name"
// @Success 200 {object} registry.Home
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenant} [get]
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	home, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, home)
}

// UpdateTenantRequest patches the mutable fields of a home. Name and
// schema are structurally immutable.
type UpdateTenantRequest struct {
	AdminEmail    *string `json:"admin_email,omitempty"`
	AdminPassword *string `json:"admin_password,omitempty"`
}

// UpdateTenant patches a home record by ID
// @Summary Update a tenant
// @Tags Tenants
// @Accept json
// @Produce json
// @Param tenant path int true "Tenant ID"
// @Param request body UpdateTenantRequest true "Fields to update"
// @Success 200 {object} registry.Home
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenant} [put]
func (h *Handler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tenant"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "tenant ID must be numeric")
		return
	}

	var req UpdateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	home, err := h.homes.ApplyUpdate(r.Context(), id, registry.Update{
		AdminEmail:    req.AdminEmail,
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		if errors.Is(err, registry.ErrHomeNotFound) {
			respondError(w, http.StatusNotFound, "tenant not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to update tenant", logger.HomeID(id), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update tenant")
		return
	}

	respondJSON(w, http.StatusOK, home)
}

// DeleteTenant removes a home record by ID. The schema is not touched:
// teardown goes through DELETE /delete_schema/{schema_name}.
// @Summary Delete a tenant record
// @Tags Tenants
// @Produce json
// @Param tenant path int true "Tenant ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenant} [delete]
func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tenant"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "tenant ID must be numeric")
		return
	}

	if err := h.homes.Remove(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrHomeNotFound) {
			respondError(w, http.StatusNotFound, "tenant not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to delete tenant", logger.HomeID(id), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete tenant")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "tenant record deleted; schema left intact",
	})
}

// CreateTables runs the table-creation step registry for a tenant
// @Summary Create tenant tables
// @Tags Tables
// @Produce json
// @Param tenant path string true "Tenant name"
// @Param drop_if_exists query bool false "Drop each table before creating it"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenant}/create_tables [post]
func (h *Handler) CreateTables(w http.ResponseWriter, r *http.Request) {
	home, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}

	drop, _ := strconv.ParseBool(r.URL.Query().Get("drop_if_exists"))

	report, err := h.initializer.CreateTables(r.Context(), home, drop)
	if err != nil {
		slog.ErrorContext(r.Context(), "table creation failed", logger.Home(home.Name), logger.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, statusCode(report.Status()), map[string]any{
		"status": string(report.Status()),
		"report": report,
	})
}

// InitData runs the demo seed registry for a tenant
// @Summary Seed tenant demo data
// @Tags Tables
// @Produce json
// @Param tenant path string true "Tenant name"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenant}/init_data_for_tenant [post]
func (h *Handler) InitData(w http.ResponseWriter, r *http.Request) {
	home, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}

	report, err := h.initializer.SeedDemoData(r.Context(), home)
	if err != nil {
		slog.ErrorContext(r.Context(), "seeding failed", logger.Home(home.Name), logger.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, statusCode(report.Status()), map[string]any{
		"status": string(report.Status()),
		"report": report,
	})
}

// ListTables introspects the live tenant schema
// @Summary List tenant tables
// @Description Table names with column and row counts, read from the live schema
// @Tags Tables
// @Produce json
// @Param tenant path string true "Tenant name"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenant}/tables [get]
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	home, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}

	infos, err := h.provisioner.Tables(r.Context(), home.Schema)
	if err != nil {
		slog.ErrorContext(r.Context(), "table introspection failed", logger.Home(home.Name), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list tables")
		return
	}
	if infos == nil {
		infos = []engine.TableInfo{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"schema": home.Schema,
		"tables": infos,
		"count":  len(infos),
	})
}

// RecreateTable drops and recreates one registered table
// @Summary Recreate a table
// @Tags Tables
// @Produce json
// @Param tenant path string true "Tenant name"
// @Param table path string true "Table name"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenant}/tables/{table}/recreate [post]
func (h *Handler) RecreateTable(w http.ResponseWriter, r *http.Request) {
	home, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	table := chi.URLParam(r, "table")

	if err := h.initializer.RecreateTable(r.Context(), home, table); err != nil {
		h.respondTableError(w, r, home, table, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": string(engine.StatusSuccess),
		"table":  table,
	})
}

// LoadTableData runs the seed step for one registered table
// @Summary Load demo data for a table
// @Tags Tables
// @Produce json
// @Param tenant path string true "Tenant name"
// @Param table path string true "Table name"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenant}/tables/{table}/load_data [post]
func (h *Handler) LoadTableData(w http.ResponseWriter, r *http.Request) {
	home, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	table := chi.URLParam(r, "table")

	if err := h.initializer.LoadTableData(r.Context(), home, table); err != nil {
		h.respondTableError(w, r, home, table, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": string(engine.StatusSuccess),
		"table":  table,
	})
}

// resolveTenant loads the home named in the route, writing the error
// response itself on failure.
func (h *Handler) resolveTenant(w http.ResponseWriter, r *http.Request) (*registry.Home, bool) {
	name := chi.URLParam(r, "tenant")
	home, err := h.homes.Lookup(r.Context(), name)
	if err != nil {
		if errors.Is(err, registry.ErrHomeNotFound) {
			respondError(w, http.StatusNotFound, "tenant not found")
			return nil, false
		}
		slog.ErrorContext(r.Context(), "failed to resolve tenant", logger.Home(name), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to resolve tenant")
		return nil, false
	}
	return home, true
}

func (h *Handler) respondTableError(w http.ResponseWriter, r *http.Request, home *registry.Home, table string, err error) {
	if errors.Is(err, tables.ErrUnknownTable) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	slog.ErrorContext(r.Context(), "table operation failed",
		logger.Home(home.Name), logger.Table(table), logger.Error(err))
	respondError(w, http.StatusInternalServerError, err.Error())
}
