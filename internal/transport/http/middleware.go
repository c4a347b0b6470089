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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/homegrid/homegrid/internal/observability/logger"
	"github.com/homegrid/homegrid/internal/registry"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware validates the operator bearer token. Every provisioning
// route sits behind it; only /health is public.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		if !strings.HasPrefix(raw, "Bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		token, err := jwt.Parse(strings.TrimPrefix(raw, "Bearer "), func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.tokenSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			respondError(w, http.StatusUnauthorized, "token missing subject")
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HomeMiddleware is the tenant-scoping chokepoint. When the numeric
// X-Home-ID header is present, it resolves the home through the registry,
// borrows the schema handle from the connection cache, and stashes both
// in the request context. Requests without the header pass through
// unscoped; a header that fails to resolve is rejected here so no
// downstream code ever sees a half-scoped request.
func (h *Handler) HomeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Home-ID")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		homeID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || homeID <= 0 {
			respondError(w, http.StatusBadRequest, "X-Home-ID must be a positive integer")
			return
		}

		db, err := h.cache.ForHome(r.Context(), homeID)
		if err != nil {
			if errors.Is(err, registry.ErrHomeNotFound) {
				respondError(w, http.StatusNotFound, "home not found")
				return
			}
			slog.ErrorContext(r.Context(), "failed to resolve home connection",
				logger.HomeID(homeID), logger.Error(err))
			respondError(w, http.StatusServiceUnavailable, "home database unavailable")
			return
		}

		ctx := context.WithValue(r.Context(), homeIDKey, homeID)
		ctx = context.WithValue(ctx, homeDBKey, db)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
