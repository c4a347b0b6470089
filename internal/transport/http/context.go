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
	"database/sql"
)

type contextKey string

const (
	homeIDKey   contextKey = "home_id"
	homeDBKey   contextKey = "home_db"
	operatorKey contextKey = "operator"
)

// GetHomeID retrieves the resolved home ID from context. Zero means the
// request carried no home scope.
func GetHomeID(ctx context.Context) int64 {
	if val, ok := ctx.Value(homeIDKey).(int64); ok {
		return val
	}
	return 0
}

// GetHomeDB retrieves the cached schema connection the home middleware
// stashed for this request. Callers borrow the handle and never close it.
func GetHomeDB(ctx context.Context) *sql.DB {
	if val, ok := ctx.Value(homeDBKey).(*sql.DB); ok {
		return val
	}
	return nil
}

// GetOperator retrieves the authenticated operator subject from context.
func GetOperator(ctx context.Context) string {
	if val, ok := ctx.Value(operatorKey).(string); ok {
		return val
	}
	return ""
}
