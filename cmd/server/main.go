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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/homegrid/homegrid/internal/audit"
	"github.com/homegrid/homegrid/internal/blobstore"
	"github.com/homegrid/homegrid/internal/config"
	"github.com/homegrid/homegrid/internal/conncache"
	"github.com/homegrid/homegrid/internal/engine"
	"github.com/homegrid/homegrid/internal/observability/logger"
	"github.com/homegrid/homegrid/internal/observability/metrics"
	"github.com/homegrid/homegrid/internal/observability/tracing"
	"github.com/homegrid/homegrid/internal/provision"
	"github.com/homegrid/homegrid/internal/registry"
	"github.com/homegrid/homegrid/internal/store/postgres"
	"github.com/homegrid/homegrid/internal/tables"
	transportHTTP "github.com/homegrid/homegrid/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting homegrid provisioning service")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
		os.Exit(1)
	}

	// Control-plane database (home registry)
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to control-plane database")

	// Engine strategy, selected once; nothing downstream branches on the
	// engine name again.
	eng, err := engine.New(cfg.Provision)
	if err != nil {
		slog.Error("failed to select database engine", logger.Error(err))
		os.Exit(1)
	}
	adminDB, err := engine.Open(ctx, eng)
	if err != nil {
		slog.Error("failed to open provisioning connection", logger.Error(err))
		os.Exit(1)
	}
	defer adminDB.Close()
	slog.Info("provisioning engine ready", logger.Engine(eng.Name()))

	// Helpers and services
	auditLogger := audit.NewSlogLogger()
	passwordHasher := registry.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	homeRepo := postgres.NewHomeRepository(db)
	registrySvc := registry.NewService(homeRepo, passwordHasher, auditLogger)

	cache := conncache.New(registrySvc, eng)
	defer cache.DisposeAll()

	provisioner := engine.NewProvisioner(eng, adminDB)
	initializer := tables.NewInitializer(cache, eng.Dialect(), meter)

	store, err := blobstore.New(cfg.Storage)
	if err != nil {
		slog.Error("failed to initialize blob storage", logger.Error(err))
		os.Exit(1)
	}

	pipeline := provision.NewPipeline(registrySvc, provisioner, initializer, store, meter, auditLogger)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// HTTP handler and router
	handler := transportHTTP.NewHandler(
		registrySvc,
		pipeline,
		provisioner,
		initializer,
		cache,
		auditLogger,
		cfg.Security.AdminTokenSecret,
	)
	router := transportHTTP.NewRouter(handler, rateLimiter)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying admin schema...")
	if err := db.Migrate(ctx, postgres.AdminSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
