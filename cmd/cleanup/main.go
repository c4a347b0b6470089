// Command cleanup repairs drift between the home registry and the live
// database. Two directions of drift exist: registry rows whose schema no
// longer verifies (a failed rollback left an orphaned record), and
// schemas left behind after a record was deleted. The tool fixes the
// first automatically and reports candidates for the second; with
// -drop-schemas it tears those down too.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/homegrid/homegrid/internal/audit"
	"github.com/homegrid/homegrid/internal/config"
	"github.com/homegrid/homegrid/internal/engine"
	"github.com/homegrid/homegrid/internal/observability/logger"
	"github.com/homegrid/homegrid/internal/registry"
	"github.com/homegrid/homegrid/internal/store/postgres"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report drift without fixing anything")
	dropSchemas := flag.Bool("drop-schemas", false, "also tear down schemas whose registry row is gone")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      "text",
		ServiceName: "homegrid-cleanup",
	})

	if err := run(context.Background(), cfg, *dryRun, *dropSchemas); err != nil {
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, dryRun, dropSchemas bool) error {
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
		return fmt.Errorf("failed to connect to control-plane database: %w", err)
	}
	defer db.Close()

	eng, err := engine.New(cfg.Provision)
	if err != nil {
		return err
	}
	adminDB, err := engine.Open(ctx, eng)
	if err != nil {
		return fmt.Errorf("failed to open provisioning connection: %w", err)
	}
	defer adminDB.Close()

	auditLogger := audit.NewSlogLogger()
	hasher := registry.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
	svc := registry.NewService(postgres.NewHomeRepository(db), hasher, auditLogger)
	provisioner := engine.NewProvisioner(eng, adminDB)

	homes, err := svc.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list homes: %w", err)
	}

	registered := make(map[string]bool, len(homes))
	orphans := 0
	for _, home := range homes {
		registered[home.Schema] = true

		exists, err := provisioner.SchemaExists(ctx, home.Schema)
		if err != nil {
			return fmt.Errorf("failed to verify schema %q: %w", home.Schema, err)
		}
		if exists {
			continue
		}

		orphans++
		if dryRun {
			fmt.Printf("orphaned record: home %q (id %d), schema %q missing\n", home.Name, home.ID, home.Schema)
			continue
		}

		// Leftover login/user from a half-finished run would block
		// re-provisioning under the same name; tear down first.
		res := provisioner.DeleteSchema(ctx, home.Schema)
		if res.Status == engine.StatusError {
			fmt.Printf("failed to clean leftovers for %q: %s\n", home.Schema, res.Error)
			continue
		}
		if err := svc.Remove(ctx, home.ID); err != nil {
			fmt.Printf("failed to remove orphaned record %d: %v\n", home.ID, err)
			continue
		}
		fmt.Printf("removed orphaned record: home %q (id %d)\n", home.Name, home.ID)
	}

	if orphans == 0 {
		fmt.Println("registry and database are consistent")
	}

	if dropSchemas {
		// Reverse direction: schemas without a registry row.
		for _, schema := range flag.Args() {
			if registered[schema] {
				fmt.Printf("schema %q is registered, skipping\n", schema)
				continue
			}
			if dryRun {
				fmt.Printf("would tear down unregistered schema %q\n", schema)
				continue
			}
			res := provisioner.DeleteSchema(ctx, schema)
			fmt.Printf("teardown of %q: %s\n", schema, res.Status)
		}
	}

	return nil
}
