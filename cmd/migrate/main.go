package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/pkg/bootstrap"
	"github.com/angelmondragon/sitestock-backend/pkg/db"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
	"github.com/angelmondragon/sitestock-backend/pkg/migrate"
)

type options struct {
	dir           string
	name          string
	version       string
	warehouseName string
	location      string
}

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate|seed-main-warehouse")
	var opts options
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.StringVar(&opts.warehouseName, "warehouse", "Main Warehouse", "main warehouse name (for seed-main-warehouse)")
	flag.StringVar(&opts.location, "location", "", "main warehouse location (for seed-main-warehouse)")
	flag.Parse()

	cfg, logg, err := bootstrap.Load("migrate")
	requireResource(context.Background(), logg, "config", err)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": opts.dir,
	})

	switch *cmd {
	case "create":
		if opts.name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateFS(migrate.Source(opts.dir)); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")

	if *cmd == "seed-main-warehouse" {
		if err := seedMainWarehouse(ctx, logg, dbClient, opts); err != nil {
			fail("seeding main warehouse failed: %v", err)
		}
		return
	}
	if err := runGoose(ctx, sqlDB, *cmd, opts); err != nil {
		fail("goose %s failed: %v", *cmd, err)
	}
}

func runGoose(ctx context.Context, sqlDB *sql.DB, cmd string, opts options) error {
	switch cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, migrate.Source(opts.dir), cmd, os.Stdout)
	case "version":
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, migrate.Source(opts.dir), opts.version, os.Stdout)
	default:
		return fmt.Errorf("unknown -cmd value: %s", cmd)
	}
}

// seedMainWarehouse creates the shared main warehouse once. An existing one is left alone.
func seedMainWarehouse(ctx context.Context, logg *logger.Logger, dbClient *db.Client, opts options) error {
	svc, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}
	warehouse, err := svc.CreateWarehouse(ctx, catalog.CreateWarehouseInput{
		Name:     opts.warehouseName,
		Type:     enums.WarehouseMain,
		Location: opts.location,
	})
	if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		logg.Info(ctx, "main warehouse already present")
		return nil
	}
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "warehouse_id", warehouse.ID.String()), "main warehouse created")
	return nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
