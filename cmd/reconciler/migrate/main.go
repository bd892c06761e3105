package main

import (
	"context"
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/bridge-reconciler/pkg/config"
	"github.com/chainsafe/bridge-reconciler/pkg/migrations/recondb"
	"github.com/chainsafe/bridge-reconciler/pkg/pgutil"
	mghelper "github.com/chainsafe/bridge-reconciler/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	// Connect to database
	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for reconciler database (%s)...\n", cfg.Database.Database)

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, recondb.Migrations)

	args := flag.Args()
	if len(args) == 0 {
		mghelper.Usage()
	}

	switch args[0] {
	case "init":
		if err := migrator.Init(ctx); err != nil {
			mghelper.Exitf(err.Error())
		}
		log.Println("migration tables created")
	case "up":
		group, err := migrator.Migrate(ctx)
		if err != nil {
			mghelper.Exitf(err.Error())
		}
		if group.IsZero() {
			log.Println("database is up to date")
		} else {
			log.Printf("migrated to %s\n", group)
		}
	case "down":
		group, err := migrator.Rollback(ctx)
		if err != nil {
			mghelper.Exitf(err.Error())
		}
		if group.IsZero() {
			log.Println("no migrations to roll back")
		} else {
			log.Printf("rolled back %s\n", group)
		}
	case "status":
		status, err := migrator.MigrationsWithStatus(ctx)
		if err != nil {
			mghelper.Exitf(err.Error())
		}
		log.Printf("migrations: %s\n", status)
		log.Printf("unapplied migrations: %s\n", status.Unapplied())
		log.Printf("last migration group: %s\n", status.LastGroup())
	default:
		mghelper.Exitf("unknown command %q", args[0])
	}
}
