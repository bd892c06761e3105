package migrations

import (
	"context"
	"testing"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/bridge-reconciler/pkg/migrations/recondb"
	mghelper "github.com/chainsafe/bridge-reconciler/pkg/pgutil"
)

func TestReconDBMigrations_Apply(t *testing.T) {
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, recondb.Migrations)

	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected migrations to run, but none were applied")
	}

	expectedTables := []string{
		"transfer_records",
		"relay_provider_info",
		"bun_migrations",
	}
	for _, table := range expectedTables {
		mghelper.AssertTableExists(t, db, table)
	}

	mghelper.AssertIndexExists(t, db, "idx_transfer_records_route_nonce")
	mghelper.AssertIndexExists(t, db, "idx_transfer_records_result")
	mghelper.AssertIndexExists(t, db, "idx_relay_provider_info_route_id")
}

func TestReconDBMigrations_Rollback(t *testing.T) {
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, recondb.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	if _, err := migrator.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}
}
