package recondb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/chainsafe/bridge-reconciler/pkg/db/dao"
	mghelper "github.com/chainsafe/bridge-reconciler/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating relay_provider_info table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.RelayProviderInfoDao{}); err != nil {
			return err
		}
		return mghelper.CreateIndex(ctx, db, "relay_provider_info", "idx_relay_provider_info_route_id", "route_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping relay_provider_info table...")
		return mghelper.DropTables(ctx, db, &dao.RelayProviderInfoDao{})
	})
}
