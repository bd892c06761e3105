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
		log.Println("creating transfer_records table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.TransferRecordDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateIndex(ctx, db, "transfer_records", "idx_transfer_records_route_nonce", "from_chain, to_chain, bridge, nonce"); err != nil {
			return err
		}
		if err := mghelper.CreateIndex(ctx, db, "transfer_records", "idx_transfer_records_result", "result"); err != nil {
			return err
		}
		return mghelper.CreateIndex(ctx, db, "transfer_records", "idx_transfer_records_request_tx_hash", "request_tx_hash")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping transfer_records table...")
		return mghelper.DropTables(ctx, db, &dao.TransferRecordDao{})
	})
}
