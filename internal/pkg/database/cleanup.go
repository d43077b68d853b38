package database

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Cleanup removes recorded snapshots older than retention.
func (db *Database) Cleanup(ctx context.Context, retention time.Duration) error {
	tag, err := db.pool.Exec(ctx, "DELETE FROM snapshot WHERE generated_at < $1", time.Now().Add(-retention))
	if err != nil {
		return err
	}
	db.logger.Info("cleaned up recorded snapshots", zap.Int64("deleted", tag.RowsAffected()), zap.Duration("retention", retention))
	return nil
}
