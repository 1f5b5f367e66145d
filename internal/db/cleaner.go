package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// purgeQuery removes projects that were soft-deleted before the cutoff.
const purgeQuery = `
    DELETE FROM projects
     WHERE deleted_at IS NOT NULL
       AND deleted_at < $1
`

// StartSoftDeleteCleaner purges soft-deleted projects older than retention
// every interval until ctx is cancelled.
func StartSoftDeleteCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = PurgeDeleted(ctx, db, time.Now().Add(-retention), log)
			}
		}
	}()
}

// PurgeDeleted hard-deletes projects soft-deleted before cutoff and returns
// how many rows went away.
func PurgeDeleted(ctx context.Context, db *sql.DB, cutoff time.Time, log *zap.Logger) (int64, error) {
	res, err := db.ExecContext(ctx, purgeQuery, cutoff)
	if err != nil {
		log.Error("failed to clean soft-deleted projects", zap.Error(err))
		return 0, err
	}
	rows, _ := res.RowsAffected()
	if rows > 0 {
		log.Info("cleaned soft-deleted projects", zap.Int64("removed", rows))
	}
	return rows, nil
}
