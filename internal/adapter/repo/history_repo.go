package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"gallery/internal/domain"
)

// HistoryRepositoryPG implements domain.HistoryRepository using PostgreSQL.
type HistoryRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new history repository backed by
// PostgreSQL.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepositoryPG {
	return &HistoryRepositoryPG{pool: pool}
}

// RecordActivity inserts one audit-trail row.
func (r *HistoryRepositoryPG) RecordActivity(ctx context.Context, entry *domain.ActivityEntry) error {
	query := `
INSERT INTO activity_log (id, collection_id, action, success_count, failure_count, profile_name, profile_width, profile_height, country)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.CollectionID,
		entry.Action,
		entry.SuccessCount,
		entry.FailureCount,
		entry.ProfileName,
		entry.ProfileWidth,
		entry.ProfileHeight,
		nullableString(entry.Country),
	)
	return err
}

// RecordDownload inserts one download-history row.
func (r *HistoryRepositoryPG) RecordDownload(ctx context.Context, rec *domain.DownloadRecord) error {
	query := `
INSERT INTO download_history (id, collection_id, client_id, asset_ids, format, file_count)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.CollectionID,
		nullableString(rec.ClientID),
		rec.AssetIDs,
		rec.Format,
		rec.FileCount,
	)
	return err
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
