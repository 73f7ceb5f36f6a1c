package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gallery/internal/domain"
)

// CollectionRepositoryPG implements domain.CollectionRepository using
// PostgreSQL.
type CollectionRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCollectionRepository creates a new collection repository backed by
// PostgreSQL.
func NewCollectionRepository(pool *pgxpool.Pool) *CollectionRepositoryPG {
	return &CollectionRepositoryPG{pool: pool}
}

// GetByID fetches a collection by its identifier.
func (r *CollectionRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Collection, error) {
	query := `
SELECT id, client_id, org_id, name, status, expires_at, price_cents, require_payment, paid, downloads_enabled, download_count, created_at
FROM collections
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var col domain.Collection
	if err := row.Scan(
		&col.ID,
		&col.ClientID,
		&col.OrgID,
		&col.Name,
		&col.Status,
		&col.ExpiresAt,
		&col.PriceCents,
		&col.RequirePayment,
		&col.Paid,
		&col.DownloadsEnabled,
		&col.DownloadCount,
		&col.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &col, nil
}

// ListAssetRefs returns the refs for the requested asset ids that still
// belong to the collection. Ids with no matching row are simply absent from
// the result.
func (r *CollectionRepositoryPG) ListAssetRefs(ctx context.Context, collectionID string, assetIDs []string) ([]domain.AssetRef, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, filename, remote_locator
FROM assets
WHERE collection_id = $1 AND id = ANY($2)
ORDER BY created_at ASC;
`, collectionID, assetIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []domain.AssetRef
	for rows.Next() {
		var ref domain.AssetRef
		if err := rows.Scan(&ref.ID, &ref.Filename, &ref.RemoteLocator); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

// ListActiveTokens returns the non-revoked distribution tokens issued for
// the collection.
func (r *CollectionRepositoryPG) ListActiveTokens(ctx context.Context, collectionID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT token
FROM distribution_tokens
WHERE collection_id = $1 AND NOT revoked;
`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

// OrganizationWatermark returns the organization's watermark settings, or
// nil when watermarking is turned off.
func (r *CollectionRepositoryPG) OrganizationWatermark(ctx context.Context, orgID string) (*domain.WatermarkSpec, error) {
	query := `
SELECT watermark_type, watermark_text, watermark_image, watermark_position, watermark_opacity, watermark_scale
FROM organizations
WHERE id = $1 AND watermark_enabled;
`
	row := r.pool.QueryRow(ctx, query, orgID)
	var wm domain.WatermarkSpec
	if err := row.Scan(
		&wm.Type,
		&wm.Text,
		&wm.ImageLocator,
		&wm.Position,
		&wm.Opacity,
		&wm.Scale,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &wm, nil
}

// IncrementDownloadCount bumps the collection's download counter.
func (r *CollectionRepositoryPG) IncrementDownloadCount(ctx context.Context, id string, by int) error {
	_, err := r.pool.Exec(ctx, `
UPDATE collections
SET download_count = download_count + $2,
    updated_at = NOW()
WHERE id = $1;
`, id, by)
	return err
}
