package domain

import "context"

// CollectionRepository defines read access to collections and their assets.
type CollectionRepository interface {
	GetByID(ctx context.Context, id string) (*Collection, error)
	ListAssetRefs(ctx context.Context, collectionID string, assetIDs []string) ([]AssetRef, error)
	ListActiveTokens(ctx context.Context, collectionID string) ([]string, error)
	OrganizationWatermark(ctx context.Context, orgID string) (*WatermarkSpec, error)
	IncrementDownloadCount(ctx context.Context, id string, by int) error
}

// ProfileRepository resolves named output profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*OutputProfile, error)
}

// HistoryRepository persists post-export audit and history rows.
type HistoryRepository interface {
	RecordActivity(ctx context.Context, entry *ActivityEntry) error
	RecordDownload(ctx context.Context, rec *DownloadRecord) error
}
