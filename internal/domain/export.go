package domain

import "time"

// MaxExportAssets caps the number of asset ids accepted in one request.
const MaxExportAssets = 100

// ExportRequest identifies the collection and assets to export. Immutable
// once validated.
type ExportRequest struct {
	CollectionID      string
	AssetIDs          []string
	DistributionToken string
	OutputProfileID   string
}

// AssetFailure records one asset that could not be delivered.
type AssetFailure struct {
	Filename string
	Reason   string
}

// ExportReport aggregates the terminal outcome of a batch. It is rendered
// into the archive as a text entry when any asset failed.
type ExportReport struct {
	CollectionName string
	GeneratedAt    time.Time
	SuccessCount   int
	Failures       []AssetFailure
}

// ActivityEntry is an audit-trail row written after an export completes.
type ActivityEntry struct {
	ID             string
	CollectionID   string
	Action         string
	SuccessCount   int
	FailureCount   int
	ProfileName    string
	ProfileWidth   int
	ProfileHeight  int
	Country        string
	CreatedAt      time.Time
}

// DownloadRecord is the client-facing download-history row.
type DownloadRecord struct {
	ID           string
	CollectionID string
	ClientID     string
	AssetIDs     []string
	Format       string
	FileCount    int
	CreatedAt    time.Time
}

// TransformResult is the output of one watermark or re-export step.
type TransformResult struct {
	Data   []byte
	Format string
}

// AssetTransformer applies per-asset image transforms. Implementations are
// pure with respect to their inputs and are expected to fail only on
// malformed input; callers degrade to the previous bytes on error.
type AssetTransformer interface {
	ApplyWatermark(data []byte, spec WatermarkSpec) (TransformResult, error)
	ResizeToProfile(data []byte, profile OutputProfile) (TransformResult, error)
}
