package domain

import "time"

// CollectionStatus enumerates the lifecycle states of a collection.
type CollectionStatus string

const (
	CollectionStatusDraft     CollectionStatus = "draft"
	CollectionStatusPublished CollectionStatus = "published"
	CollectionStatusArchived  CollectionStatus = "archived"
)

// Collection is the parent grouping of assets exported together.
type Collection struct {
	ID               string
	ClientID         string
	OrgID            string
	Name             string
	Status           CollectionStatus
	ExpiresAt        *time.Time
	PriceCents       int64
	RequirePayment   bool
	Paid             bool
	DownloadsEnabled bool
	DownloadCount    int
	CreatedAt        time.Time
}

// Expired reports whether the collection is past its expiry timestamp.
func (c *Collection) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// AssetRef points at one stored binary belonging to a collection. Filename
// is the archive entry name; the transform stage may rewrite its extension
// on format conversion.
type AssetRef struct {
	ID            string
	Filename      string
	RemoteLocator string
}

// OutputProfile is a named re-export configuration for delivered assets.
type OutputProfile struct {
	ID             string
	Name           string
	Width          int
	Height         int
	Quality        int
	Format         string
	MaxFileSizeKB  int
	MaintainAspect bool
	Letterbox      bool
	LetterboxColor string
}

// WatermarkType selects between text and image overlays.
type WatermarkType string

const (
	WatermarkText  WatermarkType = "text"
	WatermarkImage WatermarkType = "image"
)

// WatermarkSpec describes the overlay applied uniformly to every asset in a
// batch. It is resolved once per request from the owning organization's
// settings. ImageData holds the overlay bytes fetched from ImageLocator
// before the batch starts.
type WatermarkSpec struct {
	Type         WatermarkType
	Text         string
	ImageLocator string
	ImageData    []byte
	Position     string
	Opacity      float64
	Scale        float64
}
