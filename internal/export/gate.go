package export

import (
	"time"

	"gallery/internal/domain"
)

// Eligibility gathers everything the gate needs to admit an export request.
// The service loads the referenced records; Check is pure and performs no
// I/O, so a rejected request costs no storage traffic.
type Eligibility struct {
	Request   domain.ExportRequest
	MaxAssets int

	// Profile is nil when the request named a profile that did not resolve.
	Profile *domain.OutputProfile
	// Collection is nil when the id did not resolve.
	Collection   *domain.Collection
	ActiveTokens []string

	// SessionClientID is the authenticated caller, empty when anonymous.
	SessionClientID string

	AssetRefs []domain.AssetRef
	Now       time.Time
}

// Check validates the request against business rules and authorization, in
// a fixed order so the caller always sees the earliest applicable
// rejection. Returns nil when the export may proceed.
func (e Eligibility) Check() error {
	maxAssets := e.MaxAssets
	if maxAssets <= 0 {
		maxAssets = domain.MaxExportAssets
	}
	if len(e.Request.AssetIDs) == 0 || len(e.Request.AssetIDs) > maxAssets {
		return domain.ErrInvalidRequest
	}
	if e.Request.OutputProfileID != "" && e.Profile == nil {
		return domain.ErrInvalidProfile
	}
	if e.Collection == nil {
		return domain.ErrNotFound
	}
	if e.Collection.Expired(e.Now) {
		return domain.ErrExpired
	}
	if e.Collection.Status != domain.CollectionStatusPublished {
		return domain.ErrNotReady
	}
	if !e.Collection.DownloadsEnabled {
		return domain.ErrDownloadsDisabled
	}
	if e.Collection.PriceCents > 0 && e.Collection.RequirePayment && !e.Collection.Paid {
		return domain.ErrPaymentRequired
	}
	if !e.authorized() {
		return domain.ErrUnauthorized
	}
	if len(e.AssetRefs) != len(e.Request.AssetIDs) {
		return domain.ErrAssetsNotFound
	}
	return nil
}

func (e Eligibility) authorized() bool {
	if e.SessionClientID != "" && e.SessionClientID == e.Collection.ClientID {
		return true
	}
	if e.Request.DistributionToken == "" {
		return false
	}
	for _, token := range e.ActiveTokens {
		if token == e.Request.DistributionToken {
			return true
		}
	}
	return false
}
