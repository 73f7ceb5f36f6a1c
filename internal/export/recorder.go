package export

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gallery/internal/domain"
	"gallery/internal/infra/geoip"
)

const recordTimeout = 10 * time.Second

// Recorder issues the post-export side effects: download counter, audit
// trail and client-facing download history. It runs after the archive has
// been finalized, so every error here is logged and swallowed; the response
// already in flight must not be affected.
type Recorder struct {
	collections domain.CollectionRepository
	history     domain.HistoryRepository
	geo         geoip.CountryResolver
	logger      zerolog.Logger
	now         func() time.Time
}

// NewRecorder builds a Recorder. geo may be nil when no GeoIP database is
// configured.
func NewRecorder(collections domain.CollectionRepository, history domain.HistoryRepository, geo geoip.CountryResolver, logger zerolog.Logger) *Recorder {
	return &Recorder{
		collections: collections,
		history:     history,
		geo:         geo,
		logger:      logger,
		now:         time.Now,
	}
}

// Record writes all side effects for one completed export. Safe to call
// from a detached goroutine; it carries its own timeout.
func (r *Recorder) Record(col *domain.Collection, req domain.ExportRequest, res Result, profile *domain.OutputProfile, clientID, clientIP string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	log := r.logger.With().Str("collection", col.ID).Logger()

	if res.SuccessCount > 0 {
		if err := r.collections.IncrementDownloadCount(ctx, col.ID, res.SuccessCount); err != nil {
			log.Error().Err(err).Msg("failed to increment download count")
		}
	}

	entry := &domain.ActivityEntry{
		ID:           uuid.NewString(),
		CollectionID: col.ID,
		Action:       "export",
		SuccessCount: res.SuccessCount,
		FailureCount: len(res.Failures),
		CreatedAt:    r.now(),
	}
	if profile != nil {
		entry.ProfileName = profile.Name
		entry.ProfileWidth = profile.Width
		entry.ProfileHeight = profile.Height
	}
	if r.geo != nil && clientIP != "" {
		if country, err := r.geo.CountryCode(clientIP); err == nil {
			entry.Country = country
		}
	}
	if err := r.history.RecordActivity(ctx, entry); err != nil {
		log.Error().Err(err).Msg("failed to record activity entry")
	}

	format := "original"
	if profile != nil {
		format = profile.Format
	}
	rec := &domain.DownloadRecord{
		ID:           uuid.NewString(),
		CollectionID: col.ID,
		ClientID:     clientID,
		AssetIDs:     req.AssetIDs,
		Format:       format,
		FileCount:    res.SuccessCount,
		CreatedAt:    r.now(),
	}
	if err := r.history.RecordDownload(ctx, rec); err != nil {
		log.Error().Err(err).Msg("failed to record download history")
	}
}
