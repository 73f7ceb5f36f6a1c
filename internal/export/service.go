package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"gallery/internal/domain"
	"gallery/pkg/zip"
)

// Options carries the export pipeline tunables.
type Options struct {
	Concurrency int
	ZipLevel    int
	MaxAssets   int
}

// Service runs one export request through its full lifecycle: validation
// and authorization, the scheduled fetch/transform/append loop, failure
// reporting, archive finalization, and post-hoc recording.
type Service struct {
	collections domain.CollectionRepository
	profiles    domain.ProfileRepository
	fetcher     AssetFetcher
	stage       *Stage
	recorder    *Recorder
	opts        Options
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService wires the export pipeline.
func NewService(collections domain.CollectionRepository, profiles domain.ProfileRepository, fetcher AssetFetcher, transformer domain.AssetTransformer, recorder *Recorder, opts Options, logger zerolog.Logger) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.MaxAssets <= 0 {
		opts.MaxAssets = domain.MaxExportAssets
	}
	return &Service{
		collections: collections,
		profiles:    profiles,
		fetcher:     fetcher,
		stage:       NewStage(transformer, logger),
		recorder:    recorder,
		opts:        opts,
		logger:      logger,
		now:         time.Now,
	}
}

// Plan is a validated, authorized export ready to stream. Nothing has been
// fetched from object storage when Prepare returns.
type Plan struct {
	Request    domain.ExportRequest
	Collection *domain.Collection
	Profile    *domain.OutputProfile
	Watermark  *domain.WatermarkSpec
	Refs       []domain.AssetRef
	ClientID   string
	ClientIP   string
}

// ArchiveFilename is the suggested download name for this plan's archive.
func (p *Plan) ArchiveFilename() string {
	return ArchiveFilename(p.Collection.Name, p.Profile)
}

// Prepare validates the request against the eligibility rules and resolves
// everything the streaming phase needs. A returned error is one of the
// domain rejection errors, or an internal error from a failed lookup.
func (s *Service) Prepare(ctx context.Context, req domain.ExportRequest, sessionClientID, clientIP string) (*Plan, error) {
	elig := Eligibility{
		Request:         req,
		MaxAssets:       s.opts.MaxAssets,
		SessionClientID: sessionClientID,
		Now:             s.now(),
	}

	// Shape problems reject before any lookup happens.
	if len(req.AssetIDs) == 0 || len(req.AssetIDs) > s.opts.MaxAssets {
		return nil, domain.ErrInvalidRequest
	}

	if req.OutputProfileID != "" {
		profile, err := s.profiles.GetByID(ctx, req.OutputProfileID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("load output profile: %w", err)
		}
		elig.Profile = profile
	}

	col, err := s.collections.GetByID(ctx, req.CollectionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	elig.Collection = col

	if col != nil {
		tokens, err := s.collections.ListActiveTokens(ctx, col.ID)
		if err != nil {
			return nil, fmt.Errorf("load distribution tokens: %w", err)
		}
		elig.ActiveTokens = tokens

		refs, err := s.collections.ListAssetRefs(ctx, col.ID, req.AssetIDs)
		if err != nil {
			return nil, fmt.Errorf("load asset refs: %w", err)
		}
		elig.AssetRefs = refs
	}

	if err := elig.Check(); err != nil {
		return nil, err
	}

	plan := &Plan{
		Request:    req,
		Collection: col,
		Profile:    elig.Profile,
		Refs:       elig.AssetRefs,
		ClientID:   sessionClientID,
		ClientIP:   clientIP,
	}
	plan.Watermark = s.resolveWatermark(ctx, col)
	return plan, nil
}

// resolveWatermark loads the owning organization's watermark settings and,
// for image overlays, the overlay bytes. Watermarking is best-effort: any
// failure here means the batch ships unwatermarked.
func (s *Service) resolveWatermark(ctx context.Context, col *domain.Collection) *domain.WatermarkSpec {
	wm, err := s.collections.OrganizationWatermark(ctx, col.OrgID)
	if err != nil {
		s.logger.Warn().Err(err).Str("org", col.OrgID).Msg("failed to load watermark settings")
		return nil
	}
	if wm == nil {
		return nil
	}
	if wm.Type == domain.WatermarkImage && wm.ImageLocator != "" {
		data, err := s.fetcher.Fetch(ctx, domain.AssetRef{
			ID:            "watermark",
			Filename:      "watermark",
			RemoteLocator: wm.ImageLocator,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("org", col.OrgID).Msg("failed to fetch watermark overlay")
			return nil
		}
		wm.ImageData = data
	}
	return wm
}

// Stream runs the scheduled pipeline and writes the archive to w. The
// report entry, when failures exist, is appended strictly after all asset
// tasks settle and before finalize. Once finalize succeeds, side effects
// are dispatched on a detached goroutine. A returned error means the
// stream was aborted mid-flight and carries no well-formed end marker.
func (s *Service) Stream(ctx context.Context, plan *Plan, w io.Writer) error {
	zw := zip.NewWriter(w, s.opts.ZipLevel)
	sched := NewScheduler(s.fetcher, s.stage, s.opts.Concurrency, s.logger)

	res, err := sched.Run(ctx, plan.Refs, plan.Watermark, plan.Profile, zw.Append)
	if err != nil {
		zw.Abort()
		s.logger.Error().Err(err).
			Str("collection", plan.Collection.ID).
			Int("succeeded", res.SuccessCount).
			Int("failed", len(res.Failures)).
			Msg("export aborted mid-stream")
		return fmt.Errorf("export %s: %w", plan.Collection.ID, err)
	}

	if len(res.Failures) > 0 {
		report := RenderReport(domain.ExportReport{
			CollectionName: plan.Collection.Name,
			GeneratedAt:    s.now(),
			SuccessCount:   res.SuccessCount,
			Failures:       res.Failures,
		})
		if err := zw.Append(ReportEntryName, report); err != nil {
			zw.Abort()
			return fmt.Errorf("export %s: append report: %w", plan.Collection.ID, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("export %s: finalize archive: %w", plan.Collection.ID, err)
	}

	s.logger.Info().
		Str("collection", plan.Collection.ID).
		Int("succeeded", res.SuccessCount).
		Int("failed", len(res.Failures)).
		Msg("export delivered")

	if s.recorder != nil {
		go s.recorder.Record(plan.Collection, plan.Request, res, plan.Profile, plan.ClientID, plan.ClientIP)
	}
	return nil
}
