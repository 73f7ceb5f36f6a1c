package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gallery/internal/domain"
)

type fakeCollections struct {
	collection *domain.Collection
	refs       []domain.AssetRef
	tokens     []string
	watermark  *domain.WatermarkSpec

	incremented  int
	incrementErr error
}

func (f *fakeCollections) GetByID(ctx context.Context, id string) (*domain.Collection, error) {
	if f.collection == nil || f.collection.ID != id {
		return nil, domain.ErrNotFound
	}
	return f.collection, nil
}

func (f *fakeCollections) ListAssetRefs(ctx context.Context, collectionID string, assetIDs []string) ([]domain.AssetRef, error) {
	var refs []domain.AssetRef
	for _, id := range assetIDs {
		for _, ref := range f.refs {
			if ref.ID == id {
				refs = append(refs, ref)
				break
			}
		}
	}
	return refs, nil
}

func (f *fakeCollections) ListActiveTokens(ctx context.Context, collectionID string) ([]string, error) {
	return f.tokens, nil
}

func (f *fakeCollections) OrganizationWatermark(ctx context.Context, orgID string) (*domain.WatermarkSpec, error) {
	return f.watermark, nil
}

func (f *fakeCollections) IncrementDownloadCount(ctx context.Context, id string, by int) error {
	if f.incrementErr != nil {
		return f.incrementErr
	}
	f.incremented += by
	return nil
}

type fakeProfiles struct {
	profiles map[string]*domain.OutputProfile
}

func (f *fakeProfiles) GetByID(ctx context.Context, id string) (*domain.OutputProfile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func newTestService(cols *fakeCollections, profiles *fakeProfiles, fetcher AssetFetcher, tr domain.AssetTransformer) *Service {
	return NewService(cols, profiles, fetcher, tr, nil, Options{Concurrency: 5, ZipLevel: 1}, zerolog.Nop())
}

func validRequest() domain.ExportRequest {
	return domain.ExportRequest{
		CollectionID: "col-1",
		AssetIDs:     []string{"a0", "a1", "a2", "a3", "a4"},
	}
}

func exportFixture() (*fakeCollections, *fakeProfiles) {
	cols := &fakeCollections{
		collection: publishedCollection(),
		refs:       manyRefs(5),
	}
	profiles := &fakeProfiles{profiles: map[string]*domain.OutputProfile{
		"web": {ID: "web", Name: "Web", Width: 800, Height: 600, Format: "webp"},
	}}
	return cols, profiles
}

func TestPrepareRejectsWithoutFetching(t *testing.T) {
	cols, profiles := exportFixture()
	expired := publishedCollection()
	past := time.Now().Add(-time.Hour)
	expired.ExpiresAt = &past
	cols.collection = expired

	fetcher := &trackingFetcher{}
	svc := newTestService(cols, profiles, fetcher, nil)

	_, err := svc.Prepare(context.Background(), validRequest(), "client-1", "")
	if !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("Prepare error = %v, want ErrExpired", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("fetch calls = %d, want 0 before the gate", fetcher.calls)
	}
}

func TestPrepareShapeRejectionSkipsLookups(t *testing.T) {
	cols, profiles := exportFixture()
	fetcher := &trackingFetcher{}
	svc := newTestService(cols, profiles, fetcher, nil)

	req := validRequest()
	req.AssetIDs = make([]string, domain.MaxExportAssets+1)
	for i := range req.AssetIDs {
		req.AssetIDs[i] = "a"
	}
	if _, err := svc.Prepare(context.Background(), req, "client-1", ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("Prepare error = %v, want ErrInvalidRequest", err)
	}
}

func TestPrepareRejectsUnknownProfile(t *testing.T) {
	cols, profiles := exportFixture()
	svc := newTestService(cols, profiles, &trackingFetcher{}, nil)

	req := validRequest()
	req.OutputProfileID = "missing"
	if _, err := svc.Prepare(context.Background(), req, "client-1", ""); !errors.Is(err, domain.ErrInvalidProfile) {
		t.Fatalf("Prepare error = %v, want ErrInvalidProfile", err)
	}
}

func TestPrepareRejectsStaleAssetIDs(t *testing.T) {
	cols, profiles := exportFixture()
	cols.refs = manyRefs(4) // a4 no longer resolves
	svc := newTestService(cols, profiles, &trackingFetcher{}, nil)

	if _, err := svc.Prepare(context.Background(), validRequest(), "client-1", ""); !errors.Is(err, domain.ErrAssetsNotFound) {
		t.Fatalf("Prepare error = %v, want ErrAssetsNotFound", err)
	}
}

func TestPrepareResolvesWatermarkOverlay(t *testing.T) {
	cols, profiles := exportFixture()
	cols.watermark = &domain.WatermarkSpec{
		Type:         domain.WatermarkImage,
		ImageLocator: "branding/logo.png",
		Opacity:      0.5,
	}
	svc := newTestService(cols, profiles, &trackingFetcher{}, nil)

	plan, err := svc.Prepare(context.Background(), validRequest(), "client-1", "")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if plan.Watermark == nil || len(plan.Watermark.ImageData) == 0 {
		t.Fatal("watermark overlay bytes not resolved")
	}
}

func TestPrepareDropsWatermarkWhenOverlayUnreachable(t *testing.T) {
	cols, profiles := exportFixture()
	cols.watermark = &domain.WatermarkSpec{
		Type:         domain.WatermarkImage,
		ImageLocator: "branding/logo.png",
	}
	fetcher := &trackingFetcher{failIDs: map[string]bool{"watermark": true}}
	svc := newTestService(cols, profiles, fetcher, nil)

	plan, err := svc.Prepare(context.Background(), validRequest(), "client-1", "")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if plan.Watermark != nil {
		t.Fatal("unreachable overlay should drop the watermark, not fail the export")
	}
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	entries := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %q: %v", f.Name, err)
		}
		content, _ := io.ReadAll(rc)
		rc.Close()
		entries[f.Name] = string(content)
	}
	return entries
}

func TestStreamAllSucceedNoReport(t *testing.T) {
	cols, profiles := exportFixture()
	svc := newTestService(cols, profiles, &trackingFetcher{}, nil)

	plan, err := svc.Prepare(context.Background(), validRequest(), "client-1", "")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.Stream(context.Background(), plan, &buf); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	entries := readArchive(t, buf.Bytes())
	if len(entries) != 5 {
		t.Fatalf("entries = %d, want 5 with no report", len(entries))
	}
	if _, ok := entries[ReportEntryName]; ok {
		t.Fatal("report entry present without failures")
	}
}

func TestStreamPartialFailureAddsReport(t *testing.T) {
	cols, profiles := exportFixture()
	fetcher := &trackingFetcher{failIDs: map[string]bool{"a1": true, "a3": true}}
	svc := newTestService(cols, profiles, fetcher, nil)

	plan, err := svc.Prepare(context.Background(), validRequest(), "client-1", "")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.Stream(context.Background(), plan, &buf); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	entries := readArchive(t, buf.Bytes())
	if len(entries) != 4 { // 3 assets + report
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	report, ok := entries[ReportEntryName]
	if !ok {
		t.Fatal("report entry missing")
	}
	if !strings.Contains(report, "Failed: 2 file(s)") {
		t.Fatalf("report does not list both failures:\n%s", report)
	}
	if !strings.Contains(report, "a1.jpg") || !strings.Contains(report, "a3.jpg") {
		t.Fatalf("report missing failed filenames:\n%s", report)
	}

	// The report reflects the settled aggregate, so it must be the last
	// entry written, after every asset pipeline has finished.
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}
	if last := zr.File[len(zr.File)-1].Name; last != ReportEntryName {
		t.Fatalf("last archive entry = %q, want %q", last, ReportEntryName)
	}
}

func TestStreamProfileRewritesExtensions(t *testing.T) {
	cols, profiles := exportFixture()
	tr := &fakeTransformer{profileFormat: "webp"}
	svc := newTestService(cols, profiles, &trackingFetcher{}, tr)

	req := validRequest()
	req.OutputProfileID = "web"
	plan, err := svc.Prepare(context.Background(), req, "client-1", "")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.Stream(context.Background(), plan, &buf); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	for name := range readArchive(t, buf.Bytes()) {
		if !strings.HasSuffix(name, ".webp") {
			t.Fatalf("entry %q does not carry the profile format extension", name)
		}
	}
}

func TestStreamAbortsOnCancelledConsumer(t *testing.T) {
	cols, profiles := exportFixture()
	svc := newTestService(cols, profiles, &trackingFetcher{delay: 20 * time.Millisecond}, nil)

	plan, err := svc.Prepare(context.Background(), validRequest(), "client-1", "")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	if err := svc.Stream(ctx, plan, &buf); err == nil {
		t.Fatal("Stream succeeded under a cancelled context")
	}
}
