package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"gallery/internal/domain"
	"gallery/internal/storage"
)

// AssetFetcher retrieves one remote asset's bytes.
type AssetFetcher interface {
	Fetch(ctx context.Context, ref domain.AssetRef) ([]byte, error)
}

// FetcherOptions tunes the retry/timeout policy.
type FetcherOptions struct {
	// Retries is the number of additional attempts after the first.
	Retries int
	// Timeout is the hard wall-clock limit per attempt.
	Timeout time.Duration
	// SignedURLTTL is passed to the signer when resolving download URLs.
	SignedURLTTL time.Duration
	// Backoff returns the delay before retry attempt n (1-based). Nil uses
	// 2^attempt seconds.
	Backoff func(attempt int) time.Duration

	HTTPClient *http.Client
}

// Fetcher downloads assets through short-lived signed URLs with bounded
// retries. A single Fetcher serves concurrent pipelines; it keeps no
// per-call state.
type Fetcher struct {
	signer  storage.URLSigner
	client  *http.Client
	retries int
	timeout time.Duration
	ttl     time.Duration
	backoff func(attempt int) time.Duration
	logger  zerolog.Logger
}

// NewFetcher builds a Fetcher. Zero option fields get the service defaults
// (2 retries, 30s per attempt).
func NewFetcher(signer storage.URLSigner, logger zerolog.Logger, opts FetcherOptions) *Fetcher {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = 5 * time.Minute
	}
	if opts.Backoff == nil {
		opts.Backoff = func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		}
	}
	client := opts.HTTPClient
	if client == nil {
		// Per-attempt deadlines come from the request context.
		client = &http.Client{}
	}
	return &Fetcher{
		signer:  signer,
		client:  client,
		retries: opts.Retries,
		timeout: opts.Timeout,
		ttl:     opts.SignedURLTTL,
		backoff: opts.Backoff,
		logger:  logger,
	}
}

// Fetch resolves a signed URL for the asset and retrieves it. Locator
// resolution failures are terminal; retrieval failures are retried with
// exponential backoff until attempts are exhausted.
func (f *Fetcher) Fetch(ctx context.Context, ref domain.AssetRef) ([]byte, error) {
	key, err := f.signer.ResolveLocator(ref.RemoteLocator)
	if err != nil {
		return nil, fmt.Errorf("could not resolve location: %w", err)
	}
	url, err := f.signer.SignedDownloadURL(key, f.ttl)
	if err != nil {
		return nil, fmt.Errorf("could not resolve location: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.backoff(attempt)):
			}
			f.logger.Debug().Str("asset", ref.ID).Int("attempt", attempt).Msg("retrying fetch")
		}

		data, err := f.attempt(ctx, url)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch failed after %d attempts: %w", f.retries+1, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
