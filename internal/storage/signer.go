package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// URLSigner issues short-lived download URLs for stored objects.
type URLSigner interface {
	ResolveLocator(locator string) (string, error)
	SignedDownloadURL(key string, ttl time.Duration) (string, error)
}

// HMACSigner signs object keys against a delivery base URL. The gateway in
// front of the object store verifies the expiry and signature query
// parameters before serving the bytes.
type HMACSigner struct {
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewHMACSigner builds a signer for the given delivery base URL.
func NewHMACSigner(baseURL, secret string) (*HMACSigner, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("storage: base url is required")
	}
	if secret == "" {
		return nil, errors.New("storage: signing secret is required")
	}
	return &HMACSigner{baseURL: baseURL, secret: []byte(secret), now: time.Now}, nil
}

// ResolveLocator normalizes a stored locator into an object key. Accepted
// forms: bare keys, s3://bucket/key, and absolute http(s) URLs whose path
// is the key.
func (s *HMACSigner) ResolveLocator(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", errors.New("storage: empty locator")
	}
	if strings.HasPrefix(locator, "s3://") {
		rest := strings.TrimPrefix(locator, "s3://")
		if i := strings.IndexByte(rest, '/'); i > 0 && i < len(rest)-1 {
			return rest[i+1:], nil
		}
		return "", fmt.Errorf("storage: malformed locator %q", locator)
	}
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		u, err := url.Parse(locator)
		if err != nil {
			return "", fmt.Errorf("storage: malformed locator %q: %w", locator, err)
		}
		key := strings.TrimLeft(u.Path, "/")
		if key == "" {
			return "", fmt.Errorf("storage: malformed locator %q", locator)
		}
		return key, nil
	}
	if strings.Contains(locator, "..") {
		return "", fmt.Errorf("storage: malformed locator %q", locator)
	}
	return strings.TrimLeft(locator, "/"), nil
}

// SignedDownloadURL returns a time-limited URL for the object key.
func (s *HMACSigner) SignedDownloadURL(key string, ttl time.Duration) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	expires := s.now().Add(ttl).Unix()
	sig := s.sign(key, expires)
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", sig)
	return s.baseURL + "/" + key + "?" + q.Encode(), nil
}

// Verify checks a signature produced by SignedDownloadURL. Exposed for the
// delivery gateway and for tests.
func (s *HMACSigner) Verify(key string, expires int64, sig string) bool {
	if s.now().Unix() > expires {
		return false
	}
	expected := s.sign(key, expires)
	return hmac.Equal([]byte(expected), []byte(sig))
}

func (s *HMACSigner) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
