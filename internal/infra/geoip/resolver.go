package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when the resolver is not initialized.
var ErrUnavailable = errors.New("geoip resolver unavailable")

// CountryResolver resolves ISO country codes from IP addresses. The export
// recorder uses it to enrich activity-log rows; a nil resolver simply leaves
// the country blank.
type CountryResolver interface {
	CountryCode(ip string) (string, error)
}

// Resolver provides country lookups backed by a MaxMind GeoIP2 database.
type Resolver struct {
	reader *geoip2.Reader
}

// NewResolver opens the GeoIP database at the given path. An empty path
// returns nil, which disables country resolution without error.
func NewResolver(path string) (CountryResolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// CountryCode returns the ISO country code for the provided IP. Private and
// loopback addresses resolve to an empty code; callers behind a proxy that
// strips the client address get no country rather than a lookup error.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() {
		return "", nil
	}
	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	if record == nil || record.Country.IsoCode == "" {
		return "", nil
	}
	return record.Country.IsoCode, nil
}

// Close closes the underlying database reader.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
