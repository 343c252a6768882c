package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// CountryUnknown is what every failed or skipped lookup resolves to.
// Enrichment is best-effort and must never make a beacon fail.
const CountryUnknown = "Unknown"

// GeoService resolves a client address to a country name via an
// ip-api-compatible HTTP endpoint. Results are cached and outbound lookups are
// throttled to stay inside the free-tier budget of the public resolvers.
type GeoService struct {
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
	lookupURL  string
}

// NewGeoService creates a geo lookup service against the given base URL
// (the address is appended as a path segment, ip-api style).
func NewGeoService(lookupURL string) *GeoService {
	return &GeoService{
		httpClient: &http.Client{Timeout: 2 * time.Second},
		cache:      cache.New(24*time.Hour, 1*time.Hour),
		limiter:    rate.NewLimiter(rate.Every(1500*time.Millisecond), 5), // ~40/min
		lookupURL:  lookupURL,
	}
}

// Country returns the country for an address, or CountryUnknown. It never
// returns an error: private, loopback and unparseable addresses short-circuit,
// and lookup failures of any kind degrade to CountryUnknown.
func (g *GeoService) Country(ctx context.Context, ip string) string {
	if !isPublicIP(ip) {
		return CountryUnknown
	}

	if cached, found := g.cache.Get(ip); found {
		if country, ok := cached.(string); ok {
			return country
		}
	}

	if !g.limiter.Allow() {
		// Over the outbound budget; skip rather than queue behind a beacon.
		return CountryUnknown
	}

	country := g.lookup(ctx, ip)
	if country != CountryUnknown {
		g.cache.Set(ip, country, cache.DefaultExpiration)
	}
	return country
}

func (g *GeoService) lookup(ctx context.Context, ip string) string {
	url := fmt.Sprintf("%s/%s?fields=status,country", g.lookupURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return CountryUnknown
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		slog.Debug("geo lookup failed", "error", err)
		return CountryUnknown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CountryUnknown
	}

	var body struct {
		Status  string `json:"status"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return CountryUnknown
	}
	if body.Status == "fail" || body.Country == "" {
		return CountryUnknown
	}
	return body.Country
}

// isPublicIP reports whether an address is worth sending to the resolver.
func isPublicIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() ||
		parsed.IsLinkLocalUnicast() || parsed.IsLinkLocalMulticast() {
		return false
	}
	return true
}
