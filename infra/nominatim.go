package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/wwada/optiroute/config"
	"github.com/wwada/optiroute/entity"
)

// GeocodingService is the Nominatim client. Nominatim's usage policy caps
// clients at one request per second; Throttle enforces that spacing
// process-wide, shared by every caller of the same instance.
type GeocodingService struct {
	BaseURL     string
	UserAgent   string
	CountryCode string

	httpClient  *http.Client
	minInterval time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

type nominatimCandidate struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func InitGeocodingService(cfg *config.EnvConfig) *GeocodingService {
	return &GeocodingService{
		BaseURL:     cfg.Nominatim.BaseURL,
		UserAgent:   cfg.Nominatim.UserAgent,
		CountryCode: cfg.Nominatim.CountryCode,
		httpClient:  &http.Client{Timeout: cfg.Nominatim.Timeout},
		minInterval: cfg.Nominatim.MinInterval,
	}
}

func (s *GeocodingService) throttle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wait := s.minInterval - time.Since(s.lastRequest); wait > 0 {
		time.Sleep(wait)
	}
	s.lastRequest = time.Now()
}

// Search queries Nominatim for an address and returns the candidate
// coordinates in provider order. An empty slice means the address is
// unknown to the provider; an error means the provider call itself failed.
func (s *GeocodingService) Search(ctx context.Context, address string) ([]entity.Coordinates, error) {
	s.throttle()

	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")
	if s.CountryCode != "" {
		params.Set("countrycodes", s.CountryCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoding request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("geocoding provider returned %d: %s", resp.StatusCode, string(raw))
	}

	var candidates []nominatimCandidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return nil, fmt.Errorf("failed to decode geocoding response: %w", err)
	}

	results := make([]entity.Coordinates, 0, len(candidates))
	for _, c := range candidates {
		lat, err := strconv.ParseFloat(c.Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed latitude %q in geocoding response: %w", c.Lat, err)
		}
		lon, err := strconv.ParseFloat(c.Lon, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed longitude %q in geocoding response: %w", c.Lon, err)
		}
		results = append(results, entity.Coordinates{Latitude: lat, Longitude: lon})
	}

	return results, nil
}
