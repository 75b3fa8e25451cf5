package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wwada/optiroute/config"
)

func geocodingServiceFor(t *testing.T, handler http.HandlerFunc, minInterval time.Duration) *GeocodingService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.EnvConfig{}
	cfg.Nominatim.BaseURL = server.URL
	cfg.Nominatim.UserAgent = "optiroute-test"
	cfg.Nominatim.CountryCode = "pl"
	cfg.Nominatim.MinInterval = minInterval
	cfg.Nominatim.Timeout = time.Second

	return InitGeocodingService(cfg)
}

func TestSearchParsesCandidates(t *testing.T) {
	var gotQuery, gotAgent string
	svc := geocodingServiceFor(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"51.105","lon":"17.036"}]`))
	}, 0)

	candidates, err := svc.Search(context.Background(), "Rynek 9, Wrocław")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 51.105, candidates[0].Latitude)
	assert.Equal(t, 17.036, candidates[0].Longitude)
	assert.Equal(t, "Rynek 9, Wrocław", gotQuery)
	assert.Equal(t, "optiroute-test", gotAgent)
}

func TestSearchReturnsEmptyForUnknownAddress(t *testing.T) {
	svc := geocodingServiceFor(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, 0)

	candidates, err := svc.Search(context.Background(), "Nieistniejący Adres")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSearchFailsOnServerError(t *testing.T) {
	svc := geocodingServiceFor(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "blocked", http.StatusTooManyRequests)
	}, 0)

	_, err := svc.Search(context.Background(), "addr")
	require.ErrorContains(t, err, "429")
}

func TestSearchFailsOnMalformedPayload(t *testing.T) {
	svc := geocodingServiceFor(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"not-a-number","lon":"17"}]`))
	}, 0)

	_, err := svc.Search(context.Background(), "addr")
	require.ErrorContains(t, err, "malformed")
}

func TestSearchEnforcesMinimumSpacing(t *testing.T) {
	svc := geocodingServiceFor(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, 80*time.Millisecond)

	start := time.Now()
	_, err := svc.Search(context.Background(), "first")
	require.NoError(t, err)
	_, err = svc.Search(context.Background(), "second")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond,
		"back-to-back provider calls must honor the minimum spacing")
}
