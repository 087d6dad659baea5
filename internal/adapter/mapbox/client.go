// Package mapbox resolves US state names from coordinates with the Mapbox
// reverse geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements algorithm.StateResolver using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ResolveState returns the US state containing the coordinates, or "" when the
// point is outside any US state.
func (c *Client) ResolveState(ctx context.Context, lat, lon float64) (string, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"region"},
	}

	f, err := c.doRequest(ctx, u+"?"+params.Encode())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return "", err
	}
	if f == nil || !strings.HasPrefix(strings.ToUpper(f.Properties.ShortCode), "US-") {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		c.logger.Debug("no US state at coordinates", "lat", lat, "lon", lon)
		return "", nil
	}
	c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	return f.Text, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (*feature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		return nil, nil
	}
	return &mapboxResp.Features[0], nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Text       string     `json:"text"`
	PlaceName  string     `json:"place_name"`
	Properties properties `json:"properties"`
}

type properties struct {
	ShortCode string `json:"short_code"` // e.g. "US-CA"
}
