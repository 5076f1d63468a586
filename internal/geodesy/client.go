// Package geodesy talks to the external REFRAME-style transformation service
// and converts locally resolved heights into canonical ellipsoidal heights.
package geodesy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"geoimport_backend/platform/config"
	"geoimport_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	endpointLHN95ToBessel = "lhn95tobessel"
	endpointLV95ToWGS84   = "lv95towgs84"
)

// Client is a typed HTTP client for the geodesy transformation service.
// Calls are idempotent, rate limited, and retried a bounded number of times
// on transient failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	log        *logger.Logger
}

func NewClient(cfg config.GeodesyConfig, log *logger.Logger) *Client {
	limit := cfg.GetGeodesyRateLimit()
	if limit <= 0 {
		limit = 20
	}

	return &Client{
		baseURL:    cfg.GetGeodesyBaseURL(),
		httpClient: &http.Client{Timeout: cfg.GetGeodesyTimeout()},
		limiter:    rate.NewLimiter(rate.Limit(limit), int(limit)),
		maxRetries: cfg.GetGeodesyMaxRetries(),
		log:        log,
	}
}

// LHN95ToBessel converts a local orthometric height at the given LV95
// position into the intermediate ellipsoidal height on the Bessel ellipsoid.
func (c *Client) LHN95ToBessel(ctx context.Context, easting, northing, altitude float64) (float64, error) {
	resp, err := c.get(ctx, endpointLHN95ToBessel, easting, northing, altitude)
	if err != nil {
		return 0, err
	}

	h, err := resp.Altitude.Float64()
	if err != nil {
		return 0, fmt.Errorf("%s: missing or non-numeric altitude in response", endpointLHN95ToBessel)
	}
	return h, nil
}

// LV95ToWGS84 reprojects an LV95 position plus intermediate ellipsoidal
// height into the canonical global frame.
func (c *Client) LV95ToWGS84(ctx context.Context, easting, northing, altitude float64) (WGS84Position, error) {
	resp, err := c.get(ctx, endpointLV95ToWGS84, easting, northing, altitude)
	if err != nil {
		return WGS84Position{}, err
	}

	lon, lonErr := resp.Easting.Float64()
	lat, latErr := resp.Northing.Float64()
	h, hErr := resp.Altitude.Float64()
	if lonErr != nil || latErr != nil || hErr != nil {
		return WGS84Position{}, fmt.Errorf("%s: missing or non-numeric fields in response", endpointLV95ToWGS84)
	}

	return WGS84Position{Longitude: lon, Latitude: lat, Ellipsoidal: h}, nil
}

func (c *Client) get(ctx context.Context, endpoint string, easting, northing, altitude float64) (*reframeResponse, error) {
	params := url.Values{}
	params.Add("easting", strconv.FormatFloat(easting, 'f', -1, 64))
	params.Add("northing", strconv.FormatFloat(northing, 'f', -1, 64))
	params.Add("altitude", strconv.FormatFloat(altitude, 'f', -1, 64))
	params.Add("format", "json")

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, retryable, err := c.doOnce(ctx, endpoint, reqURL)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, lastErr
}

// doOnce performs a single exchange. The second return value reports whether
// the failure is transient and worth retrying.
func (c *Client) doOnce(ctx context.Context, endpoint, reqURL string) (*reframeResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.GeodesyError(endpoint, err)
		return nil, ctx.Err() == nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.log.GeodesyCall(endpoint, resp.StatusCode, float64(time.Since(start).Milliseconds()))

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%s: upstream status %d", endpoint, resp.StatusCode)
		c.log.GeodesyError(endpoint, err)
		return nil, resp.StatusCode >= http.StatusInternalServerError, err
	}

	var decoded reframeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.log.GeodesyError(endpoint, err)
		return nil, false, fmt.Errorf("%s: decode response: %w", endpoint, err)
	}

	return &decoded, false, nil
}
