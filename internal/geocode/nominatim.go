package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// NominatimConfig configures a NominatimClient.
type NominatimConfig struct {
	BaseURL       string
	UserAgent     string
	CountryCodes  string        // comma-separated ISO codes, empty for worldwide
	Timeout       time.Duration // per request, including rate limiter wait
	RatePerSecond float64       // outbound requests per second, <= 0 disables limiting
}

// Defaults for NominatimConfig.
const (
	DefaultNominatimURL  = "https://nominatim.openstreetmap.org"
	DefaultUserAgent     = "Civitas/1.0"
	DefaultTimeout       = 10 * time.Second
	DefaultRatePerSecond = 1.0
)

// maxResponseBytes bounds the decoded upstream body.
const maxResponseBytes = 1 << 20

// NominatimClient queries a Nominatim-compatible search API.
type NominatimClient struct {
	cfg     NominatimConfig
	http    *http.Client
	limiter *rate.Limiter
	metrics *Metrics
}

// NewNominatimClient creates a client. Zero config fields take defaults.
// metrics may be nil.
func NewNominatimClient(cfg NominatimConfig, metrics *Metrics) *NominatimClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNominatimURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &NominatimClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		metrics: metrics,
	}
	if cfg.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return c
}

type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Type        string `json:"type"`
}

// Search implements Geocoder.
func (c *NominatimClient) Search(ctx context.Context, query string, limit int) (places []Place, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(SourceNominatim, err, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("addressdetails", "1")
	if c.cfg.CountryCodes != "" {
		params.Set("countrycodes", c.cfg.CountryCodes)
	}

	var raw []nominatimPlace
	if err := c.get(ctx, "/search", params, &raw); err != nil {
		return nil, err
	}

	places = make([]Place, 0, len(raw))
	for _, r := range raw {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lon, lonErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		typ := r.Type
		if typ == "" {
			typ = "unknown"
		}
		places = append(places, Place{
			DisplayName: r.DisplayName,
			Lat:         lat,
			Lon:         lon,
			Type:        typ,
			Confidence:  NominatimConfidence,
			Source:      SourceNominatim,
		})
	}
	return places, nil
}

// Reverse returns the display name for a coordinate.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (place Place, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(SourceNominatim, err, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("zoom", "10")

	var raw nominatimPlace
	if err := c.get(ctx, "/reverse", params, &raw); err != nil {
		return Place{}, err
	}
	place = Place{DisplayName: raw.DisplayName, Lat: lat, Lon: lon, Type: raw.Type, Confidence: NominatimConfidence, Source: SourceNominatim}
	if v, err := strconv.ParseFloat(raw.Lat, 64); err == nil {
		place.Lat = v
	}
	if v, err := strconv.ParseFloat(raw.Lon, 64); err == nil {
		place.Lon = v
	}
	return place, nil
}

func (c *NominatimClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %v", ErrUpstream, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return nil
}
