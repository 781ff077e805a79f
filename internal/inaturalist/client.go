// Package inaturalist provides a read-only client for the iNaturalist API
// with TTL cached responses. The client is constructed once per process and
// shared by all requests for its lifetime.
package inaturalist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/insectos/insectos-go/internal/errors"
	"github.com/insectos/insectos-go/internal/logging"
	"github.com/insectos/insectos-go/internal/observability"
	"github.com/insectos/insectos-go/internal/ttlcache"
)

// Package-level logger specific to the inaturalist service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "inaturalist.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "inaturalist", serviceLevelVar)
	if err != nil {
		// Fallback: log error to standard log and disable service logging
		log.Printf("Failed to initialize inaturalist file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "inaturalist")
		closeLogger = func() error { return nil }
	}
}

// Client provides the three read operations against the iNaturalist API.
// Successful responses are cached as opaque JSON structures keyed by
// normalized request parameters; failures are never cached.
type Client struct {
	config      Config
	httpClient  *http.Client
	cache       *ttlcache.Cache[map[string]any]
	promMetrics *observability.UpstreamMetrics

	metrics struct {
		mu            sync.Mutex
		apiCalls      int64
		cacheHits     int64
		cacheMisses   int64
		apiErrors     int64
		totalDuration time.Duration
	}
}

// NewClient creates a new iNaturalist API client. The prometheus metrics
// argument may be nil, counters are then kept only in the local metrics struct.
func NewClient(config Config, promMetrics *observability.UpstreamMetrics) *Client {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.Locale == "" {
		config.Locale = defaults.Locale
	}
	if config.PlaceID == 0 {
		config.PlaceID = defaults.PlaceID
	}
	if config.TaxonID == 0 {
		config.TaxonID = defaults.TaxonID
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	client := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		cache:       ttlcache.New[map[string]any](config.CacheTTL),
		promMetrics: promMetrics,
	}

	logger.Info("iNaturalist client initialized",
		"base_url", config.BaseURL,
		"cache_ttl", config.CacheTTL,
		"timeout", config.Timeout,
		"locale", config.Locale)

	return client
}

// Close cleans up client resources.
func (c *Client) Close() {
	logger.Info("Closing iNaturalist client")
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing inaturalist logger: %v", err)
		}
	}
}

// Search performs a text search over insect taxa. Results are ranked by
// observation count and restricted to active species and subspecies.
func (c *Client) Search(ctx context.Context, query, locale string, page, perPage int) (map[string]any, error) {
	locale = c.localeOrDefault(locale)
	cacheKey := searchKey(query, locale, page, perPage)

	if cached, found := c.cache.Get(cacheKey); found {
		c.recordCacheHit("search", cacheKey)
		return cached, nil
	}
	c.recordCacheMiss("search")

	params := url.Values{}
	params.Set("q", query)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	params.Set("taxon_id", strconv.Itoa(c.config.TaxonID))
	params.Set("locale", locale)
	params.Set("preferred_place_id", strconv.Itoa(c.config.PlaceID))
	params.Set("order_by", "observations_count")
	params.Set("is_active", "true")
	params.Set("rank", "species,subspecies")

	result, err := c.doRequest(ctx, "search", c.config.BaseURL+"/taxa?"+params.Encode())
	if err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, result)
	return result, nil
}

// SpeciesInfo retrieves detailed information about a single taxon.
func (c *Client) SpeciesInfo(ctx context.Context, taxonID int, locale string) (map[string]any, error) {
	locale = c.localeOrDefault(locale)
	cacheKey := speciesKey(taxonID, locale)

	if cached, found := c.cache.Get(cacheKey); found {
		c.recordCacheHit("species", cacheKey)
		return cached, nil
	}
	c.recordCacheMiss("species")

	params := url.Values{}
	params.Set("locale", locale)
	params.Set("preferred_place_id", strconv.Itoa(c.config.PlaceID))

	result, err := c.doRequest(ctx, "species",
		fmt.Sprintf("%s/taxa/%d?%s", c.config.BaseURL, taxonID, params.Encode()))
	if err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, result)
	return result, nil
}

// ObservationsByLocation retrieves verifiable insect observations near a
// coordinate, newest first. The radius is in kilometers.
func (c *Client) ObservationsByLocation(ctx context.Context, lat, lng float64, radius int, locale string, page, perPage int) (map[string]any, error) {
	locale = c.localeOrDefault(locale)
	cacheKey := nearbyKey(lat, lng, radius, locale, page, perPage)

	if cached, found := c.cache.Get(cacheKey); found {
		c.recordCacheHit("nearby", cacheKey)
		return cached, nil
	}
	c.recordCacheMiss("nearby")

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(radius))
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	params.Set("taxon_id", strconv.Itoa(c.config.TaxonID))
	params.Set("locale", locale)
	params.Set("preferred_place_id", strconv.Itoa(c.config.PlaceID))
	params.Set("order_by", "observed_on")
	params.Set("verifiable", "true")

	result, err := c.doRequest(ctx, "nearby", c.config.BaseURL+"/observations?"+params.Encode())
	if err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, result)
	return result, nil
}

// doRequest performs a GET request and decodes the JSON response. Any
// network failure, non-2xx status or parse failure is returned as a typed
// error and is never written to the cache.
func (c *Client) doRequest(ctx context.Context, operation, requestURL string) (map[string]any, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	c.metrics.mu.Lock()
	c.metrics.apiCalls++
	c.metrics.mu.Unlock()
	if c.promMetrics != nil {
		c.promMetrics.RequestsTotal.WithLabelValues(operation).Inc()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		c.recordError(operation)
		return nil, errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Context("operation", operation).
			Component("inaturalist").
			Build()
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordError(operation)
		category := errors.CategoryNetwork
		if reqCtx.Err() != nil {
			category = errors.CategoryTimeout
		}
		logger.Error("iNaturalist API request failed",
			"error", err,
			"operation", operation,
			"url", requestURL)
		return nil, errors.Newf("HTTP request failed: %w", err).
			Category(category).
			Context("operation", operation).
			Component("inaturalist").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordError(operation)
		return nil, errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryNetwork).
			Context("operation", operation).
			Context("status_code", resp.StatusCode).
			Component("inaturalist").
			Build()
	}

	if resp.StatusCode >= 400 {
		c.recordError(operation)

		var apiErr Error
		detail := string(bodyBytes)
		if err := json.Unmarshal(bodyBytes, &apiErr); err == nil && apiErr.Message != "" {
			detail = apiErr.Message
		}

		logger.Warn("iNaturalist API error response",
			"status_code", resp.StatusCode,
			"operation", operation,
			"detail", detail)

		return nil, errors.Newf("iNaturalist API error (status %d): %s", resp.StatusCode, detail).
			Category(categoryForStatus(resp.StatusCode)).
			Context("status_code", resp.StatusCode).
			Context("operation", operation).
			Component("inaturalist").
			Build()
	}

	var result map[string]any
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		c.recordError(operation)
		logger.Error("Failed to parse iNaturalist API response",
			"error", err,
			"operation", operation,
			"response_size", len(bodyBytes))
		return nil, errors.Newf("failed to parse response: %w", err).
			Category(errors.CategoryNetwork).
			Context("operation", operation).
			Component("inaturalist").
			Build()
	}

	duration := time.Since(start)
	c.metrics.mu.Lock()
	c.metrics.totalDuration += duration
	c.metrics.mu.Unlock()
	if c.promMetrics != nil {
		c.promMetrics.RequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}

	logger.Debug("iNaturalist API request successful",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
		"response_size", len(bodyBytes))

	return result, nil
}

func (c *Client) localeOrDefault(locale string) string {
	if locale == "" {
		return c.config.Locale
	}
	return locale
}

func (c *Client) recordCacheHit(operation, cacheKey string) {
	c.metrics.mu.Lock()
	c.metrics.cacheHits++
	c.metrics.mu.Unlock()
	if c.promMetrics != nil {
		c.promMetrics.CacheHitsTotal.WithLabelValues(operation).Inc()
	}
	logger.Debug("iNaturalist cache hit",
		"operation", operation,
		"cache_key", cacheKey)
}

func (c *Client) recordCacheMiss(operation string) {
	c.metrics.mu.Lock()
	c.metrics.cacheMisses++
	c.metrics.mu.Unlock()
	if c.promMetrics != nil {
		c.promMetrics.CacheMissesTotal.WithLabelValues(operation).Inc()
	}
}

func (c *Client) recordError(operation string) {
	c.metrics.mu.Lock()
	c.metrics.apiErrors++
	c.metrics.mu.Unlock()
	if c.promMetrics != nil {
		c.promMetrics.RequestErrors.WithLabelValues(operation).Inc()
	}
}

// ClearCache removes all cached responses.
func (c *Client) ClearCache() {
	c.cache.Clear()
	logger.Info("iNaturalist cache cleared")
}

// CacheStats returns the number of cached items and the configured TTL for
// the cache administration surface.
func (c *Client) CacheStats() (items int, ttl time.Duration) {
	return c.cache.Size(), c.cache.TTL()
}

// Metrics returns a snapshot of the client counters.
func (c *Client) Metrics() Metrics {
	c.metrics.mu.Lock()
	defer c.metrics.mu.Unlock()

	m := Metrics{
		APICalls:      c.metrics.apiCalls,
		CacheHits:     c.metrics.cacheHits,
		CacheMisses:   c.metrics.cacheMisses,
		APIErrors:     c.metrics.apiErrors,
		TotalDuration: c.metrics.totalDuration,
	}
	if m.APICalls > 0 {
		m.AvgDuration = time.Duration(int64(m.TotalDuration) / m.APICalls)
	}
	return m
}

// categoryForStatus determines the error category for an HTTP status code.
func categoryForStatus(statusCode int) errors.ErrorCategory {
	switch statusCode {
	case http.StatusNotFound:
		return errors.CategoryNotFound
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return errors.CategoryValidation
	default:
		return errors.CategoryNetwork
	}
}
