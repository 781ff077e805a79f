package inaturalist

import "time"

// Config holds the iNaturalist client configuration
type Config struct {
	BaseURL   string        // API base URL
	Timeout   time.Duration // per request timeout
	CacheTTL  time.Duration // time-to-live of cached responses
	Locale    string        // default locale for taxon names
	PlaceID   int           // preferred place for search ranking
	TaxonID   int           // taxon subtree to search within
	UserAgent string        // User-Agent header sent with every request
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://api.inaturalist.org/v1",
		Timeout:   30 * time.Second,
		CacheTTL:  24 * time.Hour,
		Locale:    "es",
		PlaceID:   7043,  // Panama
		TaxonID:   47158, // class Insecta
		UserAgent: "InsectosApp/1.0",
	}
}

// Error represents an error response from the iNaturalist API
type Error struct {
	Message string `json:"error"`
	Status  int    `json:"status"`
}

// Metrics represents client performance counters
type Metrics struct {
	APICalls      int64         `json:"api_calls"`
	CacheHits     int64         `json:"cache_hits"`
	CacheMisses   int64         `json:"cache_misses"`
	APIErrors     int64         `json:"api_errors"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
}
