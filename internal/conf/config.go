// Package conf loads and holds the application settings. It defines the
// settings struct and functions to load the settings with viper.
package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// MainSettings contains the basic application settings.
type MainSettings struct {
	Name string // name of this node, used as user agent suffix
	Log  struct {
		Path  string // path to log file directory
		Level string // debug, info, warn, error
	}
}

// WebServerSettings contains settings for the HTTP API server.
type WebServerSettings struct {
	Enabled bool   // true to enable the API server
	Port    string // port to listen on
	Debug   bool   // true to enable debug logging of requests
}

// UpstreamSettings contains settings for the iNaturalist API client.
type UpstreamSettings struct {
	BaseURL  string        // base URL of the iNaturalist API
	Timeout  time.Duration // per request timeout
	CacheTTL time.Duration // time-to-live of cached responses
	Locale   string        // default locale for taxon names
	PlaceID  int           // preferred place for search ranking
	TaxonID  int           // taxon subtree to search within
}

// SQLiteSettings contains SQLite datastore settings.
type SQLiteSettings struct {
	Enabled bool
	Path    string // path to the database file
}

// MySQLSettings contains MySQL datastore settings.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// OutputSettings groups the supported datastore backends.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// Settings is the root configuration type for the application. It is
// constructed once by the process entry point and passed into services,
// there are no mutable globals.
type Settings struct {
	Debug     bool
	Main      MainSettings
	WebServer WebServerSettings
	Upstream  UpstreamSettings
	Output    OutputSettings
}

// Load reads the configuration file (if any) and returns the settings.
// Missing file is not an error, defaults apply.
func Load() (*Settings, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/insectos-go")
	viper.AddConfigPath("/etc/insectos-go")

	viper.SetEnvPrefix("insectos")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !asConfigFileNotFound(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return settings, nil
}

func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

func setDefaults() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "insectos-go")
	viper.SetDefault("main.log.path", "logs")
	viper.SetDefault("main.log.level", "info")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("upstream.baseurl", "https://api.inaturalist.org/v1")
	viper.SetDefault("upstream.timeout", 30*time.Second)
	viper.SetDefault("upstream.cachettl", 24*time.Hour)
	viper.SetDefault("upstream.locale", "es")
	viper.SetDefault("upstream.placeid", 7043)  // Panama
	viper.SetDefault("upstream.taxonid", 47158) // class Insecta

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "insectos.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
