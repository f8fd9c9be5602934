// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/vidfeed.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultDatabaseMigrationsPath    = "file://./migrations"
	defaultDatabaseEnableWAL         = true
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultCatalogBaseURL            = "http://localhost:5000/api"
	defaultCatalogTimeout            = 10 * time.Second
	defaultCatalogPageSize           = 20
	defaultSearchDebounce            = 300 * time.Millisecond
	defaultURLSyncDebounce           = 300 * time.Millisecond
	defaultScrollThreshold           = 500
	defaultScrollEventsPerSecond     = 20
	defaultSessionIdleTimeout        = 30 * time.Minute
	defaultSessionCleanupInterval    = time.Minute
	defaultLocales                   = "en,ar"
	defaultNotificationPollInterval  = 30 * time.Second
	defaultNotificationRetries       = 2
	defaultNotificationRecentLimit   = 5
	defaultBannerRotateInterval      = 5 * time.Second
	defaultPlaybackSDKURL            = "https://www.youtube.com/iframe_api"
	defaultPlaybackLoadTimeout       = 15 * time.Second
	defaultPlaybackCommandTimeout    = 5 * time.Second
	envPrefix                        = "VIDFEED"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Logging       LoggingConfig
	Catalog       CatalogConfig
	Feed          FeedConfig
	Notifications NotificationsConfig
	Banners       BannersConfig
	Playback      PlaybackConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	MigrationsPath    string
	EnableWAL         bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// CatalogConfig points at the external video/category/banner/notification store
type CatalogConfig struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

// FeedConfig holds feed query controller and scroll trigger tuning
type FeedConfig struct {
	SearchDebounce         time.Duration
	URLSyncDebounce        time.Duration
	ScrollThreshold        int
	ScrollEventsPerSecond  float64
	SessionIdleTimeout     time.Duration
	SessionCleanupInterval time.Duration
	Locales                []string
}

// NotificationsConfig holds notification polling configuration
type NotificationsConfig struct {
	PollInterval time.Duration
	Retries      int
	RecentLimit  int
}

// BannersConfig holds banner carousel configuration
type BannersConfig struct {
	RotateInterval time.Duration
}

// PlaybackConfig holds embedded player platform configuration
type PlaybackConfig struct {
	SDKURL         string
	Origin         string
	LoadTimeout    time.Duration
	CommandTimeout time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	cfg, _, err := load()
	return cfg, err
}

// Watch loads the configuration and invokes onChange with the re-validated
// configuration whenever the config file changes. Invalid reloads are reported
// through onError and otherwise ignored.
func Watch(onChange func(*Config), onError func(error)) (*Config, error) {
	cfg, v, err := load()
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(next)
	})
	v.WatchConfig()

	return cfg, nil
}

func load() (*Config, *viper.Viper, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/vidfeed")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.migrationspath", defaultDatabaseMigrationsPath)
	v.SetDefault("database.enablewal", defaultDatabaseEnableWAL)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("catalog.baseurl", defaultCatalogBaseURL)
	v.SetDefault("catalog.timeout", defaultCatalogTimeout)
	v.SetDefault("catalog.pagesize", defaultCatalogPageSize)

	v.SetDefault("feed.searchdebounce", defaultSearchDebounce)
	v.SetDefault("feed.urlsyncdebounce", defaultURLSyncDebounce)
	v.SetDefault("feed.scrollthreshold", defaultScrollThreshold)
	v.SetDefault("feed.scrolleventspersecond", defaultScrollEventsPerSecond)
	v.SetDefault("feed.sessionidletimeout", defaultSessionIdleTimeout)
	v.SetDefault("feed.sessioncleanupinterval", defaultSessionCleanupInterval)
	v.SetDefault("feed.locales", strings.Split(defaultLocales, ","))

	v.SetDefault("notifications.pollinterval", defaultNotificationPollInterval)
	v.SetDefault("notifications.retries", defaultNotificationRetries)
	v.SetDefault("notifications.recentlimit", defaultNotificationRecentLimit)

	v.SetDefault("banners.rotateinterval", defaultBannerRotateInterval)

	v.SetDefault("playback.sdkurl", defaultPlaybackSDKURL)
	v.SetDefault("playback.origin", "")
	v.SetDefault("playback.loadtimeout", defaultPlaybackLoadTimeout)
	v.SetDefault("playback.commandtimeout", defaultPlaybackCommandTimeout)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if _, err := url.ParseRequestURI(c.Catalog.BaseURL); err != nil {
		return fmt.Errorf("invalid catalog base url %q: %w", c.Catalog.BaseURL, err)
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("invalid catalog timeout: %v (must be > 0)", c.Catalog.Timeout)
	}
	if c.Catalog.PageSize < 1 || c.Catalog.PageSize > 100 {
		return fmt.Errorf("invalid catalog page size: %d (must be between 1 and 100)", c.Catalog.PageSize)
	}

	if c.Feed.SearchDebounce <= 0 || c.Feed.URLSyncDebounce <= 0 {
		return fmt.Errorf("invalid debounce: search=%v url_sync=%v (must be > 0)", c.Feed.SearchDebounce, c.Feed.URLSyncDebounce)
	}
	if c.Feed.ScrollThreshold <= 0 {
		return fmt.Errorf("invalid scroll threshold: %d (must be > 0)", c.Feed.ScrollThreshold)
	}
	if c.Feed.ScrollEventsPerSecond < 0 {
		return fmt.Errorf("invalid scroll events per second: %v (must be >= 0)", c.Feed.ScrollEventsPerSecond)
	}
	if c.Feed.SessionIdleTimeout <= 0 || c.Feed.SessionCleanupInterval <= 0 {
		return fmt.Errorf("invalid session timing: idle=%v cleanup=%v (must be > 0)", c.Feed.SessionIdleTimeout, c.Feed.SessionCleanupInterval)
	}
	if len(c.Feed.Locales) == 0 {
		return errors.New("at least one locale is required")
	}

	if c.Notifications.PollInterval <= 0 {
		return fmt.Errorf("invalid notification poll interval: %v (must be > 0)", c.Notifications.PollInterval)
	}
	if c.Notifications.Retries < 0 {
		return fmt.Errorf("invalid notification retries: %d (must be >= 0)", c.Notifications.Retries)
	}
	if c.Notifications.RecentLimit <= 0 {
		return fmt.Errorf("invalid notification recent limit: %d (must be > 0)", c.Notifications.RecentLimit)
	}

	if c.Banners.RotateInterval <= 0 {
		return fmt.Errorf("invalid banner rotate interval: %v (must be > 0)", c.Banners.RotateInterval)
	}

	if c.Playback.LoadTimeout <= 0 || c.Playback.CommandTimeout <= 0 {
		return fmt.Errorf("invalid playback timeouts: load=%v command=%v (must be > 0)", c.Playback.LoadTimeout, c.Playback.CommandTimeout)
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
