// Package config provides centralized configuration management.
// Values start from defaults, are overlaid by the optional YAML file named in
// CONFIG_FILE and finally by environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tacoshare-tracking-api/pkg/storage"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Maps          MapsConfig          `yaml:"maps"`
	Tracking      TrackingConfig      `yaml:"tracking"`
	Navigation    NavigationConfig    `yaml:"navigation"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Storage       StorageConfig       `yaml:"storage"`
	CORS          CORSConfig          `yaml:"cors"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Log           LogConfig           `yaml:"log"`
	JWT           JWTConfig           `yaml:"jwt"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	// Port to listen on
	Port string `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum duration an idle connection will remain open
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ReadHeaderTimeout is the amount of time allowed to read request headers
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// ShutdownTimeout is the maximum duration to wait for active connections to close
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	// URL is the full database connection string (takes precedence if set)
	URL string `yaml:"url"`

	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Enabled reports whether an order database is configured
func (c DatabaseConfig) Enabled() bool {
	return c.URL != "" || c.Name != ""
}

// DSN returns the lib/pq connection string
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds the route/tile cache backend. Empty Addr keeps caches in memory.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Enabled reports whether Redis is configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// KafkaConfig holds the tracking event stream. No brokers disables it.
type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	ClientID       string   `yaml:"client_id"`
	PositionsTopic string   `yaml:"positions_topic"`
	StatusTopic    string   `yaml:"status_topic"`
}

// Enabled reports whether at least one broker is configured
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// MapsConfig holds the routing/geocoding provider settings
type MapsConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond int           `yaml:"requests_per_second"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
}

// TrackingConfig holds tracking thresholds and event delivery
type TrackingConfig struct {
	// ArrivalThresholdMeters is the distance at which en-route trackings arrive
	ArrivalThresholdMeters float64 `yaml:"arrival_threshold_meters"`

	// ProviderTimeout bounds each route/ETA computation
	ProviderTimeout time.Duration `yaml:"provider_timeout"`

	MaxConcurrentETA int `yaml:"max_concurrent_eta"`

	// EventQueueSize and EventWorkers size the async notification publisher
	EventQueueSize int `yaml:"event_queue_size"`
	EventWorkers   int `yaml:"event_workers"`
}

// NavigationConfig holds offline navigation settings
type NavigationConfig struct {
	// ProbeURL is requested to decide whether the provider is reachable
	ProbeURL           string        `yaml:"probe_url"`
	ProbeInterval      time.Duration `yaml:"probe_interval"`
	ProbeTimeout       time.Duration `yaml:"probe_timeout"`
	RecentlyBackWindow time.Duration `yaml:"recently_back_window"`

	RouteCacheTTL time.Duration `yaml:"route_cache_ttl"`

	TileURL         string        `yaml:"tile_url"`
	TileUserAgent   string        `yaml:"tile_user_agent"`
	TileCacheTTL    time.Duration `yaml:"tile_cache_ttl"`
	MaxTiles        int           `yaml:"max_tiles"`
	PrecacheZooms   []int         `yaml:"precache_zooms"`
	MaxTilesPerZoom int           `yaml:"max_tiles_per_zoom"`
}

// Zooms returns PrecacheZooms as tile zoom levels, dropping negative values
func (c NavigationConfig) Zooms() []uint32 {
	zooms := make([]uint32, 0, len(c.PrecacheZooms))
	for _, z := range c.PrecacheZooms {
		if z >= 0 {
			zooms = append(zooms, uint32(z))
		}
	}
	return zooms
}

// NotificationsConfig holds push and SMS credentials. Missing values run the
// senders in mock mode.
type NotificationsConfig struct {
	FirebaseCredentialsFile string `yaml:"firebase_credentials_file"`
	FirebaseCredentialsJSON string `yaml:"firebase_credentials_json"`

	TwilioAccountSID string `yaml:"twilio_account_sid"`
	TwilioAPIKey     string `yaml:"twilio_api_key"`
	TwilioAPISecret  string `yaml:"twilio_api_secret"`
	TwilioFromPhone  string `yaml:"twilio_from_phone"`
}

// StorageConfig holds the completed-route archive
type StorageConfig struct {
	R2 storage.R2Config `yaml:"r2"`

	// ArchivePrefix is prepended to every archived object key
	ArchivePrefix string `yaml:"archive_prefix"`
}

// CORSConfig holds CORS middleware configuration
type CORSConfig struct {
	// AllowedOrigins also restricts WebSocket upgrades; ["*"] allows any origin
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Enabled indicates whether rate limiting is enabled
	Enabled bool `yaml:"enabled"`

	// Rate is the maximum requests per window
	Rate int `yaml:"rate"`

	// Window is the time window for rate limiting
	Window time.Duration `yaml:"window"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Format is the log format (json, text)
	Format string `yaml:"format"`

	// AddSource indicates whether to include source file information
	AddSource bool `yaml:"add_source"`
}

// JWTConfig holds JWT authentication configuration
type JWTConfig struct {
	// SecretKey verifies tokens issued by the auth service
	SecretKey string `yaml:"secret_key"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              "8080",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5433",
			User:            "postgres",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			KeyPrefix: "nav",
		},
		Kafka: KafkaConfig{
			ClientID:       "tacoshare-tracking-api",
			PositionsTopic: "tracking.positions",
			StatusTopic:    "tracking.status",
		},
		Maps: MapsConfig{
			Timeout:      10 * time.Second,
			MaxAttempts:  3,
			RetryBackoff: 200 * time.Millisecond,
		},
		Tracking: TrackingConfig{
			ArrivalThresholdMeters: 100,
			ProviderTimeout:        10 * time.Second,
			MaxConcurrentETA:       8,
			EventQueueSize:         256,
			EventWorkers:           4,
		},
		Navigation: NavigationConfig{
			ProbeURL:           "https://maps.googleapis.com/",
			ProbeInterval:      30 * time.Second,
			ProbeTimeout:       5 * time.Second,
			RecentlyBackWindow: 10 * time.Second,
			RouteCacheTTL:      24 * time.Hour,
			TileURL:            "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			TileUserAgent:      "tacoshare-tracking-api/1.0",
			TileCacheTTL:       7 * 24 * time.Hour,
			MaxTiles:           100,
			PrecacheZooms:      []int{13, 14, 15},
			MaxTilesPerZoom:    25,
		},
		Storage: StorageConfig{
			ArchivePrefix: "routes",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    100,
			Window:  time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			SecretKey: "your-super-secret-key-change-in-production",
		},
	}
}

// Load returns the defaults overlaid by CONFIG_FILE (if set) and the environment
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getDurationEnv("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ReadHeaderTimeout = getDurationEnv("SERVER_READ_HEADER_TIMEOUT", c.Server.ReadHeaderTimeout)
	c.Server.ShutdownTimeout = getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getIntEnv("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getIntEnv("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getDurationEnv("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getIntEnv("REDIS_DB", c.Redis.DB)
	c.Redis.KeyPrefix = getEnv("REDIS_KEY_PREFIX", c.Redis.KeyPrefix)

	c.Kafka.Brokers = getSliceEnv("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.ClientID = getEnv("KAFKA_CLIENT_ID", c.Kafka.ClientID)
	c.Kafka.PositionsTopic = getEnv("KAFKA_POSITIONS_TOPIC", c.Kafka.PositionsTopic)
	c.Kafka.StatusTopic = getEnv("KAFKA_STATUS_TOPIC", c.Kafka.StatusTopic)

	c.Maps.APIKey = getEnv("GOOGLE_MAPS_API_KEY", c.Maps.APIKey)
	c.Maps.BaseURL = getEnv("GOOGLE_MAPS_BASE_URL", c.Maps.BaseURL)
	c.Maps.Timeout = getDurationEnv("GOOGLE_MAPS_TIMEOUT", c.Maps.Timeout)
	c.Maps.RequestsPerSecond = getIntEnv("GOOGLE_MAPS_RPS", c.Maps.RequestsPerSecond)
	c.Maps.MaxAttempts = getIntEnv("GOOGLE_MAPS_MAX_ATTEMPTS", c.Maps.MaxAttempts)
	c.Maps.RetryBackoff = getDurationEnv("GOOGLE_MAPS_RETRY_BACKOFF", c.Maps.RetryBackoff)

	c.Tracking.ArrivalThresholdMeters = getFloatEnv("TRACKING_ARRIVAL_THRESHOLD_METERS", c.Tracking.ArrivalThresholdMeters)
	c.Tracking.ProviderTimeout = getDurationEnv("TRACKING_PROVIDER_TIMEOUT", c.Tracking.ProviderTimeout)
	c.Tracking.MaxConcurrentETA = getIntEnv("TRACKING_MAX_CONCURRENT_ETA", c.Tracking.MaxConcurrentETA)
	c.Tracking.EventQueueSize = getIntEnv("TRACKING_EVENT_QUEUE_SIZE", c.Tracking.EventQueueSize)
	c.Tracking.EventWorkers = getIntEnv("TRACKING_EVENT_WORKERS", c.Tracking.EventWorkers)

	c.Navigation.ProbeURL = getEnv("NAV_PROBE_URL", c.Navigation.ProbeURL)
	c.Navigation.ProbeInterval = getDurationEnv("NAV_PROBE_INTERVAL", c.Navigation.ProbeInterval)
	c.Navigation.ProbeTimeout = getDurationEnv("NAV_PROBE_TIMEOUT", c.Navigation.ProbeTimeout)
	c.Navigation.RecentlyBackWindow = getDurationEnv("NAV_RECENTLY_BACK_WINDOW", c.Navigation.RecentlyBackWindow)
	c.Navigation.RouteCacheTTL = getDurationEnv("NAV_ROUTE_CACHE_TTL", c.Navigation.RouteCacheTTL)
	c.Navigation.TileURL = getEnv("NAV_TILE_URL", c.Navigation.TileURL)
	c.Navigation.TileUserAgent = getEnv("NAV_TILE_USER_AGENT", c.Navigation.TileUserAgent)
	c.Navigation.TileCacheTTL = getDurationEnv("NAV_TILE_CACHE_TTL", c.Navigation.TileCacheTTL)
	c.Navigation.MaxTiles = getIntEnv("NAV_MAX_TILES", c.Navigation.MaxTiles)
	c.Navigation.PrecacheZooms = getIntSliceEnv("NAV_PRECACHE_ZOOMS", c.Navigation.PrecacheZooms)
	c.Navigation.MaxTilesPerZoom = getIntEnv("NAV_MAX_TILES_PER_ZOOM", c.Navigation.MaxTilesPerZoom)

	c.Notifications.FirebaseCredentialsFile = getEnv("FIREBASE_CREDENTIALS_FILE", c.Notifications.FirebaseCredentialsFile)
	c.Notifications.FirebaseCredentialsJSON = getEnv("FIREBASE_CREDENTIALS_JSON", c.Notifications.FirebaseCredentialsJSON)
	c.Notifications.TwilioAccountSID = getEnv("TWILIO_ACCOUNT_SID", c.Notifications.TwilioAccountSID)
	c.Notifications.TwilioAPIKey = getEnv("TWILIO_API_KEY", c.Notifications.TwilioAPIKey)
	c.Notifications.TwilioAPISecret = getEnv("TWILIO_API_SECRET", c.Notifications.TwilioAPISecret)
	c.Notifications.TwilioFromPhone = getEnv("TWILIO_FROM_PHONE_NUMBER", c.Notifications.TwilioFromPhone)

	c.Storage.R2.AccountID = getEnv("R2_ACCOUNT_ID", c.Storage.R2.AccountID)
	c.Storage.R2.AccessKeyID = getEnv("R2_ACCESS_KEY_ID", c.Storage.R2.AccessKeyID)
	c.Storage.R2.SecretAccessKey = getEnv("R2_SECRET_ACCESS_KEY", c.Storage.R2.SecretAccessKey)
	c.Storage.R2.BucketName = getEnv("R2_BUCKET_NAME", c.Storage.R2.BucketName)
	c.Storage.R2.PublicURL = getEnv("R2_PUBLIC_URL", c.Storage.R2.PublicURL)
	c.Storage.R2.Endpoint = getEnv("R2_ENDPOINT", c.Storage.R2.Endpoint)
	c.Storage.ArchivePrefix = getEnv("ARCHIVE_PREFIX", c.Storage.ArchivePrefix)

	c.CORS.AllowedOrigins = getSliceEnv("CORS_ALLOWED_ORIGINS", c.CORS.AllowedOrigins)

	c.RateLimit.Enabled = getBoolEnv("RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.Rate = getIntEnv("RATE_LIMIT_RATE", c.RateLimit.Rate)
	c.RateLimit.Window = getDurationEnv("RATE_LIMIT_WINDOW", c.RateLimit.Window)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.AddSource = getBoolEnv("LOG_ADD_SOURCE", c.Log.AddSource)

	c.JWT.SecretKey = getEnv("JWT_SECRET_KEY", c.JWT.SecretKey)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getBoolEnv gets a boolean environment variable or returns a default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
// Accepts values like "30s", "5m", "1h"
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getSliceEnv gets a comma-separated environment variable as a slice
func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// getIntSliceEnv parses a comma-separated list of integers; any bad entry
// keeps the default
func getIntSliceEnv(key string, defaultValue []int) []int {
	parts := getSliceEnv(key, nil)
	if parts == nil {
		return defaultValue
	}
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return defaultValue
		}
		result = append(result, n)
	}
	return result
}
