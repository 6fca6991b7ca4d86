package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendProxy   = "proxy"
	BackendBrowser = "browser"

	InvalidationStream = "stream"
	InvalidationOutbox = "outbox"
	InvalidationNone   = "none"
)

var ErrMissingMongoURI = errors.New("MONGODB_URI is required")

type Config struct {
	Server    ServerConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Fetch     FetchConfig
	Search    SearchConfig
	RateLimit RateLimitConfig
	Tracker   TrackerConfig
	Database  DatabaseConfig
	Browser   BrowserConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type FetchConfig struct {
	Backend       string
	ScraperAPIKey string
	ScraperAPIURL string
	CountryCode   string
	Timeout       time.Duration
	DelayMin      time.Duration
	DelayMax      time.Duration
}

type SearchConfig struct {
	APIKey string
	URL    string
}

type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

type TrackerConfig struct {
	StatsPolicy      string
	InvalidationMode string
}

// DatabaseConfig is the Postgres outbox, used when InvalidationMode is outbox.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

type BrowserConfig struct {
	Headless bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, after applying a .env file
// from the working directory when one exists.
func Load() (*Config, error) {
	return load(true)
}

// LoadCLI is Load for the batch CLI, which only needs MONGODB_URI when it
// persists results.
func LoadCLI(requireStore bool) (*Config, error) {
	return load(requireStore)
}

func load(requireStore bool) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := FromEnv()
	if err := cfg.validate(requireStore); err != nil {
		return nil, err
	}
	return cfg, nil
}

func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvSlice("CORS_ALLOWED_ORIGINS", nil),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", ""),
			Database: getEnv("MONGODB_DB", "pricetracker"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Fetch: FetchConfig{
			Backend:       strings.ToLower(getEnv("FETCH_BACKEND", BackendProxy)),
			ScraperAPIKey: getEnv("SCRAPER_API_KEY", ""),
			ScraperAPIURL: getEnv("SCRAPER_API_URL", "http://api.scraperapi.com"),
			CountryCode:   getEnv("SCRAPER_COUNTRY_CODE", "in"),
			Timeout:       getEnvDuration("FETCH_TIMEOUT", 60*time.Second),
			DelayMin:      getEnvDuration("SCRAPER_DELAY_MIN", time.Second),
			DelayMax:      getEnvDuration("SCRAPER_DELAY_MAX", 3*time.Second),
		},
		Search: SearchConfig{
			APIKey: getEnv("SERPAPI_API_KEY", getEnv("API_KEY", "")),
			URL:    getEnv("SERPAPI_URL", "https://serpapi.com/search.json"),
		},
		RateLimit: RateLimitConfig{
			Limit:  getEnvInt("RATE_LIMIT", 4),
			Window: getEnvDuration("RATE_LIMIT_WINDOW", 100*time.Second),
		},
		Tracker: TrackerConfig{
			StatsPolicy:      strings.ToLower(getEnv("STATS_POLICY", "history")),
			InvalidationMode: strings.ToLower(getEnv("INVALIDATION_MODE", InvalidationStream)),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "price_tracker"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Browser: BrowserConfig{
			Headless: getEnvBool("BROWSER_HEADLESS", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(requireStore bool) error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if requireStore && c.Mongo.URI == "" {
		return ErrMissingMongoURI
	}

	switch c.Fetch.Backend {
	case BackendProxy, BackendBrowser:
	default:
		return fmt.Errorf("FETCH_BACKEND must be %q or %q, got %q", BackendProxy, BackendBrowser, c.Fetch.Backend)
	}

	if c.Fetch.DelayMin > c.Fetch.DelayMax {
		return fmt.Errorf("SCRAPER_DELAY_MIN cannot be greater than SCRAPER_DELAY_MAX")
	}

	if c.RateLimit.Limit < 1 {
		return fmt.Errorf("RATE_LIMIT must be at least 1")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}

	switch c.Tracker.StatsPolicy {
	case "history", "latest":
	default:
		return fmt.Errorf("STATS_POLICY must be history or latest, got %q", c.Tracker.StatsPolicy)
	}

	switch c.Tracker.InvalidationMode {
	case InvalidationStream, InvalidationNone:
	case InvalidationOutbox:
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required for the outbox")
		}
	default:
		return fmt.Errorf("INVALIDATION_MODE must be stream, outbox or none, got %q", c.Tracker.InvalidationMode)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
