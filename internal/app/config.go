package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (CATALOG_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage      string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (CATALOG_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (CATALOG_API_KEY_PEPPER)" flag:"api-key-pepper"`
	AdminAPIKey  string `usage:"Bootstrap admin API key, memory storage only" flag:"admin-api-key"`
	Listing      ListingConfig
	Images       ImagesConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// ListingConfig holds the page size defaults of the product listings.
type ListingConfig struct {
	StorefrontPageSize int `default:"4"  usage:"Default page size of the storefront listing" flag:"storefront-page-size"`
	AdminPageSize      int `default:"10" usage:"Default page size of the admin listing" flag:"admin-page-size"`
	MaxPageSize        int `default:"0"  usage:"Upper bound for the limit parameter, 0 disables" flag:"max-page-size"`
}

// ImagesConfig controls variant image storage. Without an endpoint images
// are kept in process memory.
type ImagesConfig struct {
	Endpoint      string        `usage:"S3-compatible endpoint (host:port)" flag:"images-endpoint"`
	AccessKey     string        `usage:"Object storage access key" flag:"images-access-key"`
	SecretKey     string        `usage:"Object storage secret key" flag:"images-secret-key"`
	Bucket        string        `default:"catalog-images" usage:"Bucket for variant images" flag:"images-bucket"`
	UseSSL        bool          `default:"false" usage:"Use TLS for object storage" flag:"images-use-ssl"`
	PublicBaseURL string        `usage:"Base URL prepended to image keys in responses" flag:"image-base-url"`
	UploadTimeout time.Duration `default:"30s" usage:"Timeout for uploading one image set" flag:"upload-timeout"`
	MaxSecondary  int           `default:"5" usage:"Maximum number of secondary images" flag:"max-secondary-images"`
	MaxFileSize   int64         `default:"15728640" usage:"Maximum size of one image in bytes" flag:"max-file-size"`
	Concurrency   int           `default:"4" usage:"Parallel uploads per image set" flag:"upload-concurrency"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CATALOG",
		Files:     []string{"config.yaml", "/etc/catalog/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set CATALOG_DATABASE_URL or DATABASE_URL")
		}
		if c.AdminAPIKey != "" {
			return errors.New("admin API key bootstrap is only supported with memory storage")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q", c.Storage)
	}
	if c.Listing.StorefrontPageSize < 1 || c.Listing.AdminPageSize < 1 {
		return errors.New("listing page sizes must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CATALOG_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
