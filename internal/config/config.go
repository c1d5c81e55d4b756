package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/websync-digital/sunlit-blue-spark/internal/manager"
	pkgconfig "github.com/websync-digital/sunlit-blue-spark/pkg/config"
)

// Catalog backends.
const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Image storage drivers.
const (
	StorageREST       = "rest"
	StorageS3         = "s3"
	StorageCloudinary = "cloudinary"
	StorageLocal      = "local"
	StorageMemory     = "memory"
)

// Config holds all configuration for the storefront.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Remote catalog service
	CatalogURL     string        `env:"CATALOG_URL,required,notEmpty"`
	CatalogAPIKey  string        `env:"CATALOG_API_KEY,required,notEmpty"`
	CatalogBackend string        `env:"CATALOG_BACKEND" envDefault:"rest"`
	CatalogTimeout time.Duration `env:"CATALOG_TIMEOUT" envDefault:"10s"`

	// PostgreSQL, used by the postgres backend
	DatabaseURL           string `env:"DATABASE_URL"`
	DBMaxConns            int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int    `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int    `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`
	DBMigrate             bool   `env:"DB_MIGRATE" envDefault:"true"`
	SlowQueryThresholdMs  int    `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Image storage
	StorageDriver    string `env:"STORAGE_DRIVER" envDefault:"rest"`
	StorageBucket    string `env:"STORAGE_BUCKET" envDefault:"product-images"`
	StorageLocalDir  string `env:"STORAGE_LOCAL_DIR" envDefault:"./data/media"`
	MediaURLPrefix   string `env:"MEDIA_URL_PREFIX" envDefault:"/media"`
	S3Region         string `env:"S3_REGION" envDefault:"eu-west-1"`
	S3Bucket         string `env:"S3_BUCKET"`
	S3Prefix         string `env:"S3_PREFIX" envDefault:"products"`
	S3PublicBaseURL  string `env:"S3_PUBLIC_BASE_URL"`
	S3Endpoint       string `env:"S3_ENDPOINT"`
	CloudinaryURL    string `env:"CLOUDINARY_URL"`
	CloudinaryFolder string `env:"CLOUDINARY_FOLDER" envDefault:"product-images"`

	// Visitor preferences; an empty REDIS_URL keeps them in memory
	RedisURL           string        `env:"REDIS_URL"`
	PrefsTTL           time.Duration `env:"PREFS_TTL" envDefault:"8760h"`
	VisitorIdleTimeout time.Duration `env:"VISITOR_IDLE_TIMEOUT" envDefault:"30m"`

	// Kafka; no brokers disables catalog events
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Admin gate
	AdminEmail         string        `env:"ADMIN_EMAIL" envDefault:"admin@cworthenergy.com"`
	AdminPasswordHash  string        `env:"ADMIN_PASSWORD_HASH"`
	SessionSecret      string        `env:"SESSION_SECRET"`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	LoginRatePerMinute int           `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`
	LoginBurst         int           `env:"LOGIN_BURST" envDefault:"5"`

	// Storefront
	BrandName           string `env:"BRAND_NAME" envDefault:"Cworth Energy"`
	CompanyPhone        string `env:"COMPANY_PHONE" envDefault:"+2349017813274"`
	MessagingBaseURL    string `env:"MESSAGING_BASE_URL" envDefault:"https://wa.me"`
	AdminLayout         string `env:"ADMIN_LAYOUT" envDefault:"sidebar"`
	PlaceholderImageURL string `env:"CATALOG_PLACEHOLDER_IMAGE_URL" envDefault:"/static/placeholder.svg"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables, after applying
// the optional dotenv files.
func Load(dotenvFiles ...string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, dotenvFiles...); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{BackendREST, BackendPostgres, BackendMemory}, c.CatalogBackend) {
		return fmt.Errorf("unknown CATALOG_BACKEND %q", c.CatalogBackend)
	}
	if c.CatalogBackend == BackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres backend")
	}

	switch c.StorageDriver {
	case StorageREST, StorageLocal, StorageMemory:
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 storage driver")
		}
	case StorageCloudinary:
		if c.CloudinaryURL == "" {
			return fmt.Errorf("CLOUDINARY_URL is required for the cloudinary storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if _, err := manager.ParseLayout(c.AdminLayout); err != nil {
		return fmt.Errorf("ADMIN_LAYOUT: %w", err)
	}
	if c.SessionSecret != "" && len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.LoginRatePerMinute < 1 || c.LoginBurst < 1 {
		return fmt.Errorf("LOGIN_RATE_PER_MINUTE and LOGIN_BURST must be positive")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// DBMaxConnLifetime returns the pool connection lifetime.
func (c *Config) DBMaxConnLifetime() time.Duration {
	return time.Duration(c.DBMaxConnLifetimeMins) * time.Minute
}

// DBMaxConnIdleTime returns the pool idle timeout.
func (c *Config) DBMaxConnIdleTime() time.Duration {
	return time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute
}
