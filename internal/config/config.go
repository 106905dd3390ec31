package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Tokens         TokensConfig         `yaml:"tokens"`
	Hash           HashConfig           `yaml:"hash"`
	Content        ContentConfig        `yaml:"content"`
	Images         ImagesConfig         `yaml:"images"`
	Cleaner        CleanerConfig        `yaml:"cleaner"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CORS           CORSConfig           `yaml:"cors"`
	Logging        LoggingConfig        `yaml:"logging"`
	Tracing        TracingConfig        `yaml:"tracing"`
	AdminBootstrap AdminBootstrapConfig `yaml:"admin_bootstrap"`
	Environment    string               `yaml:"environment"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	BaseURL         string        `yaml:"base_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL                string        `yaml:"url"`
	MaxConnections     int           `yaml:"max_connections"`
	MaxIdle            int           `yaml:"max_idle"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
}

// TokensConfig drives access and refresh token issuance.
type TokensConfig struct {
	Secret            string        `yaml:"secret"`
	Issuer            string        `yaml:"issuer"`
	Audience          string        `yaml:"audience"`
	AccessTTL         time.Duration `yaml:"access_ttl"`
	RefreshTTL        time.Duration `yaml:"refresh_ttl"`
	RefreshTokenBytes int           `yaml:"refresh_token_bytes"`
}

// HashConfig holds the Argon2id parameters.
type HashConfig struct {
	SaltSize    int `yaml:"salt_size"`
	HashSize    int `yaml:"hash_size"`
	Iterations  int `yaml:"iterations"`
	MemoryKiB   int `yaml:"memory_kib"`
	Parallelism int `yaml:"parallelism"`
}

// ContentConfig bounds user supplied fields.
type ContentConfig struct {
	PasswordMin     int `yaml:"password_min"`
	PasswordMax     int `yaml:"password_max"`
	NameMax         int `yaml:"name_max"`
	TitleMax        int `yaml:"title_max"`
	CategoryNameMax int `yaml:"category_name_max"`
	DescriptionMax  int `yaml:"description_max"`
	LocationMax     int `yaml:"location_max"`
	PageSizeMax     int `yaml:"page_size_max"`
	MaxParticipants int `yaml:"max_participants"`
	MinimumAgeYears int `yaml:"minimum_age_years"`
	MaximumAgeYears int `yaml:"maximum_age_years"`
	SearchLengthMax int `yaml:"search_length_max"`
	DefaultPageSize int `yaml:"default_page_size"`
	EmailLengthMax  int `yaml:"email_length_max"`
}

type ImagesConfig struct {
	Dir            string `yaml:"dir"`
	URLPrefix      string `yaml:"url_prefix"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type CleanerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type RateLimitConfig struct {
	PublicPerMinute int `yaml:"public_per_minute"`
	LoginPerMinute  int `yaml:"login_per_minute"`
	AdminPerMinute  int `yaml:"admin_per_minute"`
	// X-Forwarded-For is only honoured for peers inside these ranges.
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
}

type CORSConfig struct {
	AllowAllOrigins bool     `yaml:"allow_all_origins"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	ServiceName    string  `yaml:"service_name"`
	Exporter       string  `yaml:"exporter"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	SampleRate     float64 `yaml:"sample_rate"`
	ServiceVersion string  `yaml:"-"`
}

type AdminBootstrapConfig struct {
	Email     string `yaml:"email"`
	Password  string `yaml:"-"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
}

// Defaults returns the configuration used when neither a file nor the
// environment sets a value.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			BaseURL:         "http://localhost:8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConnections:     25,
			MaxIdle:            5,
			SlowQueryThreshold: 200 * time.Millisecond,
		},
		Tokens: TokensConfig{
			Issuer:            "eventhub",
			Audience:          "eventhub-api",
			AccessTTL:         15 * time.Minute,
			RefreshTTL:        7 * 24 * time.Hour,
			RefreshTokenBytes: 64,
		},
		Hash: HashConfig{
			SaltSize:    16,
			HashSize:    32,
			Iterations:  3,
			MemoryKiB:   64 * 1024,
			Parallelism: 2,
		},
		Content: ContentConfig{
			PasswordMin:     8,
			PasswordMax:     64,
			NameMax:         150,
			TitleMax:        200,
			CategoryNameMax: 100,
			DescriptionMax:  1000,
			LocationMax:     200,
			PageSizeMax:     100,
			MaxParticipants: 100000,
			MinimumAgeYears: 0,
			MaximumAgeYears: 150,
			SearchLengthMax: 200,
			DefaultPageSize: 10,
			EmailLengthMax:  150,
		},
		Images: ImagesConfig{
			Dir:            "images",
			URLPrefix:      "/images",
			MaxUploadBytes: 5 << 20,
		},
		Cleaner: CleanerConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: 120,
			LoginPerMinute:  10,
			AdminPerMinute:  0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			ServiceName: "eventhub",
			Exporter:    "stdout",
			SampleRate:  1.0,
		},
		AdminBootstrap: AdminBootstrapConfig{
			FirstName: "Admin",
			LastName:  "Admin",
		},
		Environment: "development",
	}
}

// Load reads the configuration from the environment on top of Defaults.
func Load() (Config, error) {
	return LoadWithFile("")
}

// LoadWithFile layers defaults, the YAML file at path (if any) and then the
// environment, and validates the result.
func LoadWithFile(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.BaseURL = getEnv("SERVER_BASE_URL", cfg.Server.BaseURL)
	cfg.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConnections = getEnvInt("DATABASE_MAX_CONNECTIONS", cfg.Database.MaxConnections)
	cfg.Database.MaxIdle = getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", cfg.Database.MaxIdle)
	cfg.Database.SlowQueryThreshold = getEnvDuration("DATABASE_SLOW_QUERY_THRESHOLD", cfg.Database.SlowQueryThreshold)

	cfg.Tokens.Secret = getEnv("JWT_SECRET", cfg.Tokens.Secret)
	cfg.Tokens.Issuer = getEnv("JWT_ISSUER", cfg.Tokens.Issuer)
	cfg.Tokens.Audience = getEnv("JWT_AUDIENCE", cfg.Tokens.Audience)
	if minutes := getEnvInt("JWT_ACCESS_MINUTES", 0); minutes > 0 {
		cfg.Tokens.AccessTTL = time.Duration(minutes) * time.Minute
	}
	if days := getEnvInt("JWT_REFRESH_DAYS", 0); days > 0 {
		cfg.Tokens.RefreshTTL = time.Duration(days) * 24 * time.Hour
	}
	cfg.Tokens.RefreshTokenBytes = getEnvInt("JWT_REFRESH_TOKEN_BYTES", cfg.Tokens.RefreshTokenBytes)

	cfg.Hash.SaltSize = getEnvInt("HASH_SALT_SIZE", cfg.Hash.SaltSize)
	cfg.Hash.HashSize = getEnvInt("HASH_SIZE", cfg.Hash.HashSize)
	cfg.Hash.Iterations = getEnvInt("HASH_ITERATIONS", cfg.Hash.Iterations)
	cfg.Hash.MemoryKiB = getEnvInt("HASH_MEMORY_KIB", cfg.Hash.MemoryKiB)
	cfg.Hash.Parallelism = getEnvInt("HASH_PARALLELISM", cfg.Hash.Parallelism)

	cfg.Content.PasswordMin = getEnvInt("CONTENT_PASSWORD_MIN", cfg.Content.PasswordMin)
	cfg.Content.PasswordMax = getEnvInt("CONTENT_PASSWORD_MAX", cfg.Content.PasswordMax)
	cfg.Content.PageSizeMax = getEnvInt("CONTENT_PAGE_SIZE_MAX", cfg.Content.PageSizeMax)

	cfg.Images.Dir = getEnv("IMAGES_DIR", cfg.Images.Dir)
	cfg.Images.URLPrefix = getEnv("IMAGES_URL_PREFIX", cfg.Images.URLPrefix)
	cfg.Images.MaxUploadBytes = int64(getEnvInt("IMAGES_MAX_UPLOAD_BYTES", int(cfg.Images.MaxUploadBytes)))

	cfg.Cleaner.Enabled = getEnvBool("TOKEN_CLEANER_ENABLED", cfg.Cleaner.Enabled)
	cfg.Cleaner.Interval = getEnvDuration("TOKEN_CLEANER_INTERVAL", cfg.Cleaner.Interval)

	cfg.RateLimit.PublicPerMinute = getEnvInt("RATE_LIMIT_PUBLIC", cfg.RateLimit.PublicPerMinute)
	cfg.RateLimit.LoginPerMinute = getEnvInt("RATE_LIMIT_LOGIN", cfg.RateLimit.LoginPerMinute)
	cfg.RateLimit.AdminPerMinute = getEnvInt("RATE_LIMIT_ADMIN", cfg.RateLimit.AdminPerMinute)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Tracing.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = getEnv("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)

	cfg.AdminBootstrap.Email = getEnv("ADMIN_EMAIL", cfg.AdminBootstrap.Email)
	cfg.AdminBootstrap.Password = getEnv("ADMIN_PASSWORD", cfg.AdminBootstrap.Password)

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.CORS.AllowedOrigins = splitList(origins)
	}
	if cidrs := getEnv("TRUSTED_PROXY_CIDRS", ""); cidrs != "" {
		cfg.RateLimit.TrustedProxyCIDRs = splitList(cidrs)
	}
	cfg.CORS.AllowAllOrigins = !cfg.IsProduction() && len(cfg.CORS.AllowedOrigins) == 0
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Tokens.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if len(c.Tokens.Secret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.Tokens.RefreshTokenBytes < 16 {
		errs = append(errs, errors.New("JWT_REFRESH_TOKEN_BYTES must be at least 16"))
	}
	if c.Hash.SaltSize < 8 || c.Hash.HashSize < 16 || c.Hash.Iterations < 1 || c.Hash.MemoryKiB < 8 || c.Hash.Parallelism < 1 || c.Hash.Parallelism > 255 {
		errs = append(errs, errors.New("invalid argon2 parameters"))
	}
	if c.Content.PasswordMin < 1 || c.Content.PasswordMax < c.Content.PasswordMin {
		errs = append(errs, errors.New("invalid password length bounds"))
	}
	if c.Content.PageSizeMax < 1 {
		errs = append(errs, errors.New("CONTENT_PAGE_SIZE_MAX must be positive"))
	}
	if c.Cleaner.Enabled && c.Cleaner.Interval <= 0 {
		errs = append(errs, errors.New("TOKEN_CLEANER_INTERVAL must be positive"))
	}
	if c.Images.Dir == "" || !strings.HasPrefix(c.Images.URLPrefix, "/") {
		errs = append(errs, errors.New("images need a directory and a URL prefix starting with /"))
	}
	if c.IsProduction() && len(c.CORS.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS is required in production"))
	}
	if c.AdminBootstrap.Email != "" && c.AdminBootstrap.Password == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD is required when ADMIN_EMAIL is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ExposeErrorDetails reports whether internal error text may reach clients.
func (c Config) ExposeErrorDetails() bool {
	switch strings.ToLower(c.Environment) {
	case "development", "test":
		return true
	}
	return false
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
