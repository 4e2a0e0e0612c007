package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Auth      AuthConfig
	Identity  IdentityConfig
	Pool      PoolConfig
	Generator GeneratorConfig
	Credits   CreditsConfig
	RateLimit RateLimitConfig
	Warmup    WarmupConfig
	R2        R2Config
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret           string
	AccessTTLMinutes int
	RefreshTTLHours  int
}

// AuthConfig lists the uids whose registration yields an admin token.
type AuthConfig struct {
	AdminUIDs []string
}

// IdentityConfig enables verification of identity-provider ID tokens at
// registration. Verification is skipped when neither JWKSURL nor Issuer is
// set; with only Issuer the JWKS URL is discovered.
type IdentityConfig struct {
	JWKSURL  string
	Issuer   string
	Audience string
}

type PoolConfig struct {
	Workers               []string
	RequestTimeoutSeconds int
	InitTimeoutSeconds    int
}

type GeneratorConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
	WarmupPrompt   string
	MockDelayMs    int
}

type CreditsConfig struct {
	Primary             string // "redis" or "postgres"
	Initial             int
	AdReward            int
	StoreTimeoutSeconds int
}

type RateLimitConfig struct {
	GeneratePerMin int
	WarmupPerMin   int
}

type WarmupConfig struct {
	Enabled bool
	Cron    string
	Prompt  string
	Style   string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// RequestTimeout is the deadline a caller waits for a generation result.
func (c PoolConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// InitTimeout bounds a single worker's capability setup.
func (c PoolConfig) InitTimeout() time.Duration {
	return time.Duration(c.InitTimeoutSeconds) * time.Second
}

func (c CreditsConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}

func (c JWTConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

func (c JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLHours) * time.Hour
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("DATABASE_URL")
	readSecret("JWT_SECRET")
	readSecret("ADMIN_UIDS")
	readSecret("GENERATOR_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET", "SECRET_KEY")
	_ = v.BindEnv("jwt.access_ttl_minutes", "JWT_ACCESS_TTL_MINUTES")
	_ = v.BindEnv("jwt.refresh_ttl_hours", "JWT_REFRESH_TTL_HOURS")
	_ = v.BindEnv("auth.admin_uids", "ADMIN_UIDS")
	_ = v.BindEnv("identity.jwks_url", "IDENTITY_JWKS_URL")
	_ = v.BindEnv("identity.issuer", "IDENTITY_ISSUER")
	_ = v.BindEnv("identity.audience", "IDENTITY_AUDIENCE")
	_ = v.BindEnv("pool.workers", "POOL_WORKERS")
	_ = v.BindEnv("pool.request_timeout_seconds", "POOL_REQUEST_TIMEOUT_SECONDS")
	_ = v.BindEnv("pool.init_timeout_seconds", "POOL_INIT_TIMEOUT_SECONDS")
	_ = v.BindEnv("generator.base_url", "GENERATOR_BASE_URL")
	_ = v.BindEnv("generator.api_key", "GENERATOR_API_KEY")
	_ = v.BindEnv("generator.timeout_seconds", "GENERATOR_TIMEOUT_SECONDS")
	_ = v.BindEnv("generator.warmup_prompt", "GENERATOR_WARMUP_PROMPT")
	_ = v.BindEnv("generator.mock_delay_ms", "GENERATOR_MOCK_DELAY_MS")
	_ = v.BindEnv("credits.primary", "CREDITS_PRIMARY")
	_ = v.BindEnv("credits.initial", "CREDITS_INITIAL")
	_ = v.BindEnv("credits.ad_reward", "CREDITS_AD_REWARD")
	_ = v.BindEnv("credits.store_timeout_seconds", "CREDITS_STORE_TIMEOUT_SECONDS")
	_ = v.BindEnv("ratelimit.generate_per_min", "RATELIMIT_GENERATE_PER_MIN")
	_ = v.BindEnv("ratelimit.warmup_per_min", "RATELIMIT_WARMUP_PER_MIN")
	_ = v.BindEnv("warmup.enabled", "WARMUP_ENABLED")
	_ = v.BindEnv("warmup.cron", "WARMUP_CRON")
	_ = v.BindEnv("warmup.prompt", "WARMUP_PROMPT")
	_ = v.BindEnv("warmup.style", "WARMUP_STYLE")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")

	// Defaults
	v.SetDefault("server.port", "5001")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.access_ttl_minutes", 15)
	v.SetDefault("jwt.refresh_ttl_hours", 720)

	// Pool defaults
	v.SetDefault("pool.workers", "worker-1,worker-2")
	v.SetDefault("pool.request_timeout_seconds", 60)
	v.SetDefault("pool.init_timeout_seconds", 120)

	// Generator defaults
	v.SetDefault("generator.timeout_seconds", 90)
	v.SetDefault("generator.warmup_prompt", "girl")
	v.SetDefault("generator.mock_delay_ms", 1500)

	// Credit defaults
	v.SetDefault("credits.primary", "redis")
	v.SetDefault("credits.initial", 5)
	v.SetDefault("credits.ad_reward", 2)
	v.SetDefault("credits.store_timeout_seconds", 3)

	v.SetDefault("ratelimit.generate_per_min", 10)
	v.SetDefault("ratelimit.warmup_per_min", 6)

	// Warm-up defaults
	v.SetDefault("warmup.enabled", false)
	v.SetDefault("warmup.cron", "@every 10m")
	v.SetDefault("warmup.prompt", "lovely couple with painted anime style")
	v.SetDefault("warmup.style", "anime")

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("server.port"),
			Env:      v.GetString("server.env"),
			LogLevel: v.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		JWT: JWTConfig{
			Secret:           v.GetString("jwt.secret"),
			AccessTTLMinutes: v.GetInt("jwt.access_ttl_minutes"),
			RefreshTTLHours:  v.GetInt("jwt.refresh_ttl_hours"),
		},
		Auth: AuthConfig{
			AdminUIDs: splitList(v.GetString("auth.admin_uids")),
		},
		Identity: IdentityConfig{
			JWKSURL:  v.GetString("identity.jwks_url"),
			Issuer:   v.GetString("identity.issuer"),
			Audience: v.GetString("identity.audience"),
		},
		Pool: PoolConfig{
			Workers:               splitList(v.GetString("pool.workers")),
			RequestTimeoutSeconds: v.GetInt("pool.request_timeout_seconds"),
			InitTimeoutSeconds:    v.GetInt("pool.init_timeout_seconds"),
		},
		Generator: GeneratorConfig{
			BaseURL:        v.GetString("generator.base_url"),
			APIKey:         v.GetString("generator.api_key"),
			TimeoutSeconds: v.GetInt("generator.timeout_seconds"),
			WarmupPrompt:   v.GetString("generator.warmup_prompt"),
			MockDelayMs:    v.GetInt("generator.mock_delay_ms"),
		},
		Credits: CreditsConfig{
			Primary:             strings.ToLower(v.GetString("credits.primary")),
			Initial:             v.GetInt("credits.initial"),
			AdReward:            v.GetInt("credits.ad_reward"),
			StoreTimeoutSeconds: v.GetInt("credits.store_timeout_seconds"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerMin: v.GetInt("ratelimit.generate_per_min"),
			WarmupPerMin:   v.GetInt("ratelimit.warmup_per_min"),
		},
		Warmup: WarmupConfig{
			Enabled: v.GetBool("warmup.enabled"),
			Cron:    v.GetString("warmup.cron"),
			Prompt:  v.GetString("warmup.prompt"),
			Style:   v.GetString("warmup.style"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
	}

	return cfg, nil
}

// splitList turns "a, b,,c" into [a b c].
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
