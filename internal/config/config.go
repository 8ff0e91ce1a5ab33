package config

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Store backends accepted in MARKSYNC_STORE.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Record storage
	Store       string // "redis" | "postgres" | "memory"
	PostgresDSN string // required when Store == "postgres"

	// Sessions
	JWTSecret   string        // HMAC secret shared with the identity provider
	JWTIssuer   string        // expected "iss" claim
	JWTAudience string        // expected "aud" claim
	JWTTTL      time.Duration // lifetime of tokens minted by marksync itself
	JWTLeeway   time.Duration // clock skew tolerance

	// Change feed
	FeedBuffer       int           // per-subscription notification buffer
	WSPingInterval   time.Duration // websocket keepalive ping period
	WSWriteTimeout   time.Duration // websocket write deadline
	RequestTimeout   time.Duration // per-request timeout for REST routes
	RateBurst        int           // mutation burst per client IP
	RateRefillPerMin int           // mutation refill per client IP per minute

	// Seed import (optional, empty SeedFile = disabled)
	SeedFile       string        // path to a homepage style bookmarks.yaml
	SeedOwner      string        // identity that receives imported bookmarks
	ReloadInterval time.Duration // interval to re-import the seed file (default: 24h)

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict /reload to specific Host headers
	AllowedCIDRS []string // optional, restrict /readyz and /reload to specific IPs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("MARKSYNC_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("MARKSYNC_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("MARKSYNC_LOG_LEVEL", "info"),
		PrettyLog: mustBool("MARKSYNC_PRETTY_LOG", true),

		// Storage
		Store:       strings.ToLower(getenv("MARKSYNC_STORE", StoreRedis)),
		PostgresDSN: getenv("MARKSYNC_POSTGRES_DSN", ""),

		// Sessions
		JWTSecret:   requireEnv("MARKSYNC_JWT_SECRET"),
		JWTIssuer:   getenv("MARKSYNC_JWT_ISSUER", "marksync"),
		JWTAudience: getenv("MARKSYNC_JWT_AUDIENCE", "marksync-api"),
		JWTTTL:      mustDuration("MARKSYNC_JWT_TTL", 24*time.Hour),
		JWTLeeway:   mustDuration("MARKSYNC_JWT_LEEWAY", 30*time.Second),

		// Change feed & HTTP
		FeedBuffer:       mustInt("MARKSYNC_FEED_BUFFER", 64),
		WSPingInterval:   mustDuration("MARKSYNC_WS_PING_INTERVAL", 30*time.Second),
		WSWriteTimeout:   mustDuration("MARKSYNC_WS_WRITE_TIMEOUT", 5*time.Second),
		RequestTimeout:   mustDuration("MARKSYNC_REQUEST_TIMEOUT", 5*time.Second),
		RateBurst:        mustInt("MARKSYNC_RATE_BURST", 30),
		RateRefillPerMin: mustInt("MARKSYNC_RATE_PER_MIN", 120),

		// Seed import
		SeedFile:       getenv("MARKSYNC_SEED_FILE", ""),
		SeedOwner:      getenv("MARKSYNC_SEED_OWNER", ""),
		ReloadInterval: mustDuration("MARKSYNC_RELOAD_SOURCE_INTERVAL", 24*time.Hour),

		// Redis settings
		RedisAddr:             requireEnv("MARKSYNC_REDIS_ADDR"),
		RedisUser:             getenv("MARKSYNC_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("MARKSYNC_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("MARKSYNC_REDIS_PASSWORD", ""),
		RedisDB:               mustInt("MARKSYNC_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         mustInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    mustInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("MARKSYNC_ALLOWED_HOSTS", "")),
		AllowedCIDRS: splitAndTrim(getenv("MARKSYNC_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("MARKSYNC_TRUST_PROXY", true),
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Validate checks combinations that individual getters cannot.
func (c *Config) Validate() error {
	if c.RedisPasswordRequired && c.RedisPassword == "" {
		return fmt.Errorf("MARKSYNC_REDIS_PASSWORD is required when MARKSYNC_REDIS_PASSWORD_REQUIRED=true")
	}
	switch c.Store {
	case StoreRedis, StoreMemory:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("MARKSYNC_POSTGRES_DSN is required when MARKSYNC_STORE=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown MARKSYNC_STORE %q (want %s, %s or %s)", c.Store, StoreRedis, StorePostgres, StoreMemory)
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("MARKSYNC_JWT_SECRET must be at least 16 bytes")
	}
	if c.SeedFile != "" && c.SeedOwner == "" {
		return fmt.Errorf("MARKSYNC_SEED_OWNER is required when MARKSYNC_SEED_FILE is set")
	}
	if c.FeedBuffer < 1 {
		return fmt.Errorf("MARKSYNC_FEED_BUFFER must be >= 1, got %d", c.FeedBuffer)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cfgCopy := *c
	cfgCopy.RedisPassword = "***REDACTED***"
	cfgCopy.JWTSecret = "***REDACTED***"
	if c.RedisUser != "" {
		cfgCopy.RedisUser = "***REDACTED***"
	}
	if c.PostgresDSN != "" {
		cfgCopy.PostgresDSN = "***REDACTED***"
	}
	return cfgCopy
}
