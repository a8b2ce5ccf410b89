package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sealevel-monitor/dashboard/services/api/cache"
	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// Store and cache backend names.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config holds environment-driven settings for the REST API.
type Config struct {
	DatabaseURL     string
	Port            int
	BearerToken     string
	LogLevel        string
	LogFormat       string
	StoreBackend    string
	StoreTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	CacheBackend    string
	CacheMaxEntries int
	CacheShards     int
	CacheTTLs       cache.TTLs
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// AnomalyStrategies lists scorer names in priority order.
	AnomalyStrategies []string
	// BaselineModelPath points to a YAML station model; empty uses the built-in one.
	BaselineModelPath string
}

var ttlEnv = map[sealevel.Level]string{
	sealevel.LevelRaw:       "CACHE_TTL_RAW",
	sealevel.LevelHourly:    "CACHE_TTL_HOURLY",
	sealevel.LevelTriHourly: "CACHE_TTL_TRI_HOURLY",
	sealevel.LevelDaily:     "CACHE_TTL_DAILY",
	sealevel.LevelWeekly:    "CACHE_TTL_WEEKLY",
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Port:              8080,
		LogLevel:          envOr("LOG_LEVEL", "info"),
		LogFormat:         envOr("LOG_FORMAT", "json"),
		StoreBackend:      strings.ToLower(envOr("STORE_BACKEND", StorePostgres)),
		CacheBackend:      strings.ToLower(envOr("CACHE_BACKEND", CacheMemory)),
		RedisAddr:         envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		BearerToken:       os.Getenv("API_BEARER_TOKEN"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		CacheTTLs:         make(cache.TTLs, len(ttlEnv)),
		BaselineModelPath: os.Getenv("BASELINE_MODEL_PATH"),
	}

	switch cfg.StoreBackend {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", StorePostgres)
		}
	case StoreMemory:
	default:
		return cfg, fmt.Errorf("invalid STORE_BACKEND: %s", cfg.StoreBackend)
	}

	switch cfg.CacheBackend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return cfg, fmt.Errorf("invalid CACHE_BACKEND: %s", cfg.CacheBackend)
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	var err error
	if cfg.StoreTimeout, err = positiveDuration("STORE_TIMEOUT", 15*time.Second); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = positiveDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = positiveDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.CacheMaxEntries, err = positiveInt("CACHE_MAX_ENTRIES", 1000); err != nil {
		return cfg, err
	}
	if cfg.CacheShards, err = positiveInt("CACHE_SHARDS", 16); err != nil {
		return cfg, err
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		n, err := strconv.Atoi(dbStr)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("invalid REDIS_DB: %s", dbStr)
		}
		cfg.RedisDB = n
	}

	defaults := cache.DefaultTTLs()
	for i, level := range sealevel.Levels {
		ttl, err := positiveDuration(ttlEnv[level], defaults[level])
		if err != nil {
			return cfg, err
		}
		cfg.CacheTTLs[level] = ttl
		// Coarser levels change less often and must not expire sooner.
		if i > 0 {
			finer := sealevel.Levels[i-1]
			if ttl < cfg.CacheTTLs[finer] {
				return cfg, fmt.Errorf("invalid %s: %s is shorter than %s (%s)",
					ttlEnv[level], ttl, ttlEnv[finer], cfg.CacheTTLs[finer])
			}
		}
	}

	for _, s := range strings.Split(envOr("ANOMALY_STRATEGIES", "baseline,iqr"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.AnomalyStrategies = append(cfg.AnomalyStrategies, strings.ToLower(s))
		}
	}

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func positiveDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %s", key, s)
	}
	return d, nil
}

func positiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %s", key, s)
	}
	return n, nil
}
