package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL   string
	StorageDriver string
	JWTSecretKey  string
	ServerPort    int

	RedisURL        string
	BracketCacheTTL time.Duration

	Venues                 []string
	SingleActiveTournament bool
	// CascadePolicy is validated by services.ParseDownstreamPolicy.
	CascadePolicy      string
	CORSAllowedOrigins []string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Отсутствие .env не ошибка.
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from any variable source.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := &Config{
		DatabaseURL:       get("DATABASE_URL"),
		StorageDriver:     strings.ToLower(get("STORAGE_DRIVER")),
		JWTSecretKey:      get("JWT_SECRET_KEY"),
		RedisURL:          get("REDIS_URL"),
		CascadePolicy:     strings.ToLower(get("CASCADE_POLICY")),
		R2AccountID:       get("R2_ACCOUNT_ID"),
		R2AccessKeyID:     get("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: get("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      get("R2_BUCKET_NAME"),
		R2PublicBaseURL:   get("R2_PUBLIC_BASE_URL"),
	}

	if cfg.StorageDriver == "" {
		cfg.StorageDriver = StorageDriverPostgres
	}
	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case StorageDriverMemory:
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMemory, cfg.StorageDriver)
	}

	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := get("SERVER_PORT")
	if portStr == "" {
		portStr = "8080" // Порт по умолчанию
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	cfg.BracketCacheTTL = 5 * time.Minute
	if raw := get("BRACKET_CACHE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid BRACKET_CACHE_TTL environment variable: %w", err)
		}
		if ttl <= 0 {
			return nil, fmt.Errorf("BRACKET_CACHE_TTL must be positive, got %s", ttl)
		}
		cfg.BracketCacheTTL = ttl
	}

	if raw := get("SINGLE_ACTIVE_TOURNAMENT"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SINGLE_ACTIVE_TOURNAMENT environment variable: %w", err)
		}
		cfg.SingleActiveTournament = v
	}

	cfg.Venues = splitList(get("VENUES"))
	cfg.CORSAllowedOrigins = splitList(get("CORS_ALLOWED_ORIGINS"))

	if cfg.R2BucketName != "" && (cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "") {
		return nil, fmt.Errorf("R2_BUCKET_NAME is set but R2_ACCOUNT_ID, R2_ACCESS_KEY_ID or R2_SECRET_ACCESS_KEY is missing")
	}

	return cfg, nil
}

// splitList parses a comma separated value, dropping empty entries.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
