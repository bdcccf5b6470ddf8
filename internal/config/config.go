// Package config loads the service configuration from environment variables.
// Call godotenv.Load before Load to pick up a local .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

const (
	DefaultPort           = "5001"
	DefaultMongoDatabase  = "chatApp"
	DefaultJWTTTL         = 72 * time.Hour
	DefaultSendBuffer     = 256
	DefaultMaxMessageSize = 4096
	DefaultShutdownWait   = 10 * time.Second
)

// Config aggregates every setting of the service.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Relay    RelayConfig
	LogLevel string
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// AllowAllOrigins reports whether the origin list contains "*".
func (c ServerConfig) AllowAllOrigins() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// StoreConfig selects and configures the durable store.
type StoreConfig struct {
	Driver        string
	DSN           string
	MongoURI      string
	MongoDatabase string
}

// RedisConfig configures the presence mirror. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// AuthConfig configures token issuing.
type AuthConfig struct {
	Secret string
	TTL    time.Duration
}

// RelayConfig tunes the live channel.
type RelayConfig struct {
	SendBuffer     int
	MaxMessageSize int64
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	relay, err := loadRelayConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Store:    store,
		Redis:    redisCfg,
		Auth:     auth,
		Relay:    relay,
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := getEnvOrDefault("PORT", DefaultPort)
	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	addr := port
	if !strings.Contains(port, ":") {
		addr = ":" + port
	}

	origins := []string{"*"}
	if raw := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); raw != "" {
		origins = parseList(raw)
	}

	return ServerConfig{Addr: addr, AllowedOrigins: origins}, nil
}

func loadStoreConfig() (StoreConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("STORE_DRIVER", DriverPostgres))
	cfg := StoreConfig{
		Driver:        driver,
		DSN:           getEnvOrDefault("DATABASE_DSN", "host=localhost user=user password=password dbname=chatrelay port=5432 sslmode=disable"),
		MongoURI:      getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnvOrDefault("MONGO_DATABASE", DefaultMongoDatabase),
	}

	switch driver {
	case DriverPostgres, DriverMongo:
		return cfg, nil
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_DRIVER value %q: want %s or %s", driver, DriverPostgres, DriverMongo)
	}
}

func loadRedisConfig() (RedisConfig, error) {
	db, err := parseIntEnv("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}
	return RedisConfig{
		Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func loadAuthConfig() (AuthConfig, error) {
	ttl, err := parseDurationEnv("JWT_TTL", DefaultJWTTTL)
	if err != nil {
		return AuthConfig{}, err
	}
	return AuthConfig{
		Secret: getEnvOrDefault("JWT_SECRET_KEY", "chatrelay-dev-secret"),
		TTL:    ttl,
	}, nil
}

func loadRelayConfig() (RelayConfig, error) {
	buffer, err := parseIntEnv("SEND_BUFFER", DefaultSendBuffer)
	if err != nil {
		return RelayConfig{}, err
	}
	if buffer < 1 {
		return RelayConfig{}, fmt.Errorf("invalid SEND_BUFFER value %d: must be positive", buffer)
	}

	size, err := parseIntEnv("MAX_MESSAGE_SIZE", DefaultMaxMessageSize)
	if err != nil {
		return RelayConfig{}, err
	}
	if size < 1 {
		return RelayConfig{}, fmt.Errorf("invalid MAX_MESSAGE_SIZE value %d: must be positive", size)
	}

	return RelayConfig{SendBuffer: buffer, MaxMessageSize: int64(size)}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
