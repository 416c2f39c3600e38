package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

type Config struct {
	AppMode string `yaml:"app_mode"`

	// chat client
	APIURL           string        `yaml:"api_url"`
	SocketURL        string        `yaml:"socket_url"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`
	HTTPMaxRetries   int           `yaml:"http_max_retries"`
	HTTPInitialDelay time.Duration `yaml:"http_initial_backoff"`
	HTTPMaxDelay     time.Duration `yaml:"http_max_backoff"`
	SocketMaxBackoff time.Duration `yaml:"socket_max_backoff"`
	SessionBackend   string        `yaml:"session_backend"`
	SessionDir       string        `yaml:"session_dir"`
	SessionProfile   string        `yaml:"session_profile"`
	SessionTTL       time.Duration `yaml:"session_ttl"`

	// relay
	RelayPort        string  `yaml:"relay_port"`
	RelayMode        string  `yaml:"relay_mode"`
	RelayStore       string  `yaml:"relay_store"`
	RelayRedisFanout bool    `yaml:"relay_redis_fanout"`
	JWTSecret        string  `yaml:"jwt_secret"`
	SendRate         float64 `yaml:"send_rate"`
	SendBurst        int     `yaml:"send_burst"`

	DBHost     string `yaml:"db_host"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBPort     string `yaml:"db_port"`

	RedisHost     string `yaml:"redis_host"`
	RedisPort     string `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppMode: getEnv("APP_ENV", "development"),

		APIURL:           getEnv("API_URL", "http://localhost:5000/api"),
		SocketURL:        getEnv("SOCKET_URL", "ws://localhost:5000/socket"),
		HTTPTimeout:      getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),
		HTTPMaxRetries:   getEnvAsInt("HTTP_MAX_RETRIES", 3),
		HTTPInitialDelay: getEnvAsDuration("HTTP_INITIAL_BACKOFF", 200*time.Millisecond),
		HTTPMaxDelay:     getEnvAsDuration("HTTP_MAX_BACKOFF", 2*time.Second),
		SocketMaxBackoff: getEnvAsDuration("SOCKET_MAX_BACKOFF", 30*time.Second),
		SessionBackend:   getEnv("SESSION_BACKEND", "file"),
		SessionDir:       getEnv("SESSION_DIR", defaultSessionDir()),
		SessionProfile:   getEnv("SESSION_PROFILE", "default"),
		SessionTTL:       getEnvAsDuration("SESSION_TTL", 7*24*time.Hour),

		RelayPort:        getEnv("RELAY_PORT", "5000"),
		RelayMode:        getEnv("RELAY_MODE", "debug"),
		RelayStore:       getEnv("RELAY_STORE", "memory"),
		RelayRedisFanout: getEnvAsBool("RELAY_REDIS_FANOUT", false),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		SendRate:         getEnvAsFloat("SEND_RATE", 5),
		SendBurst:        getEnvAsInt("SEND_BURST", 10),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "storefront_chat"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the file
// keep their current values.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// DatabaseURL is the pgx connection string for the relay store.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".storefront-chat"
	}
	return filepath.Join(home, ".config", "storefront-chat")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
