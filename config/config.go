package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Store    StoreConfig
	DB       DBConfig
	Redis    RedisConfig
	HTTP     HTTPConfig
	Telegram TelegramConfig
	Admin    AdminConfig
	Orders   OrdersConfig
	LogLevel string
}

// StoreConfig selects the key-value backend: memory, sqlite, postgres or redis.
type StoreConfig struct {
	Backend     string
	SQLitePath  string
	AutoMigrate bool
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type RedisConfig struct {
	Addr   string
	Prefix string
}

type HTTPConfig struct {
	Addr string
}

type TelegramConfig struct {
	Token      string // customer bot
	StaffToken string // staff bot (order moderation, menu admin)
}

// AdminConfig seeds the first back-office account when no admin exists yet.
type AdminConfig struct {
	Email    string
	Password string
}

type OrdersConfig struct {
	PickupWindow    time.Duration
	RefreshInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))

	return &Config{
		Store: StoreConfig{
			Backend:     strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
			SQLitePath:  getEnv("SQLITE_PATH", "campus_cafe.db"),
			AutoMigrate: getBool("AUTO_MIGRATE"),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     port,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "campus_cafe"),
		},
		Redis: RedisConfig{
			Addr:   getEnv("REDIS_ADDR", "localhost:6379"),
			Prefix: getEnv("REDIS_PREFIX", "campus-cafe"),
		},
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Telegram: TelegramConfig{
			Token:      getEnv("TOKEN", ""),
			StaffToken: getEnv("STAFF_TOKEN", ""),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Orders: OrdersConfig{
			PickupWindow:    getDuration("PICKUP_WINDOW", 20*time.Minute),
			RefreshInterval: getDuration("ORDERS_REFRESH_INTERVAL", 30*time.Second),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getBool accepts "1" or "true" (any case), like AUTO_MIGRATE always did.
func getBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return v == "1" || strings.EqualFold(v, "true")
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
