package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDatabaseDSN = "host=localhost user=postgres password=postgres dbname=stockguard port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:5173"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Logger     LoggerConfig
	JWT        JWTConfig
	Stock      StockConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Accounting AccountingConfig
}

type ServerConfig struct {
	HTTPPort        string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	DSN        string
	Migrations string // "sql" runs embedded migrations, anything else uses AutoMigrate
	MaxRetries int
	Debug      bool
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type JWTConfig struct {
	Secret string
}

type StockConfig struct {
	BlockOnInsufficientStock bool
	MaxRetries               int
	LockTTL                  time.Duration
	ExpiringWithinDays       int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers    []string
	SalesTopic string
	GroupID    string
}

type AccountingConfig struct {
	URSSAFRate            float64
	RevenueCeiling        float64
	VATFranchiseThreshold float64
}

// Load reads the environment, after loading .env when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			HTTPPort:        getEnv("HTTP_PORT", "8080"),
			CORSOrigins:     getEnvSlice("CORS_ALLOWED_ORIGINS", []string{defaultCORSOrigins}),
			ShutdownTimeout: time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Database: DatabaseConfig{
			DSN:        getEnv("DATABASE_DSN", defaultDatabaseDSN),
			Migrations: getEnv("DB_MIGRATIONS", "auto"),
			MaxRetries: getEnvInt("DB_MAX_RETRIES", 10),
			Debug:      getEnvBool("DB_DEBUG", false),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOG_LEVEL", "info"),
			Encoding:          getEnv("LOG_ENCODING", "json"),
			DisableCaller:     getEnvBool("LOG_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOG_DISABLE_STACKTRACE", true),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Stock: StockConfig{
			BlockOnInsufficientStock: getEnvBool("STOCK_BLOCK_ON_INSUFFICIENT", false),
			MaxRetries:               getEnvInt("STOCK_MAX_RETRIES", 3),
			LockTTL:                  time.Duration(getEnvInt("STOCK_LOCK_TTL_SECONDS", 5)) * time.Second,
			ExpiringWithinDays:       getEnvInt("STOCK_EXPIRING_WITHIN_DAYS", 3),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnvSlice("KAFKA_BROKERS", nil),
			SalesTopic: getEnv("KAFKA_SALES_TOPIC", "pos.sales"),
			GroupID:    getEnv("KAFKA_GROUP_ID", "stockguard-ledger"),
		},
		Accounting: AccountingConfig{
			URSSAFRate:            getEnvFloat("URSSAF_RATE", 0.123),
			RevenueCeiling:        getEnvFloat("URSSAF_REVENUE_CEILING", 188700),
			VATFranchiseThreshold: getEnvFloat("VAT_FRANCHISE_THRESHOLD", 85000),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.Stock.MaxRetries < 1 {
		return fmt.Errorf("STOCK_MAX_RETRIES must be >= 1, got %d", c.Stock.MaxRetries)
	}
	if c.Accounting.URSSAFRate < 0 || c.Accounting.URSSAFRate >= 1 {
		return fmt.Errorf("URSSAF_RATE must be in [0,1), got %v", c.Accounting.URSSAFRate)
	}
	return nil
}

// Warnings lists settings still on their development defaults.
func (c *Config) Warnings() []string {
	var out []string
	if c.Database.DSN == defaultDatabaseDSN {
		out = append(out, "DATABASE_DSN uses the development default")
	}
	if len(c.Server.CORSOrigins) == 1 && c.Server.CORSOrigins[0] == defaultCORSOrigins {
		out = append(out, "CORS_ALLOWED_ORIGINS uses the development default")
	}
	return out
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getEnvSlice(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
