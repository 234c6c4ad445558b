package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"fulfillment-service/pkg/database"

	"go.uber.org/zap"
)

type Config struct {
	Port string
	DB   DB

	// Резервации
	ReservationTTL time.Duration // сколько живёт hold по умолчанию
	SweepInterval  time.Duration // период обхода просроченных резерваций

	KafkaBrokers []string
	KafkaTopic   string

	StripeSecretKey string
}

type DB struct {
	database.Config
}

func Load(log *zap.Logger) *Config {
	return &Config{
		Port: getEnv("APP_PORT", log),
		DB: DB{
			Config: database.Config{
				Host:     getEnv("DB_HOST", log),
				Port:     getEnv("DB_PORT", log),
				User:     getEnv("DB_USER", log),
				Password: getEnv("DB_PASSWORD", log),
				Name:     getEnv("DB_NAME", log),
				SSLMode:  getEnv("DB_SSLMODE", log),
			},
		},
		ReservationTTL:  time.Duration(atoiDefault(os.Getenv("RESERVATION_TTL_MINUTES"), 15)) * time.Minute,
		SweepInterval:   time.Duration(atoiDefault(os.Getenv("SWEEP_INTERVAL_SECONDS"), 300)) * time.Second,
		KafkaBrokers:    splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      getEnv("KAFKA_TOPIC_FULFILLMENT", log),
		StripeSecretKey: getEnv("STRIPE_SECRET_KEY", log),
	}
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("Обязательная переменная окружения не установлена", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(s, ",") {
		pt := strings.TrimSpace(p)
		if pt != "" {
			parts = append(parts, pt)
		}
	}
	return parts
}
