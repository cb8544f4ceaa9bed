package config

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Config struct {
	MongoClient *mongo.Client
	DBName      string
	Port        string

	JWTSecret     string
	WebhookSecret string

	SweeperExpirationInterval time.Duration
	SweeperRetentionInterval  time.Duration
	RetentionWindow           time.Duration
	AbandonmentWindow         time.Duration
}

// Load reads .env (if present) and the environment, connects to Mongo, and
// returns the process configuration.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	uri := getenv("MONGO_URI", "mongodb://localhost:27017")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return &Config{
		MongoClient:   client,
		DBName:        getenv("DB_NAME", "crowdfund"),
		Port:          getenv("PORT", "8080"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		WebhookSecret: os.Getenv("GATEWAY_WEBHOOK_SECRET"),

		SweeperExpirationInterval: getduration("SWEEPER_EXPIRATION_INTERVAL_MIN", 15) * time.Minute,
		SweeperRetentionInterval:  getduration("SWEEPER_RETENTION_INTERVAL_MIN", 60) * time.Minute,
		RetentionWindow:           getduration("RETENTION_WINDOW_DAYS", 30) * 24 * time.Hour,
		AbandonmentWindow:         getduration("ABANDONMENT_WINDOW_DAYS", 90) * 24 * time.Hour,
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback int64) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return time.Duration(n)
		}
		log.Printf("Invalid %s=%q, using default %d", key, v, fallback)
	}
	return time.Duration(fallback)
}
