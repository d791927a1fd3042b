package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string

	FirestoreProject string

	RedisURL string

	// BadgerDir is the directory for the durable local counter stores.
	BadgerDir string

	JWTSecret string

	// AuditDSN is the Postgres connection string for reconcile-run history.
	// Optional; empty disables audit logging.
	AuditDSN string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	badgerDir := os.Getenv("BADGER_DIR")
	if badgerDir == "" {
		badgerDir = "./data/counters"
	}

	return &Config{
		ServerPort: serverPort,

		FirestoreProject: os.Getenv("FIRESTORE_PROJECT"),

		RedisURL: redisURL,

		BadgerDir: badgerDir,

		JWTSecret: os.Getenv("JWT_SECRET"),

		AuditDSN: os.Getenv("AUDIT_DSN"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),
	}, nil
}
