package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	AppMode     string
	ClientURL   string
	DBHost      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPort      string
	JWTSecret   string
	JWTExpiryHr int

	VitroCADBaseURL string
	VitroCADAPIPath string
	VitroCADTimeout time.Duration
	// Service token used by the polling monitor for list lookups.
	VitroCADToken string

	MonitorIntervalMs int
	MonitorListID     string
	MonitorAutoStart  bool

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PublicBase string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:     getEnv("APP_PORT", "8080"),
		AppMode:     getEnv("APP_MODE", "development"),
		ClientURL:   getEnv("CLIENT_URL", "http://localhost:3000"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "nexuschat"),
		DBPort:      getEnv("DB_PORT", "5432"),
		JWTSecret:   getEnv("JWT_SECRET", "change-me"),
		JWTExpiryHr: getEnvAsInt("JWT_EXPIRY_HOURS", 168),

		VitroCADBaseURL: getEnv("VITROCAD_BASE_URL", "http://localhost:9000"),
		VitroCADAPIPath: getEnv("VITROCAD_API_PATH", "/api"),
		VitroCADTimeout: time.Duration(getEnvAsInt("VITROCAD_TIMEOUT_SEC", 10)) * time.Second,
		VitroCADToken:   getEnv("VITROCAD_SERVICE_TOKEN", ""),

		MonitorIntervalMs: getEnvAsInt("MONITOR_INTERVAL_MS", 60000),
		MonitorListID:     getEnv("MONITOR_LIST_ID", ""),
		MonitorAutoStart:  getEnvAsBool("MONITOR_AUTO_START", true),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		S3Region:     getEnv("S3_REGION", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3PublicBase: getEnv("S3_PUBLIC_BASE", ""),
	}
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

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
