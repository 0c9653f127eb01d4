package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kirieshkistudios/park-backend/internal/logging"
)

type Config struct {
	ServerPort string

	DBDriver       string // "pgx" or "postgres"
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSslMode      string
	DBMaxOpenConns int

	JWTSecret          string
	JWTExpirationHours time.Duration

	// InboundSecret authenticates reports pushed by the inference service.
	InboundSecret string
	// InferenceSecret is sent to the inference service on every forward.
	InferenceSecret  string
	InferenceURL     string
	InferenceBackend string // "http" or "rekognition"
	InferenceTimeout time.Duration

	BreakerFailures    int
	BreakerOpenTimeout time.Duration
	// RekognitionMinConfidence is a percentage, 0-100.
	RekognitionMinConfidence int

	ImageDir           string
	ImageSweepSchedule string
	MaxUploadBytes     int64
	UploadRatePerMin   int

	AWSRegion      string
	ReportQueueURL string
	IoTEndpoint    string
	IoTTopicPrefix string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Msg("could not load .env file")
	}

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),

		DBDriver:       getEnv("DB_DRIVER", "pgx"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnvInt("DB_PORT", 5432),
		DBUser:         getEnv("DB_USER", "park"),
		DBPassword:     getEnv("DB_PASSWORD", "park"),
		DBName:         getEnv("DB_NAME", "park"),
		DBSslMode:      getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 20),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTExpirationHours: time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,

		InboundSecret:    getEnv("INBOUND_SECRET", ""),
		InferenceSecret:  getEnv("INFERENCE_SECRET", ""),
		InferenceURL:     getEnv("INFERENCE_URL", "http://localhost:8001/receive-image/"),
		InferenceBackend: getEnv("INFERENCE_BACKEND", "http"),
		InferenceTimeout: getEnvDuration("INFERENCE_TIMEOUT", 15*time.Second),

		BreakerFailures:          getEnvInt("INFERENCE_BREAKER_FAILURES", 5),
		BreakerOpenTimeout:       getEnvDuration("INFERENCE_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		RekognitionMinConfidence: getEnvInt("REKOGNITION_MIN_CONFIDENCE", 80),

		ImageDir:           getEnv("IMAGE_DIR", "camera_snapshots"),
		ImageSweepSchedule: getEnv("IMAGE_SWEEP_SCHEDULE", "@every 10m"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		UploadRatePerMin:   getEnvInt("UPLOAD_RATE_PER_MINUTE", 30),

		AWSRegion:      getEnv("AWS_REGION", "eu-central-1"),
		ReportQueueURL: getEnv("REPORT_QUEUE_URL", ""),
		IoTEndpoint:    getEnv("IOT_ENDPOINT", ""),
		IoTTopicPrefix: getEnv("IOT_TOPIC_PREFIX", "parking/occupancy"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate rejects settings the server cannot run safely with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	return nil
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	logging.Debug().Str("key", key).Str("default", fallback).Msg("environment variable not set, using default")
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, strconv.Itoa(fallback))
	value, err := strconv.Atoi(raw)
	if err != nil {
		logging.Warn().Str("key", key).Str("value", raw).Msg("invalid integer, using default")
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, fallback.String())
	value, err := time.ParseDuration(raw)
	if err != nil {
		logging.Warn().Str("key", key).Str("value", raw).Msg("invalid duration, using default")
		return fallback
	}
	return value
}
