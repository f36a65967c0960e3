package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	HTTPPort     string
	HTTPSPort    string
	Domains      []string
	CertCacheDir string
	LogDir       string

	DatabaseURL     string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AnthropicModel  string

	ChunkingStrategy string
	ChunkSize        int
	ChunkOverlap     int
	MaxChunkSize     int

	BatchConcurrency int
	MaxUploadSize    int64

	TopK            int
	ScoreThreshold  *float64
	MaxContextChars int
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() Config {
	return Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		HTTPPort:     getEnv("HTTP_PORT", "8086"),
		HTTPSPort:    getEnv("HTTPS_PORT", "443"),
		Domains:      []string{getEnv("DOMAIN", "example.com")},
		CertCacheDir: getEnv("CERT_CACHE_DIR", "/etc/letsencrypt/live/example.com"),
		LogDir:       getEnv("LOG_DIR", "logs"),

		DatabaseURL:     getEnv("DATABASE_URL", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", ""),

		ChunkingStrategy: getEnv("CHUNKING_STRATEGY", "semantic"),
		ChunkSize:        getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap:     getEnvAsInt("CHUNK_OVERLAP", 200),
		MaxChunkSize:     getEnvAsInt("MAX_CHUNK_SIZE", 1500),

		BatchConcurrency: getEnvAsInt("BATCH_CONCURRENCY", 4),
		MaxUploadSize:    int64(getEnvAsInt("MAX_UPLOAD_SIZE", 50*1024*1024)),

		TopK:            getEnvAsInt("TOP_K", 5),
		ScoreThreshold:  getEnvAsFloat("SCORE_THRESHOLD"),
		MaxContextChars: getEnvAsInt("MAX_CONTEXT_CHARS", 12000),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsFloat returns nil when the variable is unset or unparsable, so an
// absent score threshold means "no filtering" rather than zero.
func getEnvAsFloat(key string) *float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return &value
	}
	return nil
}
