package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/empire-ui/report-ocr-service/internal/models"
)

// Load reads the YAML config at path, applies environment overrides and fills
// defaults. A missing file is not an error: the service then runs on env vars
// and defaults alone.
func Load(path string) (*models.Config, error) {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()

	var config models.Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnv(&config)
	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyEnv(config *models.Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}
	setString(&config.Host, "HOST")
	setString(&config.Log.Level, "LOG_LEVEL")

	setString(&config.OCR.Engine, "OCR_ENGINE")
	setString(&config.OCR.Language, "OCR_LANGUAGE")
	setString(&config.OCR.Model, "OCR_MODEL")

	setString(&config.AI.DefaultProvider, "AI_PROVIDER")
	setString(&config.AI.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&config.AI.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&config.AI.OpenAI.Model, "OPENAI_MODEL")
	setString(&config.AI.Groq.APIKey, "GROQ_API_KEY")
	setString(&config.AI.Groq.Model, "GROQ_MODEL")
	setString(&config.AI.Together.APIKey, "TOGETHER_API_KEY")
	setString(&config.AI.Together.Model, "TOGETHER_MODEL")
	setString(&config.AI.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&config.AI.Gemini.Model, "GEMINI_MODEL")

	setString(&config.Pipeline.OCRFailurePolicy, "OCR_FAILURE_POLICY")

	setString(&config.Store.Driver, "STORE_DRIVER")
	setString(&config.Store.DatabaseURL, "DATABASE_URL")
	if config.Store.DatabaseURL == "" {
		config.Store.DatabaseURL = databaseURLFromParts()
	}
	setString(&config.Store.SQLitePath, "SQLITE_PATH")

	setString(&config.Archive.Endpoint, "MINIO_ENDPOINT")
	setString(&config.Archive.AccessKey, "MINIO_ACCESS_KEY")
	setString(&config.Archive.SecretKey, "MINIO_SECRET_KEY")
	setString(&config.Archive.Bucket, "MINIO_BUCKET")
	if os.Getenv("MINIO_USE_SSL") == "true" {
		config.Archive.UseSSL = true
	}

	setString(&config.Auth.JWTSecret, "JWT_SECRET")
}

func applyDefaults(config *models.Config) {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.Host == "" {
		config.Host = "0.0.0.0"
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 50
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}

	if config.OCR.Engine == "" {
		config.OCR.Engine = "together"
	}
	if config.OCR.Language == "" {
		config.OCR.Language = "eng"
	}
	if config.OCR.MaxDimension <= 0 {
		config.OCR.MaxDimension = 2000
	}

	if config.AI.DefaultProvider == "" {
		config.AI.DefaultProvider = "together"
	}
	setDefault(&config.AI.OpenAI.BaseURL, "https://api.openai.com/v1")
	setDefault(&config.AI.OpenAI.Model, "gpt-4o-mini")
	setDefault(&config.AI.OpenAI.VisionModel, "gpt-4o")
	setDefault(&config.AI.Groq.BaseURL, "https://api.groq.com/openai/v1")
	setDefault(&config.AI.Groq.Model, "llama-3.3-70b-versatile")
	setDefault(&config.AI.Together.BaseURL, "https://api.together.xyz/v1")
	setDefault(&config.AI.Together.Model, "meta-llama/Llama-3.3-70B-Instruct-Turbo")
	setDefault(&config.AI.Together.VisionModel, "meta-llama/Llama-3.2-90B-Vision-Instruct-Turbo")
	setDefault(&config.AI.Gemini.Model, "gemini-1.5-flash")
	setDefault(&config.AI.Gemini.VisionModel, "gemini-1.5-flash")

	if config.Pipeline.OCRConcurrency <= 0 {
		config.Pipeline.OCRConcurrency = 4
	}
	if config.Pipeline.AnalysisConcurrency <= 0 {
		config.Pipeline.AnalysisConcurrency = 5
	}
	if config.Pipeline.OCRTimeout <= 0 {
		config.Pipeline.OCRTimeout = 90 * time.Second
	}
	if config.Pipeline.AnalysisTimeout <= 0 {
		config.Pipeline.AnalysisTimeout = 60 * time.Second
	}
	if config.Pipeline.RequestTimeout <= 0 {
		config.Pipeline.RequestTimeout = 5 * time.Minute
	}
	if config.Pipeline.OCRFailurePolicy == "" {
		config.Pipeline.OCRFailurePolicy = "abort"
	}

	if config.Store.Driver == "sqlite" && config.Store.SQLitePath == "" {
		config.Store.SQLitePath = "./data/reports.db"
	}
	if config.Archive.Bucket == "" {
		config.Archive.Bucket = "annual-reports"
	}
}

func validate(config *models.Config) error {
	switch config.Pipeline.OCRFailurePolicy {
	case "abort", "fallback":
	default:
		return fmt.Errorf("invalid ocr_failure_policy %q (want abort or fallback)", config.Pipeline.OCRFailurePolicy)
	}
	switch config.Store.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported store driver: %s", config.Store.Driver)
	}
	if config.Store.Driver == "postgres" && config.Store.DatabaseURL == "" {
		return errors.New("store driver postgres requires database_url, DATABASE_URL or DB_HOST/DB_USER/DB_NAME")
	}
	return nil
}

// databaseURLFromParts builds a postgres URL from DB_HOST, DB_PORT, DB_USER,
// DB_PASSWORD and DB_NAME. Host, user and name are required.
func databaseURLFromParts() string {
	host := os.Getenv("DB_HOST")
	user := os.Getenv("DB_USER")
	dbname := os.Getenv("DB_NAME")
	if host == "" || user == "" || dbname == "" {
		return ""
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(user, os.Getenv("DB_PASSWORD")),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + dbname,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDefault(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}
