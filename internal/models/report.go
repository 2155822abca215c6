package models

import (
	"time"
)

// PageBreak separates the OCR text of consecutive pages in the aggregated text
const PageBreak = "\n\n--- Page Break ---\n\n"

// AnalysisFallback replaces the content of a section whose generation failed
const AnalysisFallback = "Analysis not available"

// SectionNames is the fixed, ordered list of generated report sections
var SectionNames = []string{
	"Executive Summary",
	"Chairperson's Letter",
	"Company Overview",
	"Financial Highlights",
	"Business Review",
	"Strategic Initiatives",
	"Corporate Governance",
	"Sustainability and CSR Initiatives",
	"Risk Factors and Management",
	"Future Outlook",
}

// UploadedImage is one uploaded page, persisted to a temp path for the duration of a request
type UploadedImage struct {
	Index       int    `json:"index"`       // Upload position (0-based)
	Filename    string `json:"filename"`    // Original filename from the form
	ContentType string `json:"contentType"` // Sniffed MIME type
	Path        string `json:"-"`           // Temp file path
	Size        int64  `json:"size"`        // Bytes
}

// SectionAnalysis is the generated markdown for one report section
type SectionAnalysis struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ReportResponse is the terminal artifact returned to the caller
type ReportResponse struct {
	ID       string            `json:"id,omitempty"`      // Set when the report was stored
	Text     string            `json:"text"`              // Aggregated OCR text
	Analyses []SectionAnalysis `json:"analyses"`          // Always in SectionNames order
	Partial  bool              `json:"partial,omitempty"` // A page or section fell back to placeholder text
}

// StoredReport is a persisted ReportResponse
type StoredReport struct {
	ID        string            `json:"id"`
	Owner     string            `json:"owner,omitempty"` // JWT subject, empty when auth is disabled
	Text      string            `json:"text"`
	Analyses  []SectionAnalysis `json:"analyses"`
	Partial   bool              `json:"partial"`
	PageCount int               `json:"pageCount"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ErrorResponse is the JSON body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// Max total multipart body, in megabytes
	MaxUploadMB int64 `yaml:"max_upload_mb"`

	Log      LogConfig      `yaml:"log"`
	OCR      OCRConfig      `yaml:"ocr"`
	AI       AIConfig       `yaml:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    StoreConfig    `yaml:"store"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Auth     AuthConfig     `yaml:"auth"`
}

// LogConfig controls the zerolog root logger
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Pretty bool   `yaml:"pretty"` // Console writer instead of JSON
}

// OCRConfig represents OCR-specific configuration
type OCRConfig struct {
	Engine       string `yaml:"engine"`        // "together", "openai", "gemini" or "tesseract"
	Language     string `yaml:"language"`      // Tesseract language (default: "eng")
	Model        string `yaml:"model"`         // Vision model override for the selected engine
	MaxDimension int    `yaml:"max_dimension"` // Longest side after preprocessing, in pixels
}

// AIConfig represents text-generation provider configuration
type AIConfig struct {
	OpenAI   ProviderConfig `yaml:"openai"`
	Groq     ProviderConfig `yaml:"groq"`
	Together ProviderConfig `yaml:"together"`
	Gemini   ProviderConfig `yaml:"gemini"`

	// Default provider
	DefaultProvider string `yaml:"default_provider"` // "openai", "groq", "together", "gemini"
}

// ProviderConfig holds credentials and model for one hosted provider
type ProviderConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty"` // For OpenAI-compatible endpoints
	Model       string  `yaml:"model"`
	VisionModel string  `yaml:"vision_model,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Temperature float32 `yaml:"temperature,omitempty"`
}

// PipelineConfig bounds the two fan-out stages
type PipelineConfig struct {
	OCRConcurrency      int           `yaml:"ocr_concurrency"`
	AnalysisConcurrency int           `yaml:"analysis_concurrency"`
	OCRTimeout          time.Duration `yaml:"ocr_timeout"`
	AnalysisTimeout     time.Duration `yaml:"analysis_timeout"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	OCRFailurePolicy    string        `yaml:"ocr_failure_policy"` // "abort" or "fallback"
}

// StoreConfig selects the report store
type StoreConfig struct {
	Driver      string `yaml:"driver"` // "", "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
}

// ArchiveConfig configures MinIO page archiving; empty endpoint disables it
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// AuthConfig enables JWT protection of /api when Secret is set
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}
