package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Templates TemplateConfig  `json:"templates"`
	GCS       GCSConfig       `json:"gcs"`
	Gotenberg GotenbergConfig `json:"gotenberg"`
	Rules     RulesConfig     `json:"rules"`
	Upload    UploadConfig    `json:"upload"`
	Archive   ArchiveConfig   `json:"archive"`
	Render    RenderConfig    `json:"render"`
	Log       LogConfig       `json:"log"`
}

type ServerConfig struct {
	Port         string   `json:"port" validate:"required,numeric"`
	Environment  string   `json:"environment" validate:"oneof=development production test"`
	AllowOrigins []string `json:"allow_origins" validate:"min=1"`
	StaticDir    string   `json:"static_dir"`
}

type TemplateConfig struct {
	Source string `json:"source" validate:"oneof=local gcs"`
	Dir    string `json:"dir" validate:"required_if=Source local"`
}

type GCSConfig struct {
	BucketName      string `json:"bucket_name"`
	ProjectID       string `json:"project_id"`
	CredentialsPath string `json:"credentials_path"`
	TemplatePrefix  string `json:"template_prefix"`
}

type GotenbergConfig struct {
	URL     string `json:"url" validate:"omitempty,url"`
	Timeout string `json:"timeout"`
}

type RulesConfig struct {
	File  string `json:"file"`
	Watch bool   `json:"watch"`
}

type UploadConfig struct {
	Dir      string        `json:"dir" validate:"required"`
	MaxAge   time.Duration `json:"max_age" validate:"gt=0"`
	MaxBytes int64         `json:"max_bytes" validate:"gt=0"`
}

type ArchiveConfig struct {
	Mode string `json:"mode" validate:"oneof=stream buffer"`
	Name string `json:"name" validate:"required"`
}

type RenderConfig struct {
	OutputFormat     string `json:"output_format" validate:"oneof=docx pdf"`
	PlaceholderOpen  string `json:"placeholder_open" validate:"required"`
	PlaceholderClose string `json:"placeholder_close" validate:"required"`
	Strict           bool   `json:"strict"`
}

type LogConfig struct {
	Level  string `json:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" validate:"oneof=json console"`
}

const (
	ArchiveModeStream = "stream"
	ArchiveModeBuffer = "buffer"

	TemplateSourceLocal = "local"
	TemplateSourceGCS   = "gcs"
)

// Load reads configuration from the environment, after applying an
// optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	maxAge, err := getDuration("UPLOAD_MAX_AGE", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	maxBytes, err := getInt64("MAX_UPLOAD_BYTES", 32<<20)
	if err != nil {
		return nil, err
	}
	watch, err := getBool("RULES_WATCH", true)
	if err != nil {
		return nil, err
	}
	strict, err := getBool("STRICT_PLACEHOLDERS", false)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "5000"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			AllowOrigins: parseAllowOrigins(),
			StaticDir:    getEnv("STATIC_DIR", ""),
		},
		Templates: TemplateConfig{
			Source: getEnv("TEMPLATE_SOURCE", TemplateSourceLocal),
			Dir:    getEnv("TEMPLATES_DIR", "templates"),
		},
		GCS: GCSConfig{
			BucketName:      getEnv("GCS_BUCKET_NAME", ""),
			ProjectID:       getEnv("GOOGLE_CLOUD_PROJECT", ""),
			CredentialsPath: getEnv("GCS_CREDENTIALS_PATH", ""),
			TemplatePrefix:  getEnv("GCS_TEMPLATE_PREFIX", ""),
		},
		Gotenberg: GotenbergConfig{
			URL:     getEnv("GOTENBERG_URL", "http://localhost:3000"),
			Timeout: getEnv("GOTENBERG_TIMEOUT", "30s"),
		},
		Rules: RulesConfig{
			File:  getEnv("RULES_FILE", ""),
			Watch: watch,
		},
		Upload: UploadConfig{
			Dir:      getEnv("UPLOAD_DIR", "uploads"),
			MaxAge:   maxAge,
			MaxBytes: maxBytes,
		},
		Archive: ArchiveConfig{
			Mode: getEnv("ARCHIVE_MODE", ArchiveModeStream),
			Name: getEnv("ARCHIVE_NAME", "appointment_letters.zip"),
		},
		Render: RenderConfig{
			OutputFormat:     getEnv("OUTPUT_FORMAT", "docx"),
			PlaceholderOpen:  getEnv("PLACEHOLDER_OPEN", "{"),
			PlaceholderClose: getEnv("PLACEHOLDER_CLOSE", "}"),
			Strict:           strict,
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks field constraints and the settings that depend on each other.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Templates.Source == TemplateSourceGCS && c.GCS.BucketName == "" {
		return errors.New("invalid configuration: GCS_BUCKET_NAME is required when TEMPLATE_SOURCE=gcs")
	}
	if c.Render.OutputFormat == "pdf" && c.Gotenberg.URL == "" {
		return errors.New("invalid configuration: GOTENBERG_URL is required when OUTPUT_FORMAT=pdf")
	}
	return nil
}

// AllowsAllOrigins reports whether CORS is open to every origin.
func (s ServerConfig) AllowsAllOrigins() bool {
	for _, origin := range s.AllowOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseAllowOrigins() []string {
	origins := getEnv("ALLOW_ORIGINS", "*")

	var allowOrigins []string
	for _, origin := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			allowOrigins = append(allowOrigins, trimmed)
		}
	}
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}
	return allowOrigins
}
