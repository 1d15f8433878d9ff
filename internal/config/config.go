package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var pricesYAML []byte

type Config struct {
	Detection DetectionConfig `yaml:"detection"`
	Identity  IdentityConfig  `yaml:"identity"`
	Scan      ScanConfig      `yaml:"scan"`
	Inference InferenceConfig `yaml:"-"`
	Database  DatabaseConfig  `yaml:"-"`
	LLM       LLMConfig       `yaml:"-"`
	OpenAI    OpenAIConfig    `yaml:"-"`
	Gemini    GeminiConfig    `yaml:"-"`
	Ollama    OllamaConfig    `yaml:"-"`
	LlamaCpp  LlamaCppConfig  `yaml:"-"`
	Log       LogConfig       `yaml:"-"`
	Web       WebConfig       `yaml:"-"`
	Prices    PricesConfig    `yaml:"-"`
}

// DetectionConfig holds decoder thresholds and model input sizes.
type DetectionConfig struct {
	ObjectConfidence   float64 `yaml:"object_confidence"`
	FaceConfidence     float64 `yaml:"face_confidence"`
	IoUThreshold       float64 `yaml:"iou_threshold"`
	ObjectInputSize    int     `yaml:"object_input_size"`
	FaceInputSize      int     `yaml:"face_input_size"`
	EmbedInputSize     int     `yaml:"embed_input_size"`
	MaxFacesPerImage   int     `yaml:"max_faces_per_image"`
	FacesRequirePerson bool    `yaml:"faces_require_person"` // only look for faces when a person was detected
}

// IdentityConfig holds person assignment settings.
type IdentityConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
	MaxRetries    int     `yaml:"max_retries"`
}

type ScanConfig struct {
	Recursive   bool `yaml:"recursive"`
	Concurrency int  `yaml:"concurrency"`
}

type InferenceConfig struct {
	URL     string        // defaults to http://localhost:8000
	Timeout time.Duration // per request, defaults to 60s
}

type DatabaseConfig struct {
	Driver        string // postgres or sqlite (default sqlite)
	URL           string // PostgreSQL connection URL
	Path          string // SQLite database file (default gallery.db)
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the person HNSW index (optional)
}

// LLMConfig selects the description enhancement provider.
type LLMConfig struct {
	Provider string // openai, gemini, ollama, llamacpp or empty to disable
}

type OpenAIConfig struct {
	Token string
	Model string // defaults to gpt-4.1-mini
}

type GeminiConfig struct {
	APIKey string
}

type OllamaConfig struct {
	URL   string // defaults to http://localhost:11434
	Model string // defaults to llama3.2
}

type LlamaCppConfig struct {
	URL   string // defaults to http://localhost:8080
	Model string // defaults to llama
}

type LogConfig struct {
	Env   string // prod, dev or local (default local)
	Level string // optional override: debug, info, warn, error
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

type ModelPricing struct {
	Standard RequestPricing `yaml:"standard"`
	Batch    RequestPricing `yaml:"batch"`
}

type RequestPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a non-negative float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean, falling back to the default.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}

	timeout := 60 * time.Second
	if s := os.Getenv("INFERENCE_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			timeout = d
		}
	}

	return &Config{
		Detection: DetectionConfig{
			ObjectConfidence:   envFloat("DETECT_OBJECT_CONFIDENCE", constants.DefaultObjectConfidence),
			FaceConfidence:     envFloat("DETECT_FACE_CONFIDENCE", constants.DefaultFaceConfidence),
			IoUThreshold:       envFloat("DETECT_IOU_THRESHOLD", constants.DefaultIoUThreshold),
			ObjectInputSize:    envInt("DETECT_OBJECT_INPUT_SIZE", constants.DefaultObjectInputSize),
			FaceInputSize:      envInt("DETECT_FACE_INPUT_SIZE", constants.DefaultFaceInputSize),
			EmbedInputSize:     envInt("EMBED_INPUT_SIZE", constants.DefaultEmbedInputSize),
			MaxFacesPerImage:   envInt("MAX_FACES_PER_IMAGE", constants.DefaultMaxFacesPerImage),
			FacesRequirePerson: envBool("FACES_REQUIRE_PERSON", true),
		},
		Identity: IdentityConfig{
			MinConfidence: envFloat("MIN_FACE_CONFIDENCE", constants.DefaultMinFaceConfidence),
			MaxRetries:    envInt("PERSON_UPDATE_RETRIES", constants.DefaultMaxUpdateRetries),
		},
		Scan: ScanConfig{
			Recursive:   envBool("SCAN_RECURSIVE", true),
			Concurrency: envInt("SCAN_CONCURRENCY", constants.DefaultConcurrency),
		},
		Inference: InferenceConfig{
			URL:     os.Getenv("INFERENCE_URL"),
			Timeout: timeout,
		},
		Database: DatabaseConfig{
			Driver:        envString("DATABASE_DRIVER", "sqlite"),
			URL:           os.Getenv("DATABASE_URL"),
			Path:          envString("DATABASE_PATH", "gallery.db"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		LLM: LLMConfig{
			Provider: strings.ToLower(os.Getenv("LLM_PROVIDER")),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
			Model: os.Getenv("OPENAI_MODEL"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Ollama: OllamaConfig{
			URL:   os.Getenv("OLLAMA_URL"),
			Model: os.Getenv("OLLAMA_MODEL"),
		},
		LlamaCpp: LlamaCppConfig{
			URL:   os.Getenv("LLAMACPP_URL"),
			Model: os.Getenv("LLAMACPP_MODEL"),
		},
		Log: LogConfig{
			Env:   envString("LOG_ENV", "local"),
			Level: os.Getenv("LOG_LEVEL"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "127.0.0.1"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Prices: prices,
	}
}

// ApplyFile overlays the detection, identity and scan sections from a YAML file.
// Keys missing from the file keep their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return c.Validate()
}

// Validate checks that thresholds are within their valid ranges.
func (c *Config) Validate() error {
	for name, v := range map[string]float64{
		"detection.object_confidence": c.Detection.ObjectConfidence,
		"detection.face_confidence":   c.Detection.FaceConfidence,
		"detection.iou_threshold":     c.Detection.IoUThreshold,
		"identity.min_confidence":     c.Identity.MinConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
		}
	}
	if c.Detection.ObjectInputSize <= 0 || c.Detection.FaceInputSize <= 0 || c.Detection.EmbedInputSize <= 0 {
		return fmt.Errorf("model input sizes must be positive")
	}
	if c.Scan.Concurrency <= 0 {
		return fmt.Errorf("scan.concurrency must be positive, got %d", c.Scan.Concurrency)
	}
	return nil
}

// GetModelPricing returns pricing for a specific model, with fallback defaults
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	return ModelPricing{}
}
