package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Embedding providers.
const (
	EmbeddingProviderHash   = "hash"
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderGenAI  = "genai"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Privacy   PrivacyConfig     `yaml:"privacy"`
	Sanitizer SanitizerConfig   `yaml:"sanitizer"`
	Distiller DistillerConfig   `yaml:"distiller"`
	Matcher   MatcherConfig     `yaml:"matcher"`
	Embedding EmbeddingConfig   `yaml:"embedding"`
	LLM       LLMConfig         `yaml:"llm"`
	Pipeline  PipelineConfig    `yaml:"pipeline"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.SQLite, &c.Auth, &c.Privacy, &c.Sanitizer,
		&c.Distiller, &c.Matcher, &c.Embedding, &c.LLM, &c.Pipeline,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// PrivacyConfig holds the key used for every keyed hash (fragment hashes,
// owner and provenance references). Rotating it breaks same-user exclusion
// for records written under the old key.
type PrivacyConfig struct {
	Secret string `yaml:"secret"`
}

// Validate validates the privacy configuration.
func (c *PrivacyConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Secret, validation.Required, validation.Length(16, 0)),
	)
}

// SanitizerConfig holds the hot-reloadable sensitivity tunables.
type SanitizerConfig struct {
	ConfidenceThreshold float64            `yaml:"confidence_threshold"`
	DetectorTimeout     time.Duration      `yaml:"detector_timeout"`
	RuleWeights         map[string]float64 `yaml:"rule_weights"`
	LLMDetector         bool               `yaml:"llm_detector"`
}

// Validate validates the sanitizer configuration.
func (c *SanitizerConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.ConfidenceThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.DetectorTimeout, validation.Required, validation.Min(time.Millisecond)),
	); err != nil {
		return err
	}
	for kind, w := range c.RuleWeights {
		if w < 0 || w > 1 {
			return fmt.Errorf("sanitizer: rule weight %q must be within [0,1], got %v", kind, w)
		}
	}
	return nil
}

// DistillerConfig holds distillation bounds.
type DistillerConfig struct {
	MaxStatementLength int           `yaml:"max_statement_length"`
	SimilarityCeiling  float64       `yaml:"similarity_ceiling"`
	ShingleSize        int           `yaml:"shingle_size"`
	MinContentWords    int           `yaml:"min_content_words"`
	EmbedTimeout       time.Duration `yaml:"embed_timeout"`
	SharingThreshold   int           `yaml:"sharing_threshold"`
}

// Validate validates the distiller configuration.
func (c *DistillerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxStatementLength, validation.Required, validation.Min(40)),
		validation.Field(&c.SimilarityCeiling, validation.Required, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.ShingleSize, validation.Required, validation.Min(1), validation.Max(8)),
		validation.Field(&c.MinContentWords, validation.Min(0)),
		validation.Field(&c.EmbedTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.SharingThreshold, validation.Min(0), validation.Max(100)),
	)
}

// MatcherConfig holds the hot-reloadable match scoring tunables.
type MatcherConfig struct {
	EmbeddingWeight float64       `yaml:"embedding_weight"`
	TopicWeight     float64       `yaml:"topic_weight"`
	MinScore        float64       `yaml:"min_score"`
	K               int           `yaml:"k"`
	CandidatePool   int           `yaml:"candidate_pool"`
	Timeout         time.Duration `yaml:"timeout"`
	AllowSameUser   bool          `yaml:"allow_same_user"`
}

// Validate validates the matcher configuration.
func (c *MatcherConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.EmbeddingWeight, validation.Min(0.0)),
		validation.Field(&c.TopicWeight, validation.Min(0.0)),
		validation.Field(&c.MinScore, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.K, validation.Required, validation.Min(1)),
		validation.Field(&c.CandidatePool, validation.Required, validation.Min(1)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
	); err != nil {
		return err
	}
	if c.EmbeddingWeight+c.TopicWeight == 0 {
		return fmt.Errorf("matcher: embedding_weight and topic_weight cannot both be zero")
	}
	return nil
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = EmbeddingProviderHash
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(EmbeddingProviderHash, EmbeddingProviderOpenAI, EmbeddingProviderGenAI)),
		validation.Field(&c.Dimensions, validation.Min(0)),
	); err != nil {
		return err
	}
	if c.Provider != EmbeddingProviderHash && c.APIKey == "" {
		return fmt.Errorf("embedding: provider %q requires api_key", c.Provider)
	}
	return nil
}

// LLMConfig configures the optional model-based PII detector.
type LLMConfig struct {
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// PipelineConfig controls background submission processing.
type PipelineConfig struct {
	Workers              int           `yaml:"workers"`
	QueueSize            int           `yaml:"queue_size"`
	MaxAttempts          int           `yaml:"max_attempts"`
	BackoffBase          time.Duration `yaml:"backoff_base"`
	BackoffMax           time.Duration `yaml:"backoff_max"`
	SubmissionsPerSecond float64       `yaml:"submissions_per_second"`
	Burst                int           `yaml:"burst"`
	MaxNoteBytes         int           `yaml:"max_note_bytes"`
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
		validation.Field(&c.QueueSize, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.BackoffBase, validation.Required),
		validation.Field(&c.BackoffMax, validation.Required),
		validation.Field(&c.SubmissionsPerSecond, validation.Required, validation.Min(0.001)),
		validation.Field(&c.Burst, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxNoteBytes, validation.Required, validation.Min(1)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./mindyard.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Sanitizer: SanitizerConfig{
			ConfidenceThreshold: 0.6,
			DetectorTimeout:     2 * time.Second,
		},
		Distiller: DistillerConfig{
			MaxStatementLength: 160,
			SimilarityCeiling:  0.5,
			ShingleSize:        3,
			MinContentWords:    2,
			EmbedTimeout:       5 * time.Second,
		},
		Matcher: MatcherConfig{
			EmbeddingWeight: 0.7,
			TopicWeight:     0.3,
			MinScore:        0.5,
			K:               10,
			CandidatePool:   50,
			Timeout:         2 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:   EmbeddingProviderHash,
			Dimensions: 256,
			CacheTTL:   time.Hour,
		},
		LLM: LLMConfig{
			Timeout: 10 * time.Second,
		},
		Pipeline: PipelineConfig{
			Workers:              4,
			QueueSize:            64,
			MaxAttempts:          4,
			BackoffBase:          500 * time.Millisecond,
			BackoffMax:           30 * time.Second,
			SubmissionsPerSecond: 1,
			Burst:                5,
			MaxNoteBytes:         64 << 10,
		},
	}
}
