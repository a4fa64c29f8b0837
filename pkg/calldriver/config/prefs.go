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
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/calldriver/pkg/calldriver/cluster"
	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
	"github.com/cognicore/calldriver/pkg/calldriver/label"
)

// Provider selections accepted in Prefs.LLMProvider.
const (
	ProviderAuto      = "auto"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOff       = "off"
)

// Prefs are the user-tunable pipeline settings. API keys never come from
// YAML, only from the environment.
type Prefs struct {
	LLMProvider      string        `yaml:"llm_provider" validate:"oneof=auto gemini openai anthropic off"`
	MinClusterSize   int           `yaml:"min_cluster_size" validate:"gte=2"`
	TargetOtherPct   float64       `yaml:"target_other_pct" validate:"gte=0,lte=100"`
	MaxRounds        int           `yaml:"max_rounds" validate:"gte=1,lte=20"`
	KMeansK          int           `yaml:"kmeans_k" validate:"gte=2"`
	IncludeOther     bool          `yaml:"include_other"`
	TaxonomyMinScore float64       `yaml:"taxonomy_min_score" validate:"gte=0"`
	Seed             uint64        `yaml:"seed"`
	Workers          int           `yaml:"workers" validate:"gte=0"`
	LabelTimeout     time.Duration `yaml:"label_timeout" validate:"gte=0"`
	LabelSampleSize  int           `yaml:"label_sample_size" validate:"gte=1"`
	LabelMaxChars    int           `yaml:"label_max_chars" validate:"gte=1"`
	GeminiModel      string        `yaml:"gemini_model"`
	OpenAIModel      string        `yaml:"openai_model"`
	AnthropicModel   string        `yaml:"anthropic_model"`
	DBPath           string        `yaml:"db_path"`
	LogLevel         string        `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`

	GeminiAPIKey    string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
}

// DefaultPrefs mirrors the shipped defaults.
func DefaultPrefs() Prefs {
	return Prefs{
		LLMProvider:     ProviderAuto,
		MinClusterSize:  25,
		TargetOtherPct:  12,
		MaxRounds:       3,
		KMeansK:         12,
		Seed:            42,
		LabelTimeout:    60 * time.Second,
		LabelSampleSize: 12,
		LabelMaxChars:   280,
		GeminiModel:     label.DefaultGeminiModel,
		OpenAIModel:     label.DefaultOpenAIModel,
		AnthropicModel:  label.DefaultAnthropicModel,
		LogLevel:        "info",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges.
func (p Prefs) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return nil
}

// LoadPrefs reads prefs from a YAML file, merged over DefaultPrefs. A
// missing file yields the defaults.
func LoadPrefs(path string) (Prefs, error) {
	p := DefaultPrefs()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	return ParsePrefs(data)
}

// ParsePrefs decodes YAML over DefaultPrefs and validates the result.
func ParsePrefs(data []byte) (Prefs, error) {
	p := DefaultPrefs()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse prefs: %w", err)
	}
	p.LLMProvider = strings.ToLower(strings.TrimSpace(p.LLMProvider))
	return p, p.Validate()
}

// LoadEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overlays CALLDRIVER_* variables and provider API keys on p.
// Unparseable numeric values leave the field unchanged.
func (p *Prefs) ApplyEnv() {
	p.LLMProvider = strings.ToLower(getenv("CALLDRIVER_LLM_PROVIDER", p.LLMProvider))
	p.MinClusterSize = getenvInt("CALLDRIVER_MIN_CLUSTER_SIZE", p.MinClusterSize)
	p.TargetOtherPct = getenvFloat("CALLDRIVER_TARGET_OTHER_PCT", p.TargetOtherPct)
	p.MaxRounds = getenvInt("CALLDRIVER_MAX_ROUNDS", p.MaxRounds)
	p.KMeansK = getenvInt("CALLDRIVER_KMEANS_K", p.KMeansK)
	p.Workers = getenvInt("CALLDRIVER_WORKERS", p.Workers)
	p.TaxonomyMinScore = getenvFloat("CALLDRIVER_TAXONOMY_MIN_SCORE", p.TaxonomyMinScore)
	if v := os.Getenv("CALLDRIVER_SEED"); v != "" {
		if s, err := strconv.ParseUint(v, 10, 64); err == nil {
			p.Seed = s
		}
	}
	if v := os.Getenv("CALLDRIVER_LABEL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			p.LabelTimeout = d
		}
	}
	p.DBPath = getenv("CALLDRIVER_DB", p.DBPath)
	p.LogLevel = getenv("CALLDRIVER_LOG_LEVEL", p.LogLevel)

	p.GeminiAPIKey = getenv("GEMINI_API_KEY", getenv("GOOGLE_API_KEY", p.GeminiAPIKey))
	p.OpenAIAPIKey = getenv("OPENAI_API_KEY", p.OpenAIAPIKey)
	p.AnthropicAPIKey = getenv("ANTHROPIC_API_KEY", p.AnthropicAPIKey)
}

// ReduceConfig converts prefs into Other-reduction settings.
func (p Prefs) ReduceConfig() cluster.ReduceConfig {
	return cluster.ReduceConfig{
		TargetOther:    p.TargetOtherPct / 100,
		MaxRounds:      p.MaxRounds,
		MinClusterSize: p.MinClusterSize,
		FallbackK:      p.KMeansK,
	}
}

// LabelConfig converts prefs into label resolver settings.
func (p Prefs) LabelConfig() label.Config {
	cfg := label.DefaultConfig()
	cfg.SampleSize = p.LabelSampleSize
	cfg.MaxChars = p.LabelMaxChars
	cfg.Timeout = p.LabelTimeout
	cfg.Seed = p.Seed
	return cfg
}

// Providers builds the remote provider chain selected by LLMProvider, in
// gemini, openai, anthropic order for "auto". Providers without an API key
// are left out, so "off" and a keyless environment both yield an empty
// chain and labels come from the local fallback.
func (p Prefs) Providers(guard label.GuardConfig, log zerolog.Logger) []label.Provider {
	want := func(name string) bool {
		return p.LLMProvider == ProviderAuto || p.LLMProvider == name
	}
	var out []label.Provider
	if want(ProviderGemini) && p.GeminiAPIKey != "" {
		out = append(out, label.Guard(label.NewGemini(label.GeminiConfig{APIKey: p.GeminiAPIKey, Model: p.GeminiModel}), guard, log))
	}
	if want(ProviderOpenAI) && p.OpenAIAPIKey != "" {
		out = append(out, label.Guard(label.NewOpenAI(label.OpenAIConfig{APIKey: p.OpenAIAPIKey, Model: p.OpenAIModel}), guard, log))
	}
	if want(ProviderAnthropic) && p.AnthropicAPIKey != "" {
		out = append(out, label.Guard(label.NewAnthropic(label.AnthropicConfig{APIKey: p.AnthropicAPIKey, Model: p.AnthropicModel}), guard, log))
	}
	return out
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
