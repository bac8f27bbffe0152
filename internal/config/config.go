// Package config loads the nested search/vectordb/graph/performance
// configuration surface via viper, generalized from the teacher's
// flag-and-envOr loadConfig idiom (cmd/api/main.go) into a YAML-file-plus-
// env-override loader with legacy environment variable name fallback.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration surface.
type Config struct {
	Search      SearchConfig      `mapstructure:"search"`
	VectorDB    VectorDBConfig    `mapstructure:"vectordb"`
	Graph       GraphConfig       `mapstructure:"graph"`
	Performance PerformanceConfig `mapstructure:"performance"`
}

// SearchConfig configures the modality registry, planner, and orchestrator
// defaults.
type SearchConfig struct {
	Enabled     bool                      `mapstructure:"enabled"`
	WorkspaceID string                    `mapstructure:"workspace_id"`
	Defaults    SearchDefaults            `mapstructure:"defaults"`
	Modalities  map[string]ModalityConfig `mapstructure:"modalities"`
	Planner     PlannerConfig             `mapstructure:"planner"`
}

type SearchDefaults struct {
	MaxResultsPerModality int     `mapstructure:"max_results_per_modality"`
	TimeoutMsPerModality  int     `mapstructure:"timeout_ms_per_modality"`
	WebFallbackWeight     float64 `mapstructure:"web_fallback_weight"`
}

type ModalityConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	Weight       float64        `mapstructure:"weight"`
	TimeoutMs    int            `mapstructure:"timeout_ms"`
	MaxResults   int            `mapstructure:"max_results"`
	FallbackOnly bool           `mapstructure:"fallback_only"`
	Scope        map[string]any `mapstructure:"scope"`
}

type PlannerConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	Rules   []PlanRule `mapstructure:"rules"`
}

type PlanRule struct {
	Name     string   `mapstructure:"name"`
	Include  []string `mapstructure:"include"`
	Keywords []string `mapstructure:"keywords"`
}

// VectorDBConfig configures the Vector Service backend.
type VectorDBConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Provider       string  `mapstructure:"provider"`
	URL            string  `mapstructure:"url"`
	APIKey         string  `mapstructure:"api_key"`
	Collection     string  `mapstructure:"collection"`
	Dimension      int     `mapstructure:"dimension"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	DefaultTopK    int     `mapstructure:"default_top_k"`
	MinScore       float64 `mapstructure:"min_score"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
}

// GraphConfig configures the Graph Service backend.
type GraphConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// PerformanceConfig toggles the resilience/metrics ambient concerns.
type PerformanceConfig struct {
	ConnectionPooling    bool `mapstructure:"connection_pooling"`
	RateLimiting         bool `mapstructure:"rate_limiting"`
	ParallelExecution    bool `mapstructure:"parallel_execution"`
	BatchEmbeddings      bool `mapstructure:"batch_embeddings"`
	Caching              bool `mapstructure:"caching"`
	BackgroundTasks      bool `mapstructure:"background_tasks"`
	SessionSerialization bool `mapstructure:"session_serialization"`
	MaxParallelSteps     int  `mapstructure:"max_parallel_steps"`
}

// envBinding pairs a config key with its primary environment variable and
// an optional legacy name that's checked if the primary is unset.
type envBinding struct {
	key, primary, legacy string
}

// envBindings mirrors the credential/endpoint env vars the teacher's
// cmd/api envOr() calls read directly, now routed through viper's
// precedence (explicit env > legacy env > config file > default) instead
// of each binary repeating its own envOr.
var envBindings = []envBinding{
	{"vectordb.url", "QDRANT_URL", "VECTOR_DB_URL"},
	{"vectordb.api_key", "QDRANT_API_KEY", "VECTOR_DB_API_KEY"},
	{"vectordb.collection", "QDRANT_COLLECTION", "VECTOR_DB_COLLECTION"},
	{"graph.uri", "NEO4J_URL", "NEO4J_URI"},
	{"graph.username", "NEO4J_USER", "NEO4J_USERNAME"},
	{"graph.password", "NEO4J_PASS", "NEO4J_PASSWORD"},
	{"vectordb.embedding_model", "EMBED_MODEL", "EMBEDDING_MODEL"},
}

// Load reads path (a YAML file) if present, applies env-var overrides and
// legacy-name fallback per envBindings, and unmarshals the result into a
// Config. A missing file is not an error — defaults and environment
// variables alone produce a usable Config, mirroring the teacher's
// envOr-with-fallback behavior when run without any config file at all.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	for _, b := range envBindings {
		if err := v.BindEnv(b.key, b.primary); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", b.primary, err)
		}
		if v.GetString(b.key) == "" && b.legacy != "" {
			if legacyVal := os.Getenv(b.legacy); legacyVal != "" {
				v.Set(b.key, legacyVal)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.enabled", true)
	v.SetDefault("search.defaults.max_results_per_modality", 10)
	v.SetDefault("search.defaults.timeout_ms_per_modality", 5000)
	v.SetDefault("search.defaults.web_fallback_weight", 0.5)
	v.SetDefault("search.planner.enabled", true)

	v.SetDefault("vectordb.enabled", true)
	v.SetDefault("vectordb.provider", "qdrant")
	v.SetDefault("vectordb.collection", "sentinel")
	v.SetDefault("vectordb.dimension", 768)
	v.SetDefault("vectordb.timeout_seconds", 30)
	v.SetDefault("vectordb.default_top_k", 10)
	v.SetDefault("vectordb.min_score", 0.0)

	v.SetDefault("graph.enabled", false)
	v.SetDefault("graph.database", "")

	v.SetDefault("performance.connection_pooling", true)
	v.SetDefault("performance.rate_limiting", true)
	v.SetDefault("performance.parallel_execution", true)
	v.SetDefault("performance.batch_embeddings", true)
	v.SetDefault("performance.caching", true)
	v.SetDefault("performance.background_tasks", true)
	v.SetDefault("performance.session_serialization", true)
	v.SetDefault("performance.max_parallel_steps", 4)
}
