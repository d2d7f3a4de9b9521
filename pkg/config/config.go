package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. WORKDESK_RETRIEVAL_DEFAULT_K.
const EnvPrefix = "WORKDESK"

type Config struct {
	App        AppConfig                 `mapstructure:"app" yaml:"app"`
	Gateways   map[string]GatewayConfig  `mapstructure:"gateways" yaml:"gateways"`
	Providers  map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
	Retrieval  RetrievalConfig           `mapstructure:"retrieval" yaml:"retrieval"`
	Catalog    CatalogConfig             `mapstructure:"catalog" yaml:"catalog"`
	Planner    PlannerConfig             `mapstructure:"planner" yaml:"planner"`
	Logger     LoggerConfig              `mapstructure:"logger" yaml:"logger"`
	Metrics    MetricsConfig             `mapstructure:"metrics" yaml:"metrics"`
	Governance GovernanceConfig          `mapstructure:"governance" yaml:"governance"`
}

type AppConfig struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Workspace string `mapstructure:"workspace" yaml:"workspace"`
	DataDir   string `mapstructure:"data_dir" yaml:"data_dir"`
}

type GatewayConfig struct {
	Token   string `mapstructure:"token" yaml:"token"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`
	Model          string `mapstructure:"model" yaml:"model"`
	EmbeddingModel string `mapstructure:"embedding_model" yaml:"embedding_model"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
}

// RetrievalConfig selects the index backend and the search defaults.
type RetrievalConfig struct {
	Backend        string  `mapstructure:"backend" yaml:"backend"` // chromem | bleve
	Collection     string  `mapstructure:"collection" yaml:"collection"`
	PersistPath    string  `mapstructure:"persist_path" yaml:"persist_path"`
	Compress       bool    `mapstructure:"compress" yaml:"compress"`
	ChunkSize      int     `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap   int     `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
	DefaultK       int     `mapstructure:"default_k" yaml:"default_k"`
	ScoreThreshold float64 `mapstructure:"score_threshold" yaml:"score_threshold"`
	RenderPages    bool    `mapstructure:"render_pages" yaml:"render_pages"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type PlannerConfig struct {
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	PromptsDir  string  `mapstructure:"prompts_dir" yaml:"prompts_dir"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // console | json
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	LLMLogFile string `mapstructure:"llm_log_file" yaml:"llm_log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}

type GovernanceConfig struct {
	DeniedActions  []string `mapstructure:"denied_actions" yaml:"denied_actions"`
	DeniedPatterns []string `mapstructure:"denied_patterns" yaml:"denied_patterns"`
}

// Defaults returns the configuration used when no file or environment overrides are present.
func Defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:      "workdesk",
			Workspace: "documents",
			DataDir:   "data",
		},
		Gateways: map[string]GatewayConfig{
			"telegram": {},
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Model:          "gpt-4",
				EmbeddingModel: "text-embedding-3-small",
				Enabled:        true,
			},
		},
		Retrieval: RetrievalConfig{
			Backend:        "chromem",
			Collection:     "documents",
			PersistPath:    "data/index",
			ChunkSize:      1000,
			ChunkOverlap:   200,
			DefaultK:       4,
			ScoreThreshold: 0.3,
		},
		Catalog: CatalogConfig{Path: "data/catalog.db"},
		Planner: PlannerConfig{
			Temperature: 0.3,
			MaxTokens:   1500,
		},
		Logger: LoggerConfig{
			Level:      "info",
			Format:     "console",
			LLMLogFile: "logs/llm.jsonl",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Metrics: MetricsConfig{Address: ":9090"},
	}
}

// Load resolves the configuration from defaults, the config file, a .env file and
// WORKDESK_* environment variables, in increasing order of precedence.
// An empty path searches for workdesk.yaml in the working directory.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	base, err := yaml.Marshal(Defaults())
	if err != nil {
		return nil, fmt.Errorf("error encoding defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("workdesk")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	// The conventional OpenAI variable fills in a missing key.
	if p, ok := cfg.Providers["openai"]; ok && p.APIKey == "" {
		p.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.Providers["openai"] = p
	}

	return &cfg, nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch c.Retrieval.Backend {
	case "chromem", "bleve":
	default:
		return fmt.Errorf("retrieval.backend: unsupported backend %q", c.Retrieval.Backend)
	}
	if c.Retrieval.ChunkSize <= 0 {
		return fmt.Errorf("retrieval.chunk_size must be positive, got %d", c.Retrieval.ChunkSize)
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap must be in [0, chunk_size), got %d", c.Retrieval.ChunkOverlap)
	}
	if c.Retrieval.DefaultK <= 0 {
		return fmt.Errorf("retrieval.default_k must be positive, got %d", c.Retrieval.DefaultK)
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("retrieval.score_threshold must be in [0, 1], got %g", c.Retrieval.ScoreThreshold)
	}
	if c.Planner.MaxTokens <= 0 {
		return fmt.Errorf("planner.max_tokens must be positive, got %d", c.Planner.MaxTokens)
	}
	return nil
}

// GetDefaultProvider returns the first enabled provider, by name order.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled && tg.Token != "" {
		return tg, true
	}
	return GatewayConfig{}, false
}

// WriteDefaults writes the default configuration as YAML to path, refusing to overwrite.
func WriteDefaults(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("error encoding defaults: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
