// Package config centralizes the pipeline's externally supplied knobs.
// A TOML file provides the full surface; store credentials may be
// overridden from the environment. Validation runs once at startup so a
// bad threshold is fatal before any run begins, never discovered
// mid-batch.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type GraphConfig struct {
	URI            string `toml:"uri"`
	User           string `toml:"user"`
	Password       string `toml:"password"`
	Database       string `toml:"database"`
	MaxPoolSize    int    `toml:"max_pool_size"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type QualityConfig struct {
	MinLen                 int               `toml:"min_len"`
	MaxLenSkill            int               `toml:"max_len_skill"`
	MaxLenKnowledgeAbility int               `toml:"max_len_knowledge_ability"`
	DefaultConfidence      float64           `toml:"default_confidence"`
	StrictSkillFilter      bool              `toml:"strict_skill_filter"`
	LowConfidenceThreshold float64           `toml:"low_confidence_threshold"`
	Deny                   []string          `toml:"deny"`
	Canonical              map[string]string `toml:"canonical"`
}

type SimilarityConfig struct {
	Threshold     float64 `toml:"threshold"`
	MinClusterLen int     `toml:"min_cluster_len"`
}

type RunConfig struct {
	BudgetSeconds int    `toml:"budget_seconds"`
	WriteRetries  int    `toml:"write_retries"`
	PrimarySource string `toml:"primary_source"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type Config struct {
	Graph      GraphConfig      `toml:"graph"`
	Quality    QualityConfig    `toml:"quality"`
	Similarity SimilarityConfig `toml:"similarity"`
	Run        RunConfig        `toml:"run"`
	Server     ServerConfig     `toml:"server"`
}

// Default returns the configuration the TOML file overlays. The values
// mirror what the deployed pipeline has been tuned to.
func Default() *Config {
	return &Config{
		Graph: GraphConfig{
			URI:            "bolt://localhost:7687",
			User:           "neo4j",
			MaxPoolSize:    50,
			TimeoutSeconds: 10,
		},
		Quality: QualityConfig{
			MinLen:                 3,
			MaxLenSkill:            80,
			MaxLenKnowledgeAbility: 150,
			DefaultConfidence:      0.6,
			LowConfidenceThreshold: 0.6,
		},
		Similarity: SimilarityConfig{
			Threshold:     0.86,
			MinClusterLen: 4,
		},
		Run: RunConfig{
			BudgetSeconds: 60,
			WriteRetries:  3,
			PrimarySource: "extractor",
		},
		Server: ServerConfig{Port: "8080"},
	}
}

// Load reads the TOML file at path over the defaults, applies environment
// overrides for the store connection, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file '%s': %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file '%s': %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GRAPH_URI"); v != "" {
		c.Graph.URI = v
	}
	if v := os.Getenv("GRAPH_USER"); v != "" {
		c.Graph.User = v
	}
	if v := os.Getenv("GRAPH_PASSWORD"); v != "" {
		c.Graph.Password = v
	}
	if v := os.Getenv("GRAPH_DATABASE"); v != "" {
		c.Graph.Database = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
}

func (c *Config) Validate() error {
	if c.Graph.URI == "" {
		return fmt.Errorf("config: graph.uri is required")
	}
	if c.Quality.MinLen <= 0 {
		return fmt.Errorf("config: quality.min_len must be positive, got %d", c.Quality.MinLen)
	}
	if c.Quality.MaxLenSkill < c.Quality.MinLen {
		return fmt.Errorf("config: quality.max_len_skill (%d) below min_len (%d)", c.Quality.MaxLenSkill, c.Quality.MinLen)
	}
	if c.Quality.MaxLenKnowledgeAbility < c.Quality.MaxLenSkill {
		return fmt.Errorf("config: quality.max_len_knowledge_ability (%d) below max_len_skill (%d)",
			c.Quality.MaxLenKnowledgeAbility, c.Quality.MaxLenSkill)
	}
	if c.Quality.DefaultConfidence < 0 || c.Quality.DefaultConfidence > 1 {
		return fmt.Errorf("config: quality.default_confidence must be in [0,1], got %v", c.Quality.DefaultConfidence)
	}
	if c.Quality.LowConfidenceThreshold < 0 || c.Quality.LowConfidenceThreshold > 1 {
		return fmt.Errorf("config: quality.low_confidence_threshold must be in [0,1], got %v", c.Quality.LowConfidenceThreshold)
	}
	if c.Similarity.Threshold <= 0 || c.Similarity.Threshold > 1 {
		return fmt.Errorf("config: similarity.threshold must be in (0,1], got %v", c.Similarity.Threshold)
	}
	if c.Similarity.MinClusterLen < 1 {
		return fmt.Errorf("config: similarity.min_cluster_len must be at least 1, got %d", c.Similarity.MinClusterLen)
	}
	if c.Run.BudgetSeconds <= 0 {
		return fmt.Errorf("config: run.budget_seconds must be positive, got %d", c.Run.BudgetSeconds)
	}
	if c.Run.WriteRetries < 1 {
		return fmt.Errorf("config: run.write_retries must be at least 1, got %d", c.Run.WriteRetries)
	}
	if c.Run.PrimarySource == "" {
		return fmt.Errorf("config: run.primary_source is required")
	}
	return nil
}
