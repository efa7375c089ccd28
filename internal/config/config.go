package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

// Model backends understood by the similarity model factory.
const (
	ModelBackendBuiltin = "builtin"
	ModelBackendRemote  = "remote"
)

type Config struct {
	Database DatabaseConfig
	MariaDB  MariaDBConfig
	Model    ModelConfig
	Policy   PolicyConfig
	Web      WebConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// MariaDBConfig points at the legacy MySQL schema of the attendance app.
// When DSN is set it takes precedence over PostgreSQL.
type MariaDBConfig struct {
	DSN string // e.g. signet:signet@tcp(mariadb:3306)/signet?parseTime=true
}

type ModelConfig struct {
	Backend      string // builtin (pure Go) or remote (model server)
	ServerURL    string // model server URL for the remote backend, defaults to http://localhost:8500
	WeightsDir   string // directory holding per-room weight files
	BaselinePath string // default untrained weights, optional
	Seed         int64  // seed for the builtin model's initial weights
}

// PolicyConfig holds the score-to-decision and training policy.
// Defaults come from the embedded policy.yaml.
type PolicyConfig struct {
	Threshold          float64 `yaml:"threshold"`
	RecognitionScale   float64 `yaml:"recognition_scale"`
	Margin             float64 `yaml:"margin"`
	BatchFraction      float64 `yaml:"batch_fraction"`
	IterationsPerBatch int     `yaml:"iterations_per_batch"`
	LearningRate       float64 `yaml:"learning_rate"`
	EmbeddingDim       int     `yaml:"embedding_dim"`
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins besides localhost
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

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated environment variable, skipping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// DefaultPolicy returns the policy embedded in the binary.
func DefaultPolicy() PolicyConfig {
	var policy PolicyConfig
	if err := yaml.Unmarshal(policyYAML, &policy); err != nil {
		// Embedded file, only broken by a bad build.
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}
	return policy
}

func Load() *Config {
	policy := DefaultPolicy()

	seed, err := strconv.ParseInt(os.Getenv("SIGNET_MODEL_SEED"), 10, 64)
	if err != nil {
		seed = 1
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		Model: ModelConfig{
			Backend:      strings.ToLower(envString("SIGNET_MODEL_BACKEND", ModelBackendBuiltin)),
			ServerURL:    os.Getenv("SIGNET_MODEL_URL"),
			WeightsDir:   envString("SIGNET_WEIGHTS_DIR", "models"),
			BaselinePath: os.Getenv("SIGNET_BASELINE_WEIGHTS"),
			Seed:         seed,
		},
		Policy: PolicyConfig{
			Threshold:          envFloat("SIGNET_THRESHOLD", policy.Threshold),
			RecognitionScale:   envFloat("SIGNET_RECOGNITION_SCALE", policy.RecognitionScale),
			Margin:             envFloat("SIGNET_MARGIN", policy.Margin),
			BatchFraction:      envFloat("SIGNET_BATCH_FRACTION", policy.BatchFraction),
			IterationsPerBatch: envInt("SIGNET_ITERATIONS_PER_BATCH", policy.IterationsPerBatch),
			LearningRate:       envFloat("SIGNET_LEARNING_RATE", policy.LearningRate),
			EmbeddingDim:       envInt("SIGNET_EMBEDDING_DIM", policy.EmbeddingDim),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Database.URL == "" && c.MariaDB.DSN == "" {
		return errors.New("DATABASE_URL or MARIADB_DSN environment variable is required")
	}
	switch c.Model.Backend {
	case ModelBackendBuiltin, ModelBackendRemote:
	default:
		return fmt.Errorf("unknown model backend %q (expected %s or %s)", c.Model.Backend, ModelBackendBuiltin, ModelBackendRemote)
	}
	if c.Model.WeightsDir == "" {
		return errors.New("SIGNET_WEIGHTS_DIR must not be empty")
	}
	if c.Policy.Threshold <= 0 {
		return errors.New("threshold must be positive")
	}
	if c.Policy.BatchFraction <= 0 || c.Policy.BatchFraction > 1 {
		return fmt.Errorf("batch fraction %.2f out of range (0, 1]", c.Policy.BatchFraction)
	}
	return nil
}
