package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file when none is given.
const DefaultPath = "den.yaml"

type Config struct {
	Project struct {
		Root       string   `yaml:"root"`
		Extensions []string `yaml:"extensions"`
		Ignore     []string `yaml:"ignore"`  // directory names skipped anywhere in the tree
		Exclude    []string `yaml:"exclude"` // globs matched against paths relative to root
	} `yaml:"project"`
	Scan struct {
		Jobs int `yaml:"jobs"`
	} `yaml:"scan"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Backend struct {
		Provider string        `yaml:"provider"` // command, gemini, openai, ollama
		Model    string        `yaml:"model"`
		APIKey   string        `yaml:"api_key"`
		BaseURL  string        `yaml:"base_url"`
		Command  []string      `yaml:"command"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"backend"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console or json
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Project.Root = "."
	cfg.Project.Extensions = []string{".rs", ".go"}
	cfg.Project.Ignore = []string{".git", "target", "vendor", "node_modules", "testdata"}
	cfg.Project.Exclude = []string{"den"}
	cfg.Store.Path = "den.db"
	cfg.Backend.Provider = "command"
	cfg.Backend.Timeout = 60 * time.Second
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	return &cfg
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := validateFile(file); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	}

	// 3. Override with Environment Variables if present
	applyEnv(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if apiKey := os.Getenv("DEN_API_KEY"); apiKey != "" {
		cfg.Backend.APIKey = apiKey
	}
	if provider := os.Getenv("DEN_BACKEND"); provider != "" {
		cfg.Backend.Provider = provider
	}
	if model := os.Getenv("DEN_MODEL"); model != "" {
		cfg.Backend.Model = model
	}
	if command := os.Getenv("DEN_COMMAND"); command != "" {
		cfg.Backend.Command = strings.Fields(command)
	}
	if level := os.Getenv("DEN_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}
