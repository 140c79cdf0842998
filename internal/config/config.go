package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pickme-game-service/internal/engine"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Backend struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"backend"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Game struct {
		QuestionTime int             `yaml:"questionTime"`
		AllowPass    bool            `yaml:"allowPass"`
		SessionLimit int             `yaml:"sessionLimit"`
		Scoring      *engine.Scoring `yaml:"scoring"`
	} `yaml:"game"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Scoring returns the configured scoring scheme, defaulting to flat awards.
func (c Config) Scoring() engine.Scoring {
	if c.Game.Scoring != nil {
		return *c.Game.Scoring
	}
	return engine.FlatScoring()
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
