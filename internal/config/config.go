package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds server settings. Values come from defaults, then the YAML
// file, then environment variables.
type Config struct {
	DBPath       string   `yaml:"db_path"`
	Port         string   `yaml:"port"`
	CORSOrigins  []string `yaml:"cors_origins"`
	CatalogPath  string   `yaml:"catalog_path"` // empty uses the built-in catalog
	Seed         int64    `yaml:"seed"`         // 0 seeds from the clock
	DefaultParty []string `yaml:"default_party"`
}

// Default returns the settings used when nothing is configured
func Default() *Config {
	return &Config{
		DBPath: "./monster-battle.db",
		Port:   "8080",
		// Default origins for development
		CORSOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:5173",
		},
		DefaultParty: []string{"sparkit", "mossling"},
	}
}

// Load reads path (if not empty) over the defaults and applies env overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DB_PATH"); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Port = v
	}
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = strings.Split(v, ",")
	}
	if v, ok := lookup("CATALOG_PATH"); ok && v != "" {
		c.CatalogPath = v
	}
	if v, ok := lookup("BATTLE_SEED"); ok && v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrap(err, "BATTLE_SEED")
		}
		c.Seed = seed
	}
	return nil
}

// Validate checks the settings can be used to start a server
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path is empty")
	}
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return errors.Errorf("invalid port %q", c.Port)
	}
	if len(c.DefaultParty) == 0 {
		return errors.New("default_party is empty")
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}
