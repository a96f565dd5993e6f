package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/org/creditledger/internal/auth"
	"github.com/org/creditledger/internal/ledger"
	"github.com/org/creditledger/pkg/models"
	"gopkg.in/yaml.v3"
)

type config struct {
	ListenAddr    string        `yaml:"listen_addr"`
	TLSCertFile   string        `yaml:"tls_cert"`
	TLSKeyFile    string        `yaml:"tls_key"`
	DBUrl         string        `yaml:"db_url"`
	MigrationsDir string        `yaml:"migrations_dir"`
	LogLevel      string        `yaml:"log_level"`
	AdminToken    string        `yaml:"admin_token"`
	BlockInterval time.Duration `yaml:"block_interval"`
	MaxBlockTxs   int           `yaml:"max_block_txs"`
	MaxAttempts   int           `yaml:"max_commit_attempts"`
	MaxClockSkew  time.Duration `yaml:"max_clock_skew"`
	MaxValueSize  int           `yaml:"max_value_size"`
	RateLimit     int           `yaml:"rate_limit"`
	RateBurst     int           `yaml:"rate_burst"`
	// Dev keeps state in memory and commits every transaction on submit.
	Dev           bool          `yaml:"dev"`

	Policies []*models.Policy    `yaml:"policies"`
	Bindings map[string][]string `yaml:"bindings"` // signer address or "*" → policy names
}

func defaultConfig() config {
	return config{
		ListenAddr:    ":8545",
		MigrationsDir: "migrations",
		LogLevel:      "info",
		BlockInterval: 2 * time.Second,
		MaxAttempts:   ledger.DefaultMaxCommitAttempts,
		MaxClockSkew:  auth.DefaultMaxSkew,
		MaxValueSize:  auth.DefaultMaxValueSize,
	}
}

// loadConfig reads .env, then the yaml file, then environment overrides.
// A missing file is not an error; found reports whether it was read.
func loadConfig(path, envFile string) (cfg config, found bool, err error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, false, fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg = defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, false, fmt.Errorf("parsing %s: %w", path, err)
		}
		found = true
	case !errors.Is(err, fs.ErrNotExist):
		return cfg, false, err
	}

	if v := os.Getenv("LEDGER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBUrl = v
	}
	if v := os.Getenv("LEDGER_ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("LEDGER_DEV"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, found, fmt.Errorf("LEDGER_DEV: %w", err)
		}
		cfg.Dev = dev
	}
	if v := os.Getenv("LEDGER_BLOCK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, found, fmt.Errorf("LEDGER_BLOCK_INTERVAL: %w", err)
		}
		cfg.BlockInterval = d
	}
	if v := os.Getenv("LEDGER_MAX_BLOCK_TXS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, found, fmt.Errorf("LEDGER_MAX_BLOCK_TXS: %w", err)
		}
		cfg.MaxBlockTxs = n
	}

	if len(cfg.Policies) == 0 {
		cfg.Policies = []*models.Policy{models.DefaultPolicy()}
		if cfg.Bindings == nil {
			cfg.Bindings = map[string][]string{"*": {"default"}}
		}
	}
	return cfg, found, cfg.validate()
}

func (c config) validate() error {
	if c.BlockInterval < 0 {
		return errors.New("block_interval must not be negative")
	}
	if c.MaxBlockTxs < 0 {
		return errors.New("max_block_txs must not be negative")
	}
	if c.MaxAttempts < 1 {
		return errors.New("max_commit_attempts must be at least 1")
	}
	names := map[string]bool{}
	for _, p := range c.Policies {
		if p.Name == "" {
			return errors.New("every policy needs a name")
		}
		names[p.Name] = true
	}
	for signer, bound := range c.Bindings {
		for _, name := range bound {
			if !names[name] {
				return fmt.Errorf("binding %s references unknown policy %q", signer, name)
			}
		}
	}
	return nil
}
