package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/org/creditledger/internal/wallet"
	"gopkg.in/yaml.v3"
)

// CLIConfig is the persistent CLI configuration.
type CLIConfig struct {
	Address        string        `yaml:"address"`
	TLSCACert      string        `yaml:"tls_ca_cert"`
	Wallet         string        `yaml:"wallet"`
	Timeout        time.Duration `yaml:"timeout"`
	WaitConfirmed  bool          `yaml:"wait_confirmed"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
}

var cfg CLIConfig

// configPath returns the path to the CLI config file.
func configPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".creditledger", "config.yaml")
}

func defaultCLIConfig() CLIConfig {
	return CLIConfig{
		Address:        "http://127.0.0.1:8545",
		Wallet:         wallet.DefaultPath(),
		Timeout:        15 * time.Second,
		WaitConfirmed:  true,
		ConfirmTimeout: time.Minute,
	}
}

// loadConfig loads the CLI config from path and applies env overrides.
func loadConfig(path string) (CLIConfig, error) {
	c, err := readConfigFile(path)
	if err != nil {
		return c, err
	}
	if v := os.Getenv("CREDIT_ADDR"); v != "" {
		c.Address = v
	}
	if v := os.Getenv("CREDIT_WALLET"); v != "" {
		c.Wallet = v
	}
	return c, nil
}

// readConfigFile loads only what is stored at path, so env overrides are
// never written back by saveConfig.
func readConfigFile(path string) (CLIConfig, error) {
	c := defaultCLIConfig()
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, err
		}
	}
	return c, nil
}

// saveConfig persists the CLI config to disk.
func saveConfig(path string, c CLIConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
