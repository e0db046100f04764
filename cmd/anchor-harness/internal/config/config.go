package config

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/ledger"
)

// Config represents the configuration of an anchor-harness run.
type Config struct {
	ConfigPath string

	Strict bool

	// Execution context: where to submit and who signs.
	RPCURL     string
	WalletPath string

	// Program resolution.
	WorkspacePath string
	ProgramName   string

	// Submission and confirmation behavior.
	Commitment      ledger.Commitment
	RequestTimeout  time.Duration
	ConfirmTimeout  time.Duration
	ConfirmInterval time.Duration
	MinNodeVersion  string

	// Invocation journal; empty disables it.
	JournalDBPath string

	LogFormat LogFormat
	LogLevel  logrus.Level

	// Mock ledger endpoints.
	Endpoint      string
	AdminEndpoint string

	// We memoize these, so they bind to viper flags correctly
	optionsCache *ConfigOptions
	viper        *viper.Viper
}

func (cfg *Config) Init(cmd *cobra.Command) error {
	cfg.viper = viper.New()
	return cfg.options().Init(cfg.viper, cmd)
}

// SetValues resolves the configuration. Priority, lowest to highest:
// defaults, config file, environment variables, cli flags.
func (cfg *Config) SetValues() error {
	if err := cfg.loadDefaults(); err != nil {
		return err
	}

	// Then we load from the cli flags and environment variables
	if err := cfg.loadFlags(); err != nil {
		return err
	}

	// If we specified a config file, we load that
	if cfg.ConfigPath != "" {
		// Merge in the config file flags
		if err := cfg.loadConfigPath(); err != nil {
			return err
		}

		// Load from cli flags and environment variables again, to overwrite what we
		// got from the config file
		if err := cfg.loadFlags(); err != nil {
			return err
		}
	}

	return nil
}

// loadDefaults populates the config with default values
func (cfg *Config) loadDefaults() error {
	for _, option := range cfg.options() {
		if option.DefaultValue != nil {
			if err := option.setValue(option.DefaultValue); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadFlags populates the config with values from the cli flags and
// environment variables
func (cfg *Config) loadFlags() error {
	if cfg.viper == nil {
		cfg.viper = viper.New()
	}
	for _, option := range cfg.options() {
		if cfg.viper.IsSet(option.Name) {
			if err := option.setValue(cfg.viper.Get(option.Name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadConfigPath loads a new config from a toml file at the given path. Strict
// mode will return an error if there are any unknown toml variables set.
func (cfg *Config) loadConfigPath() error {
	file, err := os.Open(cfg.ConfigPath)
	if err != nil {
		return err
	}
	defer file.Close()
	return parseToml(file, cfg.Strict, cfg)
}

func (cfg *Config) Validate() error {
	return cfg.options().Validate()
}
