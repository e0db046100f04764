package config

import (
	"fmt"
	"go/types"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/ledger"
)

const (
	defaultRequestTimeout  = 30 * time.Second
	defaultConfirmTimeout  = 90 * time.Second
	defaultConfirmInterval = 500 * time.Millisecond

	// Oldest node software the harness is known to work against.
	defaultMinNodeVersion = "1.14.0"
)

func (cfg *Config) options() ConfigOptions {
	if cfg.optionsCache != nil {
		return *cfg.optionsCache
	}
	options := ConfigOptions{
		{
			Name:         "config-path",
			EnvVar:       "ANCHOR_HARNESS_CONFIG_PATH",
			TomlKey:      "-",
			Usage:        "File path to the toml configuration file",
			OptType:      types.String,
			ConfigKey:    &cfg.ConfigPath,
			DefaultValue: "",
		},
		{
			Name:         "config-strict",
			EnvVar:       "ANCHOR_HARNESS_CONFIG_STRICT",
			TomlKey:      "STRICT",
			Usage:        "Enable strict toml configuration file parsing",
			OptType:      types.Bool,
			ConfigKey:    &cfg.Strict,
			DefaultValue: false,
		},
		{
			Name:         "rpc-url",
			EnvVar:       "ANCHOR_PROVIDER_URL",
			Usage:        "URL of the ledger RPC node calls are submitted to",
			OptType:      types.String,
			ConfigKey:    &cfg.RPCURL,
			DefaultValue: "",
		},
		{
			Name:         "wallet",
			EnvVar:       "ANCHOR_WALLET",
			Usage:        "Path to the signing wallet keypair file",
			OptType:      types.String,
			ConfigKey:    &cfg.WalletPath,
			DefaultValue: "",
		},
		{
			Name:         "workspace-path",
			Usage:        "Workspace root containing Anchor.toml; detected from the enclosing repository when unset",
			OptType:      types.String,
			ConfigKey:    &cfg.WorkspacePath,
			DefaultValue: "",
		},
		{
			Name:         "program-name",
			Usage:        "Name of the program to invoke; may be omitted when the workspace declares exactly one",
			OptType:      types.String,
			ConfigKey:    &cfg.ProgramName,
			DefaultValue: "",
		},
		{
			Name:         "commitment",
			Usage:        "commitment level a submitted call must reach (processed, confirmed or finalized)",
			OptType:      types.String,
			ConfigKey:    &cfg.Commitment,
			DefaultValue: string(ledger.CommitmentConfirmed),
			CustomSetValue: func(i interface{}) error {
				switch v := i.(type) {
				case string:
					return cfg.Commitment.UnmarshalText([]byte(v))
				default:
					return fmt.Errorf("could not parse commitment: %v", i)
				}
			},
		},
		{
			Name:         "request-timeout",
			Usage:        "HTTP timeout for individual RPC requests",
			OptType:      types.String,
			ConfigKey:    &cfg.RequestTimeout,
			DefaultValue: defaultRequestTimeout.String(),
			CustomSetValue: func(i interface{}) error {
				return parseDuration("request-timeout", i, &cfg.RequestTimeout)
			},
		},
		{
			Name:         "confirm-timeout",
			Usage:        "how long to wait for ledger confirmation of a submitted call",
			OptType:      types.String,
			ConfigKey:    &cfg.ConfirmTimeout,
			DefaultValue: defaultConfirmTimeout.String(),
			CustomSetValue: func(i interface{}) error {
				return parseDuration("confirm-timeout", i, &cfg.ConfirmTimeout)
			},
			Validate: func(o *ConfigOption) error {
				if cfg.ConfirmTimeout <= 0 {
					return errors.New("must be positive")
				}
				return nil
			},
		},
		{
			Name:         "confirm-interval",
			Usage:        "interval between signature status polls while waiting for confirmation",
			OptType:      types.String,
			ConfigKey:    &cfg.ConfirmInterval,
			DefaultValue: defaultConfirmInterval.String(),
			CustomSetValue: func(i interface{}) error {
				return parseDuration("confirm-interval", i, &cfg.ConfirmInterval)
			},
			Validate: func(o *ConfigOption) error {
				if cfg.ConfirmInterval <= 0 {
					return errors.New("must be positive")
				}
				return nil
			},
		},
		{
			Name:         "min-node-version",
			Usage:        "minimum node software version accepted during setup (\"\" disables the check)",
			OptType:      types.String,
			ConfigKey:    &cfg.MinNodeVersion,
			DefaultValue: defaultMinNodeVersion,
		},
		{
			Name:         "journal-db-path",
			Usage:        "SQLite path for the invocation journal (\"\" disables journaling)",
			OptType:      types.String,
			ConfigKey:    &cfg.JournalDBPath,
			DefaultValue: "",
		},
		{
			Name:         "log-level",
			Usage:        "minimum log severity (debug, info, warn, error) to log",
			OptType:      types.String,
			ConfigKey:    &cfg.LogLevel,
			DefaultValue: logrus.InfoLevel.String(),
			CustomSetValue: func(i interface{}) error {
				switch v := i.(type) {
				case string:
					ll, err := logrus.ParseLevel(v)
					if err != nil {
						return fmt.Errorf("could not parse log-level: %v", v)
					}
					cfg.LogLevel = ll
					return nil
				default:
					return fmt.Errorf("could not parse log-level: %v", i)
				}
			},
		},
		{
			Name:         "log-format",
			Usage:        "format used for output logs (json or text)",
			OptType:      types.String,
			ConfigKey:    &cfg.LogFormat,
			DefaultValue: LogFormatText.String(),
			CustomSetValue: func(i interface{}) error {
				switch v := i.(type) {
				case string:
					return cfg.LogFormat.UnmarshalText([]byte(v))
				default:
					return fmt.Errorf("could not parse log-format: %v", i)
				}
			},
		},
		{
			Name:         "endpoint",
			Usage:        "Endpoint the mock ledger listens and serves on",
			OptType:      types.String,
			ConfigKey:    &cfg.Endpoint,
			DefaultValue: "localhost:8899",
		},
		{
			Name:         "admin-endpoint",
			Usage:        "Admin endpoint of the mock ledger, serving /metrics and pprof. \"\" (default) disables the admin server",
			OptType:      types.String,
			ConfigKey:    &cfg.AdminEndpoint,
			DefaultValue: "",
		},
	}
	cfg.optionsCache = &options
	return options
}
