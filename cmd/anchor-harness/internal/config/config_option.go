package config

import (
	"fmt"
	"go/types"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ConfigOptions is a group of ConfigOptions that can be for convenience
// initialized and set at the same time.
type ConfigOptions []*ConfigOption

// Init registers the cli flags and environment variable bindings for all
// the options.
func (options ConfigOptions) Init(v *viper.Viper, cmd *cobra.Command) error {
	for _, option := range options {
		if err := option.init(v, cmd); err != nil {
			return err
		}
	}
	return nil
}

// Validate all the config options.
func (options ConfigOptions) Validate() error {
	for _, option := range options {
		if option.Validate != nil {
			err := option.Validate(option)
			if err != nil {
				return errors.Wrapf(err, "invalid config value for %s", option.Name)
			}
		}
	}
	return nil
}

// ConfigOption is a complete description of the configuration of a command line option
type ConfigOption struct {
	Name           string                  // e.g. "workspace-path"
	EnvVar         string                  // e.g. "ANCHOR_WALLET". Defaults to uppercase/underscore representation of name. - to omit
	TomlKey        string                  // Defaults to uppercase/underscore representation of name. - to omit from toml
	Usage          string                  // Help text
	OptType        types.BasicKind         // The type of this option, e.g. types.Bool
	DefaultValue   interface{}             // A default if no option is provided. Omit or set to `nil` if no default
	ConfigKey      interface{}             // Pointer to the final key in the linked Config struct
	CustomSetValue func(interface{}) error // Optional function for custom validation/transformation
	Validate       func(*ConfigOption) error
}

// Returns "-" if this option is omitted in the toml
func (o ConfigOption) getTomlKey() string {
	if o.TomlKey == "-" || o.TomlKey == "_" {
		return "-"
	}
	if o.TomlKey != "" {
		return o.TomlKey
	}
	if o.EnvVar != "" && o.EnvVar != "-" {
		return o.EnvVar
	}
	return strings.ToUpper(strings.ReplaceAll(o.Name, "-", "_"))
}

func (o ConfigOption) getEnvVar() string {
	if o.EnvVar == "-" {
		return ""
	}
	if o.EnvVar != "" {
		return o.EnvVar
	}
	return strings.ToUpper(strings.ReplaceAll(o.Name, "-", "_"))
}

func (o *ConfigOption) init(v *viper.Viper, cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()
	switch o.OptType {
	case types.Bool:
		defaultValue, _ := o.DefaultValue.(bool)
		flags.Bool(o.Name, defaultValue, o.Usage)
	case types.String:
		defaultValue := ""
		if o.DefaultValue != nil {
			defaultValue = fmt.Sprint(o.DefaultValue)
		}
		flags.String(o.Name, defaultValue, o.Usage)
	default:
		return errors.Errorf("unexpected option type %v for flag %s", o.OptType, o.Name)
	}
	if err := v.BindPFlag(o.Name, flags.Lookup(o.Name)); err != nil {
		return err
	}
	if envVar := o.getEnvVar(); envVar != "" {
		if err := v.BindEnv(o.Name, envVar); err != nil {
			return err
		}
	}
	return nil
}

func (o *ConfigOption) setValue(i interface{}) error {
	if o.CustomSetValue != nil {
		return errors.Wrapf(o.CustomSetValue(i), "unable to parse %s", o.Name)
	}
	switch key := o.ConfigKey.(type) {
	case *bool:
		return parseBool(o.Name, i, key)
	case *string:
		return parseString(o.Name, i, key)
	case *time.Duration:
		return parseDuration(o.Name, i, key)
	default:
		return errors.Errorf("no parser for option %s", o.Name)
	}
}
