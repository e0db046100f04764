package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

func parseBool(name string, i interface{}, key *bool) error {
	switch v := i.(type) {
	case nil:
		return nil
	case bool:
		*key = v
	case string:
		switch strings.ToLower(v) {
		case "true":
			*key = true
		case "false":
			*key = false
		default:
			return fmt.Errorf("invalid boolean value %s: %s", name, v)
		}
	default:
		return fmt.Errorf("could not parse boolean %s: %v", name, i)
	}
	return nil
}

func parseString(name string, i interface{}, key *string) error {
	switch v := i.(type) {
	case nil:
		return nil
	case string:
		*key = v
	default:
		return fmt.Errorf("could not parse string %s: %v", name, i)
	}
	return nil
}

func parseDuration(name string, i interface{}, key *time.Duration) error {
	switch v := i.(type) {
	case nil:
		return nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "could not parse duration %s: %q", name, v)
		}
		*key = d
	case time.Duration:
		*key = v
	case *time.Duration:
		*key = *v
	default:
		return fmt.Errorf("%s is not a duration", name)
	}
	return nil
}
