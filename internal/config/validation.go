package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() func(*Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	return func(c *Config) error {
		if err := v.Struct(c); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				return formatErrors(verrs)
			}
			return err
		}
		if c.RenderConcurrency > DefaultMaxRenderSlots {
			return fmt.Errorf("render concurrency must be between 1 and %d", DefaultMaxRenderSlots)
		}
		if c.CacheEnabled && strings.TrimSpace(c.CacheDir) == "" {
			return fmt.Errorf("cache dir is required when the cache is enabled")
		}
		return nil
	}
}

func formatErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", e.Namespace(), e.Param(), e.Value()))
		case "gt", "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s", e.Namespace(), e.Tag(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q validation", e.Namespace(), e.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
