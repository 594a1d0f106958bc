package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct. Every `env`
// tag is looked up with prefix prepended, so `env:"LOG_LEVEL"` under the
// prefix "SIXTY60_" reads SIXTY60_LOG_LEVEL.
func Load(cfg any, prefix string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
