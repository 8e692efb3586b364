// Package config fills env-tagged structs from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Option adjusts how variables are looked up.
type Option func(*env.Options)

// WithPrefix prepends prefix to every `env` tag.
func WithPrefix(prefix string) Option {
	return func(o *env.Options) { o.Prefix = prefix }
}

// WithEnvironment reads variables from environ instead of the process
// environment. Keys missing from environ take their defaults.
func WithEnvironment(environ map[string]string) Option {
	return func(o *env.Options) { o.Environment = environ }
}

// Load parses variables into cfg, a pointer to a struct using `env` and
// `envDefault` tags:
//
//	type Config struct {
//	    Port     int    `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any, opts ...Option) error {
	var o env.Options
	for _, opt := range opts {
		opt(&o)
	}
	if err := env.ParseWithOptions(cfg, o); err != nil {
		if o.Prefix != "" {
			return fmt.Errorf("parse config with prefix %q: %w", o.Prefix, err)
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
