// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package config implements configuration file parsing and validation for
// the bundler CLI.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/assetgraph/bundler/internal/optimize"
)

// Config holds the knobs that control a compile run: how hard the
// optimizer works to extract shared bundles, and how the process logs.
type Config struct {
	// MaxParallelRequests is the maximum number of bundles a single bundle
	// group may hold before the optimizer stops growing it further.
	MaxParallelRequests int `mapstructure:"max_parallel_requests"`
	// MinBundleSize is the size threshold (in bytes) below which the
	// optimizer will not extract a shared bundle (§4.2 step 3).
	MinBundleSize uint64 `mapstructure:"min_bundle_size"`
	// MinBundles is the sharing threshold for shared-bundle extraction: an
	// asset becomes a candidate only when more than MinBundles distinct
	// source bundles contain it.
	MinBundles int `mapstructure:"min_bundles"`
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"`
}

// Default returns the configuration used when no file or env override is
// present.
func Default() Config {
	return Config{
		MaxParallelRequests: optimize.DefaultMaxParallelRequests,
		MinBundleSize:       optimize.DefaultMinBundleSize,
		MinBundles:          optimize.DefaultMinBundles,
		LogLevel:            "info",
		LogFormat:           "json",
	}
}

// Load reads configuration from a YAML file at path, then applies any
// BUNDLER_-prefixed environment variable overrides. path may be empty, in
// which case only defaults and environment overrides apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("bundler")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("max_parallel_requests", def.MaxParallelRequests)
	v.SetDefault("min_bundle_size", def.MinBundleSize)
	v.SetDefault("min_bundles", def.MinBundles)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	return c, c.Validate()
}

// Validate reports whether the configuration's values are usable.
func (c Config) Validate() error {
	if c.MaxParallelRequests <= 0 {
		return fmt.Errorf("config: max_parallel_requests must be positive, got %d", c.MaxParallelRequests)
	}
	if c.MinBundles <= 0 {
		return fmt.Errorf("config: min_bundles must be positive, got %d", c.MinBundles)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "json-pretty", "text":
	default:
		return fmt.Errorf("config: invalid log_format %q", c.LogFormat)
	}
	return nil
}
