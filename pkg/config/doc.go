// Package config loads typed configuration structs from environment variables.
//
// Structs declare their variables with caarlos0/env tags:
//
//	type TrialConfig struct {
//	    ShortMode     bool          `env:"TRIAL_SHORT_MODE" envDefault:"false"`
//	    ShortDuration time.Duration `env:"TRIAL_SHORT_DURATION" envDefault:"1h"`
//	}
//
//	var cfg TrialConfig
//	config.MustLoad(&cfg)
//
// A .env file in the working directory is loaded once before the first parse.
// Parsed values are cached per struct type (and prefix), so packages can call
// Load for the same struct without re-reading the environment.
package config
