// Package config loads the daemon's boot-time settings from command-line
// flags and an optional TOML file, with flags bound into viper so either
// source, or the environment, can supply a value.
package config

import (
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/mutker/socpowerhintd/internal/errors"
)

const (
	configName = "socpowerhintd"
	configType = "toml"
	envPrefix  = "SOCPOWERHINTD"

	// DefaultSocHint is the primary driver selected when --socHint is
	// not given.
	DefaultSocHint = "wlt"

	defaultNotificationDelayMs = 0
)

var validSocHints = map[string]bool{
	"wlt":  true,
	"swlt": true,
	"hfi":  true,
}

// Config holds every setting the daemon needs to boot.
type Config struct {
	SendHint          bool   `mapstructure:"sendHint"`
	SendGfxHint       bool   `mapstructure:"sendGfxHint"`
	SocHint           string `mapstructure:"socHint"`
	NotificationDelay int    `mapstructure:"notification-delay"`
	Debug             bool   `mapstructure:"debug"`
	Verbose           bool   `mapstructure:"verbose"`
}

// Load parses flags, merges in a TOML file named socpowerhintd in /etc
// (/etc/socpowerhintd.toml, another extension viper supports, or no
// extension) and any SOCPOWERHINTD_-prefixed environment variables if
// present, and validates the result.
func Load() (*Config, error) {
	errFactory := errors.New()

	flags := pflag.NewFlagSet("socpowerhintd", pflag.ContinueOnError)
	flags.Bool("sendHint", false, "forward EFFICIENT_POWER hints to the hint sink")
	flags.Bool("sendGfxHint", false, "forward GFX_MODE hints to the hint sink")
	flags.String("socHint", DefaultSocHint, "primary driver: wlt, swlt, or hfi")
	flags.Int("notification-delay", defaultNotificationDelayMs, "WLT notification delay in ms (wlt/swlt only)")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("verbose", false, "enable verbose logging")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath("/etc")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	errFactory := errors.New()

	if !validSocHints[cfg.SocHint] {
		return errFactory.WithData(errors.ErrInvalidSocHint, cfg.SocHint)
	}

	if cfg.NotificationDelay < 0 {
		return errFactory.WithData(errors.ErrInvalidDelay, cfg.NotificationDelay)
	}

	if cfg.SocHint == "hfi" && cfg.NotificationDelay != defaultNotificationDelayMs {
		return errFactory.WithMessage(errors.ErrInvalidDelay,
			"--notification-delay is only meaningful when --socHint is wlt or swlt")
	}

	return nil
}
