package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/edgegate/edgegate/internal/core/ratelimit"
)

// FromViper decodes the merged viper state (defaults, config file,
// environment) into a validated Config. Route classes absent from the
// config keep their built-in policies.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.RateLimit.Policies = mergePolicies(cfg.RateLimit.Policies)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// mergePolicies overlays configured route classes on the built-in table so
// the default fallback always exists.
func mergePolicies(configured ratelimit.Policies) ratelimit.Policies {
	merged := ratelimit.DefaultPolicies()
	for class, policy := range configured {
		merged[class] = policy
	}
	return merged
}
