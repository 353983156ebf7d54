package cmd

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/edgegate/edgegate/internal/config"
	"github.com/edgegate/edgegate/internal/core/store"
)

// openCounter builds the shared counter store for the configured backend.
// The caller owns the returned store and must Close it.
func openCounter(cfg *config.Config) (store.Counter, error) {
	switch cfg.Store.Backend {
	case "redis":
		return store.NewRedis(cfg.Store.Redis)
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// loadConfig decodes and validates the merged viper state.
func loadConfig() (*config.Config, error) {
	return config.FromViper(viper.GetViper())
}
