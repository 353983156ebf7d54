package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgegate/edgegate/internal/core/ratelimit"
)

func baseViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("logging.level", "info")
	return v
}

func TestFromViper(t *testing.T) {
	t.Run("DefaultsProducePolicyTable", func(t *testing.T) {
		cfg, err := FromViper(baseViper())
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "memory", cfg.Store.Backend)
		assert.Equal(t, 5, cfg.RateLimit.Policies[ratelimit.ClassAuth].MaxRequests)
		assert.True(t, cfg.RateLimit.Policies[ratelimit.ClassAuth].SkipSuccessful)
	})

	t.Run("ConfiguredPolicyOverridesOneClass", func(t *testing.T) {
		v := baseViper()
		v.Set("ratelimit.policies.api.window", "15m")
		v.Set("ratelimit.policies.api.max_requests", 250)

		cfg, err := FromViper(v)
		require.NoError(t, err)

		api := cfg.RateLimit.Policies[ratelimit.ClassAPI]
		assert.Equal(t, 15*time.Minute, api.Window)
		assert.Equal(t, 250, api.MaxRequests)

		// Untouched classes keep their built-ins.
		assert.Equal(t, time.Hour, cfg.RateLimit.Policies[ratelimit.ClassExpensive].Window)
	})

	t.Run("DurationStringsDecode", func(t *testing.T) {
		v := baseViper()
		v.Set("server.read_timeout", "30s")
		v.Set("requests.ttl", "1h")

		cfg, err := FromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, time.Hour, cfg.Requests.TTL)
	})
}

func TestFromViperRejectsBadConfig(t *testing.T) {
	t.Run("InvalidPolicyIsFatal", func(t *testing.T) {
		v := baseViper()
		v.Set("ratelimit.policies.api.window", "0s")
		v.Set("ratelimit.policies.api.max_requests", 10)

		_, err := FromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ratelimit")
	})

	t.Run("NegativeQuotaIsFatal", func(t *testing.T) {
		v := baseViper()
		v.Set("ratelimit.policies.auth.window", "15m")
		v.Set("ratelimit.policies.auth.max_requests", -1)

		_, err := FromViper(v)
		require.Error(t, err)
	})

	t.Run("UnknownBackend", func(t *testing.T) {
		v := baseViper()
		v.Set("store.backend", "sqlite")

		_, err := FromViper(v)
		require.Error(t, err)
	})

	t.Run("RedisBackendNeedsAddr", func(t *testing.T) {
		v := baseViper()
		v.Set("store.backend", "redis")

		_, err := FromViper(v)
		require.Error(t, err)
	})
}
