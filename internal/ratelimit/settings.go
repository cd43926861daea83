package ratelimit

import (
	"strings"

	"github.com/corpbenefits/benefits-platform/internal/config"
	"github.com/corpbenefits/benefits-platform/internal/settings"
)

// SettingsConfig captures the rate limit settings.
type SettingsConfig struct {
	Limit         int
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// SettingsFromConfig derives limiter settings from the service config.
func SettingsFromConfig(cfg config.Config) SettingsConfig {
	out := SettingsConfig{
		Limit:         cfg.RateLimit,
		RedisEnabled:  cfg.Redis.Enabled,
		RedisAddr:     strings.TrimSpace(cfg.Redis.Addr),
		RedisPassword: strings.TrimSpace(cfg.Redis.Password),
		RedisDB:       cfg.Redis.DB,
		RedisPrefix:   strings.TrimSpace(cfg.Redis.Prefix),
	}
	if out.RedisPrefix == "" {
		out.RedisPrefix = settings.DefaultRedisPrefix
	}
	out.RedisPrefix += ":rl"
	if out.RedisDB < 0 {
		out.RedisDB = 0
	}
	if out.Limit < 0 {
		out.Limit = 0
	}
	return out
}

// StaticSettings returns a provider that always yields cfg.
func StaticSettings(cfg SettingsConfig) SettingsProvider {
	return func() SettingsConfig { return cfg }
}
