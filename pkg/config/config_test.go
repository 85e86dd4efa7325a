package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 256, cfg.Mutations.BufferSize)
	assert.Equal(t, 10*time.Second, cfg.Mutations.Timeout)
	assert.InDelta(t, 0.6, cfg.Assignment.ConfidenceThreshold, 1e-9)
	assert.InDelta(t, 1.0, cfg.Assignment.HeadroomWeight+cfg.Assignment.LoadWeight+cfg.Assignment.ProximityWeight, 1e-9)
	assert.Equal(t, 2*time.Minute, cfg.Assignment.SuggestionCacheTTL)
	assert.True(t, cfg.Notifications.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ASSIGNMENT_CONFIDENCE_THRESHOLD", 1.7)
	v.Set("MUTATION_TIMEOUT", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := fromViper(v)

	assert.Equal(t, 1.0, cfg.Assignment.ConfidenceThreshold)
	assert.Equal(t, 10*time.Second, cfg.Mutations.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
