package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.True(t, cfg.UseLocalDB)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, "5 0 * * *", cfg.StreakDecaySchedule)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigExternalDatabaseDisablesLocal(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("SUPABASE_URL", "  https://example.supabase.co \n")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.UseLocalDB)
	assert.Equal(t, "https://example.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestValidateRequiresSecretInProduction(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		Port:        "3000",
		Timezone:    "UTC",
		PostgresDSN: "postgres://localhost/mom",
		JWTSecret:   defaultJWTSecret,
	}
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "a-real-secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsIncompleteDatabase(t *testing.T) {
	cfg := &Config{
		Environment: "development",
		Port:        "3000",
		Timezone:    "UTC",
		SupabaseURL: "https://example.supabase.co",
	}
	assert.Error(t, cfg.Validate())
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	assert.Equal(t, "UTC", cfg.Location().String())
	assert.Error(t, (&Config{Port: "1", Timezone: "Not/AZone", UseLocalDB: true}).Validate())
}
