package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plutus/webengage-pipeline/internal/pipeline"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func TestLoad(t *testing.T) {
	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

redis:
  enabled: true
  addr: "redis.internal:6380"
  ttl_hours: 24

inbox:
  enabled: true
  s3_bucket: "zoom-exports"
  s3_region: "us-east-1"
  prefix: "incoming/"
  interval_minutes: 5
  profile: "bootcamp"

defaults:
  datetime_threshold: 0.95
  approved_conductors:
    - "Sukhpreet Monga"

profiles:
  - name: "bootcamp"
    kind: "bootcamp_dual"
    event_name: "Bootcamp Attended"
    time_aggregation: "max"
    conductor_map:
      "989 8318 8454": "Sukhpreet Monga"
  - name: "registrations"
    kind: "registration"
    event_name: "Webinar Registration"
    datetime_threshold: 0.8
`
	cfg, err := Load(writeConfig(t, configContent))
	require.NoError(t, err)

	// Server config
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Redis config
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL())

	// Inbox config
	assert.True(t, cfg.Inbox.Enabled)
	assert.Equal(t, "zoom-exports", cfg.Inbox.S3Bucket)
	assert.Equal(t, "incoming/", cfg.Inbox.Prefix)
	assert.Equal(t, 5*time.Minute, cfg.Inbox.Interval())
	assert.Equal(t, "bootcamp", cfg.Inbox.Profile)

	// Profiles
	require.Len(t, cfg.Profiles, 2)
	bootcamp, ok := cfg.Profile("bootcamp")
	require.True(t, ok)
	assert.Equal(t, pipeline.KindBootcampDual, bootcamp.Kind)
	assert.Equal(t, pipeline.AggregateMax, bootcamp.TimeAggregation)
	assert.Equal(t, "Sukhpreet Monga", bootcamp.ConductorMap["989 8318 8454"])

	// Shared defaults flow into profiles that do not set their own value
	assert.Equal(t, 0.95, bootcamp.DatetimeThreshold)
	assert.Equal(t, []string{"Sukhpreet Monga"}, bootcamp.ApprovedConductors)

	// Profile values win over shared defaults
	reg, ok := cfg.Profile("registrations")
	require.True(t, ok)
	assert.Equal(t, 0.8, reg.DatetimeThreshold)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 0\n"))
	require.NoError(t, err)

	// Verify defaults are applied
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 72*time.Hour, cfg.Redis.TTL())
	assert.Equal(t, 10*time.Minute, cfg.Inbox.Interval())
	assert.Equal(t, "webinar-attended", cfg.Inbox.Profile)

	// Built-in profiles ship when the file defines none
	assert.Equal(t, []string{"webinar-attended", "registrations", "bootcamp"}, cfg.ProfileNames())
	prof, ok := cfg.Profile("webinar-attended")
	require.True(t, ok)
	assert.Equal(t, pipeline.KindWebinarAttended, prof.Kind)
	assert.Equal(t, "Webinar Attended", prof.EventName)
	assert.Equal(t, 0.99, prof.DatetimeThreshold)
	assert.Equal(t, pipeline.AggregateSum, prof.TimeAggregation)
	assert.NotEmpty(t, prof.CategoryTokens)
	assert.NotEmpty(t, prof.DatetimeLayouts)
}

func TestLoadRejectsBadProfile(t *testing.T) {
	configContent := `
profiles:
  - name: "broken"
    kind: "not-a-kind"
`
	_, err := Load(writeConfig(t, configContent))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestLoadFromEnv(t *testing.T) {
	configContent := `
redis:
  addr: "file-redis:6379"

inbox:
  s3_bucket: "file-bucket"
`
	path := writeConfig(t, configContent)

	// Set environment variables
	os.Setenv("REDIS_ADDR", "env-redis:6379")
	os.Setenv("INBOX_S3_BUCKET", "env-bucket")
	defer func() {
		os.Unsetenv("REDIS_ADDR")
		os.Unsetenv("INBOX_S3_BUCKET")
	}()

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "env-bucket", cfg.Inbox.S3Bucket)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestProfileLookupMiss(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 8081\n"))
	require.NoError(t, err)

	_, ok := cfg.Profile("no-such-profile")
	assert.False(t, ok)
}
