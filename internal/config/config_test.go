package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
[aws]
region = "eu-west-1"
profile = "audit"
resources = ["ec2", "s3"]

[output]
format = "json"
untagged_only = true
metrics_file = "/var/lib/node_exporter/tagaudit.prom"

[watch]
interval = "15m"

[otel]
endpoint = "localhost:4317"
insecure = true
service_name = "tagaudit-prod"

[otel.traces]
enabled = true
sample_rate = 0.5

[otel.metrics]
enabled = true

[log]
level = "debug"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "audit", cfg.AWS.Profile)
	assert.Equal(t, []string{"ec2", "s3"}, cfg.AWS.Resources)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.True(t, cfg.Output.UntaggedOnly)
	assert.Equal(t, "/var/lib/node_exporter/tagaudit.prom", cfg.Output.MetricsFile)
	assert.Equal(t, 15*time.Minute, cfg.Watch.Interval)
	assert.Equal(t, "localhost:4317", cfg.OTEL.Endpoint)
	assert.True(t, cfg.OTEL.Insecure)
	assert.Equal(t, "tagaudit-prod", cfg.OTEL.ServiceName)
	assert.True(t, cfg.OTEL.Traces.Enabled)
	assert.Equal(t, 0.5, cfg.OTEL.Traces.SampleRate)
	assert.True(t, cfg.OTEL.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	content := `
[aws]
region = "us-east-1"

[otel.traces]
enabled = true
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "table", cfg.Output.Format)
	assert.Equal(t, "tagaudit", cfg.OTEL.ServiceName)
	assert.Equal(t, 1.0, cfg.OTEL.Traces.SampleRate)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, time.Hour, cfg.Watch.Interval)
	assert.Empty(t, cfg.AWS.Resources)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "table", cfg.Output.Format)
	assert.Equal(t, "tagaudit", cfg.OTEL.ServiceName)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, time.Hour, cfg.Watch.Interval)
	assert.False(t, cfg.OTEL.Traces.Enabled)
	assert.Zero(t, cfg.OTEL.Traces.SampleRate)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_InvalidTOML(t *testing.T) {
	content := `
[aws
region = 42
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_UnknownKey(t *testing.T) {
	content := `
[aws]
region = "us-east-1"
access_key = "AKIDEXAMPLE"
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown key "aws.access_key"`)
}

func TestLoad_InvalidInterval(t *testing.T) {
	content := `
[aws]
region = "us-east-1"

[watch]
interval = "not-a-duration"
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse interval")
}

func TestConfig_SetInterval(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.SetInterval("90s"))
	assert.Equal(t, 90*time.Second, cfg.Watch.Interval)

	require.Error(t, cfg.SetInterval("soon"))
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.AWS.Region = "us-east-1"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no region", func(c *Config) { c.AWS.Region = "" }, "region required"},
		{"unknown resource", func(c *Config) { c.AWS.Resources = []string{"ec2", "sqs"} }, `unknown resource type "sqs"`},
		{"bad format", func(c *Config) { c.Output.Format = "html" }, "invalid output format: html"},
		{"sample rate too high", func(c *Config) { c.OTEL.Traces.SampleRate = 1.5 }, "sample_rate must be between"},
		{"sample rate negative", func(c *Config) { c.OTEL.Traces.SampleRate = -0.1 }, "sample_rate must be between"},
		{"zero interval", func(c *Config) { _ = c.SetInterval("0s") }, "interval must be positive"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, `invalid level "loud"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_LogLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, level)
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}
