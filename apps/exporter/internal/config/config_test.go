package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalbibletools/exporter/apps/exporter/internal/config"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func required() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://gbt@localhost/gbt",
		"GITHUB_TOKEN": "ghp_test",
		"QUEUE_URL":    "redis://localhost:6379/0",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.LoadFrom(envFrom(required()))

	require.NoError(t, err)
	assert.Equal(t, "3002", cfg.Port)
	assert.Equal(t, 1, cfg.BatchSize)
	assert.Equal(t, "globalbibletools", cfg.Export.Owner)
	assert.Equal(t, "data", cfg.Export.Repo)
	assert.Equal(t, "main", cfg.Export.Branch)
	assert.Equal(t, "Global Bible Tools", cfg.Export.SystemName)
	assert.Equal(t, "language-exports", cfg.Queue.Stream)
	assert.False(t, cfg.Queue.Consume)
	assert.False(t, cfg.OTelEnabled)
	assert.InDelta(t, 1.0, cfg.OTelSampleRatio, 1e-9)
}

func TestLoad_MissingRequired(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "QUEUE_URL", "GITHUB_TOKEN"} {
		t.Run(key, func(t *testing.T) {
			env := required()
			delete(env, key)

			_, err := config.LoadFrom(envFrom(env))

			var missing config.MissingConfigError
			require.ErrorAs(t, err, &missing)
			assert.Contains(t, missing.Key, key)
		})
	}
}

func TestLoad_AppCredentialsReplaceToken(t *testing.T) {
	env := required()
	delete(env, "GITHUB_TOKEN")
	env["GITHUB_APP_ID"] = "12"
	env["GITHUB_INSTALLATION_ID"] = "34"
	env["GITHUB_PRIVATE_KEY_PATH"] = "/keys/app.pem"

	cfg, err := config.LoadFrom(envFrom(env))

	require.NoError(t, err)
	assert.Equal(t, int64(12), cfg.GitHub.AppID)
	assert.Equal(t, int64(34), cfg.GitHub.InstallationID)
}

func TestLoad_IncompleteAppCredentials(t *testing.T) {
	env := required()
	delete(env, "GITHUB_TOKEN")
	env["GITHUB_APP_ID"] = "12"

	_, err := config.LoadFrom(envFrom(env))

	var missing config.MissingConfigError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "GITHUB_INSTALLATION_ID", missing.Key)
}

func TestLoad_InvalidNumber(t *testing.T) {
	env := required()
	env["EXPORT_BATCH_SIZE"] = "lots"

	_, err := config.LoadFrom(envFrom(env))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXPORT_BATCH_SIZE")
}

func TestLoad_Telemetry(t *testing.T) {
	env := required()
	env["OTEL_ENABLED"] = "true"
	env["OTEL_SAMPLE_RATIO"] = "0.2"

	cfg, err := config.LoadFrom(envFrom(env))

	require.NoError(t, err)
	assert.True(t, cfg.OTelEnabled)
	assert.InDelta(t, 0.2, cfg.OTelSampleRatio, 1e-9)
}

func TestLoad_SampleRatioOutOfRange(t *testing.T) {
	for _, v := range []string{"-0.1", "1.5"} {
		env := required()
		env["OTEL_SAMPLE_RATIO"] = v

		_, err := config.LoadFrom(envFrom(env))

		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "OTEL_SAMPLE_RATIO")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exporter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
batchSize: 4
export:
  owner: acme
  repo: glosses
  branch: exports
queue:
  consume: true
`), 0o600))

	env := required()
	env["EXPORTER_CONFIG"] = path
	env["EXPORT_BRANCH"] = "staging"

	cfg, err := config.LoadFrom(envFrom(env))

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, "acme", cfg.Export.Owner)
	assert.Equal(t, "glosses", cfg.Export.Repo)
	assert.Equal(t, "staging", cfg.Export.Branch, "env overrides file")
	assert.Equal(t, "Global Bible Tools", cfg.Export.SystemName, "unset file keys keep defaults")
	assert.True(t, cfg.Queue.Consume)
}

func TestLoad_MissingFile(t *testing.T) {
	env := required()
	env["EXPORTER_CONFIG"] = filepath.Join(t.TempDir(), "absent.yaml")

	_, err := config.LoadFrom(envFrom(env))

	assert.Error(t, err)
}
