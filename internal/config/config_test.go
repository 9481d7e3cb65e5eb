package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
env: dev
storage:
  driver: memory
ledger:
  driver: redis
tokens:
  secret: "0123456789abcdef0123456789abcdef"
  access_token_ttl: 10m
  refresh_token_ttl: 24h
notifier:
  transport: log
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestMustLoadPath_AppliesDefaults(t *testing.T) {
	cfg := MustLoadPath(writeConfig(t, validYAML))

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, DriverRedis, cfg.Ledger.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Tokens.AccessTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.Tokens.RefreshTokenTTL)
	assert.Equal(t, AlgorithmBcrypt, cfg.Password.Algorithm)
	assert.Equal(t, 10, cfg.Password.BcryptCost)
	assert.Equal(t, "localhost:8080", cfg.HTTPServer.Address)
	assert.Equal(t, 4*time.Second, cfg.HTTPServer.Timeout)
	assert.Equal(t, 2, cfg.Notifier.Workers)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 720*time.Hour, cfg.Ledger.Retention)
}

func TestMustLoadPath_EnvOverridesFile(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "5m")

	cfg := MustLoadPath(writeConfig(t, validYAML))

	assert.Equal(t, 5*time.Minute, cfg.Tokens.AccessTokenTTL)
}

func TestMustLoadPath_MissingFile(t *testing.T) {
	require.Panics(t, func() {
		MustLoadPath(filepath.Join(t.TempDir(), "nope.yaml"))
	})
}

func TestMustLoadPath_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"short secret": `
tokens:
  secret: "short"
storage: {driver: memory}
ledger: {driver: memory}
notifier: {transport: log}
`,
		"refresh not longer than access": `
tokens:
  secret: "0123456789abcdef0123456789abcdef"
  access_token_ttl: 1h
  refresh_token_ttl: 1h
storage: {driver: memory}
ledger: {driver: memory}
notifier: {transport: log}
`,
		"ledger retention shorter than access ttl": `
tokens:
  secret: "0123456789abcdef0123456789abcdef"
  access_token_ttl: 15m
storage: {driver: memory}
ledger: {driver: redis, retention: 5m}
notifier: {transport: log}
`,
		"unknown ledger": `
tokens:
  secret: "0123456789abcdef0123456789abcdef"
storage: {driver: memory}
ledger: {driver: mongo}
notifier: {transport: log}
`,
		"rabbitmq without url": `
tokens:
  secret: "0123456789abcdef0123456789abcdef"
storage: {driver: memory}
ledger: {driver: memory}
notifier: {transport: rabbitmq}
`,
		"postgres without credentials": `
tokens:
  secret: "0123456789abcdef0123456789abcdef"
storage: {driver: postgres}
ledger: {driver: memory}
notifier: {transport: log}
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, body)
			require.Panics(t, func() { MustLoadPath(path) })
		})
	}
}
