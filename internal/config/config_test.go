package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Equal(t, StorePostgres, cfg.Database.Store)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL.Duration)
	assert.Zero(t, cfg.Cache.TTL.Duration)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox-rules.toml")
	content := `
[server]
port = "9000"

[database]
store = "memory"

[auth]
jwt_secret = "from-file"
email = "me@example.com"
token_ttl = "30m"

[cache]
ttl = "5s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path, envMap(map[string]string{
		"JWT_SECRET": "from-env",
		"LOG_LEVEL":  "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, StoreMemory, cfg.Database.Store)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret, "environment overrides the file")
	assert.Equal(t, "me@example.com", cfg.Auth.Email)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL.Duration)
	assert.Equal(t, 5*time.Second, cfg.Cache.TTL.Duration)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[auth]\njwt_secrte = \"typo\"\n"), 0o600))

	_, err := Load(path, envMap(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secrte")
}

func TestLoadInvalidDurationEnv(t *testing.T) {
	_, err := Load("", envMap(map[string]string{"TOKEN_TTL": "soon"}))

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "TOKEN_TTL", cfgErr.Key)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		wantKey string
	}{
		{"missing secret", map[string]string{"DATABASE_URL": "postgres://x"}, "JWT_SECRET"},
		{"postgres without url", map[string]string{"JWT_SECRET": "s"}, "DATABASE_URL"},
		{"unknown store", map[string]string{"JWT_SECRET": "s", "STORE": "mongo"}, "STORE"},
		{"memory store", map[string]string{"JWT_SECRET": "s", "STORE": "memory"}, ""},
		{"postgres with url", map[string]string{"JWT_SECRET": "s", "DATABASE_URL": "postgres://x"}, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("", envMap(tc.env))
			require.NoError(t, err)

			err = cfg.Validate()
			if tc.wantKey == "" {
				assert.NoError(t, err)
				return
			}

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
			assert.Equal(t, tc.wantKey, cfgErr.Key)
		})
	}
}
