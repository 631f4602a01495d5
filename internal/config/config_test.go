package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargo_ingest/internal/domain"
)

func TestParse_DefaultsApplied(t *testing.T) {
	t.Setenv("PORTAL_PASSWORD", "s3cret")

	cfg, err := Parse([]byte(`
portal:
  base_url: https://portal.example.com
  username: dispatcher
  password: ${PORTAL_PASSWORD}
recipients:
  manager: "5511999990000"
  dispatcher: "5511988880000"
`))
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "s3cret", cfg.Portal.Password)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Portal.Timeout)
	assert.Equal(t, "https://portal.example.com", cfg.Messaging.PortalURL)
	assert.Equal(t, []string{"dispatcher", "manager"}, cfg.Notify)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.Interval)
	assert.Equal(t, 8, cfg.Schedule.StartHour)
	assert.Equal(t, 18, cfg.Schedule.EndHour)
	assert.Equal(t, "America/Sao_Paulo", cfg.Schedule.Timezone)
	assert.Equal(t, 60*time.Second, cfg.Cache.LoadsTTL)
	assert.True(t, cfg.CacheEnabled())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_MissingPortalSetting(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		setting string
	}{
		{
			name:    "no base url",
			yaml:    "portal:\n  username: u\n  password: p\n",
			setting: "portal.base_url",
		},
		{
			name:    "no username",
			yaml:    "portal:\n  base_url: http://x\n  password: p\n",
			setting: "portal.username",
		},
		{
			name:    "no password",
			yaml:    "portal:\n  base_url: http://x\n  username: u\n",
			setting: "portal.password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))

			var cfgErr *domain.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.setting, cfgErr.Setting)
		})
	}
}

func TestParse_TestEnvToleratesEmptyPortal(t *testing.T) {
	cfg, err := Parse([]byte("env: test\ncache:\n  enabled: true\n"))
	require.NoError(t, err)

	assert.True(t, cfg.IsTest())
	assert.Empty(t, cfg.Portal.BaseURL)
	assert.False(t, cfg.CacheEnabled())
}

func TestCacheEnabled_ExplicitlyDisabled(t *testing.T) {
	cfg, err := Parse([]byte(`
portal: {base_url: http://x, username: u, password: p}
cache:
  enabled: false
`))
	require.NoError(t, err)
	assert.False(t, cfg.CacheEnabled())
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("portal: ["))
	assert.ErrorContains(t, err, "parse config")
}
