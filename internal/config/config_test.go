package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("environment:\n  base_url: https://api.example.com\n"))
	require.NoError(t, err)

	assert.Equal(t, "/auth/login", cfg.Environment.Auth.LoginPath)
	assert.Equal(t, "API_USERNAME", cfg.Environment.Auth.UsernameEnv)
	assert.Equal(t, 30*time.Second, cfg.Test.Timeout)
	assert.Equal(t, time.Second, cfg.Test.Pause)
	assert.Equal(t, "userId", cfg.Test.IdentityParam)
	assert.Equal(t, "endpoints.json", cfg.Catalog.Path)
	assert.Equal(t, cfg.Catalog.Path, cfg.Ledger.Path)
	assert.Equal(t, []string{"userId"}, cfg.Aliases["userNameOrId"])
	assert.Equal(t, "data.0.id", cfg.Lookups["instructorId"].Field)
	assert.Len(t, cfg.Augmentations, 2)
	assert.False(t, cfg.History.Enabled())
}

func TestParse_Explicit(t *testing.T) {
	cfg, err := Parse([]byte(`
environment:
  base_url: https://api.example.com
test:
  pause: 250ms
  skip_transport_errors: true
catalog:
  path: catalog.json
ledger:
  path: results.json
parameters:
  rideId: r1
lookups:
  workoutId:
    path: /api/user/{userId}/workouts
    field: data.0.id
augmentations:
  - marker: platform
    headers:
      X-Platform: web
history:
  type: postgres
`))
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Test.Pause)
	assert.True(t, cfg.Test.SkipTransportErrors)
	assert.Equal(t, "results.json", cfg.Ledger.Path)
	assert.Equal(t, "r1", cfg.Parameters["rideId"])
	assert.Equal(t, LookupConfig{Path: "/api/user/{userId}/workouts", Field: "data.0.id"}, cfg.Lookups["workoutId"])
	require.Len(t, cfg.Augmentations, 1)
	assert.Equal(t, "web", cfg.Augmentations[0].Headers["X-Platform"])
	assert.True(t, cfg.History.Enabled())
	assert.Equal(t, "probe_runs", cfg.History.Table)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing base url", yaml: "test:\n  pause: 1s\n"},
		{name: "negative pause", yaml: "environment:\n  base_url: x\ntest:\n  pause: -1s\n"},
		{name: "lookup without field", yaml: "environment:\n  base_url: x\nlookups:\n  a:\n    path: /a\n"},
		{name: "augmentation without marker", yaml: "environment:\n  base_url: x\naugmentations:\n  - headers: {a: b}\n"},
		{name: "not yaml", yaml: "environment: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment:\n  base_url: https://file\n  auth:\n    username_env: TEST_PROBE_USER\n"), 0644))

	t.Setenv("API_BASE_URL", "https://env")
	t.Setenv("TEST_PROBE_USER", "alice")
	t.Setenv("API_PASSWORD", "secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env", cfg.Environment.BaseURL)
	assert.Equal(t, "alice", cfg.Environment.Auth.Username)
	assert.Equal(t, "secret", cfg.Environment.Auth.Password)
}

func TestLoadConfig_BaseURLFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("test:\n  timeout: 5s\n"), 0644))
	t.Setenv("API_BASE_URL", "https://env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env", cfg.Environment.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Test.Timeout)
}

func TestLoadConfig_BaseURLRequired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("test:\n  timeout: 5s\n"), 0644))
	t.Setenv("API_BASE_URL", "")

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "environment.base_url is required")
}

func TestParse_Pause(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want time.Duration
	}{
		{name: "absent", yaml: "environment:\n  base_url: x\n", want: time.Second},
		{name: "section without pause", yaml: "environment:\n  base_url: x\ntest:\n  timeout: 5s\n", want: time.Second},
		{name: "explicit zero", yaml: "environment:\n  base_url: x\ntest:\n  pause: 0s\n", want: 0},
		{name: "explicit", yaml: "environment:\n  base_url: x\ntest:\n  pause: 2s\n", want: 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Test.Pause)
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "config file not found")
}
