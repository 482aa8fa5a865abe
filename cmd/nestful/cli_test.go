package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "/api/v1", cfg.Prefix)
	assert.Equal(t, "dev", cfg.Log)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.False(t, cfg.Throttle.Enabled)
	assert.Equal(t, 100, cfg.Throttle.Limit)
	assert.Equal(t, time.Minute, cfg.Throttle.Window)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nestful.yaml")
	content := `listen: ":9090"
prefix: /v2
log: prod
database:
  driver: sqlite
  dsn: demo.db
throttle:
  enabled: true
  limit: 10
  window: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "/v2", cfg.Prefix)
	assert.Equal(t, "prod", cfg.Log)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "demo.db", cfg.Database.DSN)
	assert.True(t, cfg.Throttle.Enabled)
	assert.Equal(t, 10, cfg.Throttle.Limit)
	assert.Equal(t, 30*time.Second, cfg.Throttle.Window)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("NESTFUL_LISTEN", ":7070")
	t.Setenv("NESTFUL_DATABASE_DRIVER", "sqlite")
	t.Setenv("NESTFUL_DATABASE_DSN", "env.db")

	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "env.db", cfg.Database.DSN)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown driver",
			content: "database:\n  driver: mongodb\n",
			wantErr: "database.driver",
		},
		{
			name:    "sql driver without dsn",
			content: "database:\n  driver: postgres\n",
			wantErr: "database.dsn",
		},
		{
			name:    "prefix without slash",
			content: "prefix: api\n",
			wantErr: "prefix",
		},
		{
			name:    "cert without key",
			content: "tls:\n  cert_file: server.crt\n",
			wantErr: "tls.cert_file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nestful.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := loadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "nestful version:")
	assert.Contains(t, out.String(), "Git commit:")
	assert.Contains(t, out.String(), "Go version:")
}

func TestRoutesCommandJSON(t *testing.T) {
	routesJSON = true
	defer func() { routesJSON = false }()

	var out bytes.Buffer
	routesCmd.SetOut(&out)
	require.NoError(t, runRoutes(routesCmd, nil))

	var routes []struct {
		Name    string
		Methods []string
		Pattern string
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &routes))
	require.NotEmpty(t, routes)

	names := make(map[string]string)
	for _, route := range routes {
		names[route.Name] = route.Pattern
	}
	assert.Equal(t, "/api/v1/user/schema", names["user.schema"])
	assert.Contains(t, names, "user.nested.entries")
	assert.Contains(t, names, "entry.nested.comments")
}

func TestRouteTableRender(t *testing.T) {
	var out bytes.Buffer
	table := newRouteTable(&out, true)
	table.addRow("user_list", "GET,POST", "/api/v1/user")
	table.addRow("user_detail", "GET,PUT,PATCH,DELETE", "/api/v1/user/{id}")
	table.render()

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Contains(t, string(lines[0]), "NAME")
	assert.Contains(t, string(lines[0]), "PATTERN")
	assert.Contains(t, string(lines[2]), "user_list")
	assert.Contains(t, string(lines[3]), "user_detail")
}

func TestRenderConfig(t *testing.T) {
	minimal := renderConfig(initAnswers{
		Listen: ":8080",
		Prefix: "/api/v1",
		Driver: "memory",
		Log:    "dev",
	})
	assert.Contains(t, minimal, `listen: ":8080"`)
	assert.Contains(t, minimal, "driver: memory")
	assert.NotContains(t, minimal, "redis:")
	assert.NotContains(t, minimal, "jwt:")

	full := renderConfig(initAnswers{
		Listen:    ":8443",
		Prefix:    "/api/v1",
		Driver:    "postgres",
		DSN:       "postgres://localhost/nestful",
		RedisAddr: "localhost:6379",
		JWTSecret: "hunter2",
		Log:       "prod",
	})
	assert.Contains(t, full, "driver: postgres")
	assert.Contains(t, full, `dsn: "postgres://localhost/nestful"`)
	assert.Contains(t, full, `addr: "localhost:6379"`)
	assert.Contains(t, full, `secret: "hunter2"`)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}
