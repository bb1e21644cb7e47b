package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("APP_HOST", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 720*time.Hour, cfg.SessionTTL)
	require.Equal(t, "config/credentials.yml", cfg.StoreCredentialsFile)
	require.False(t, cfg.MigrateOnStart)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "c")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestJSONLoggerTagsApp(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", AppEnv: "production"})
	logger.Info("ready")
	logger.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "biketrack", line["app"])
	require.Equal(t, "production", line["env"])
	require.Equal(t, "ready", line["msg"])
}

func TestStoreResolverUsesEnvValues(t *testing.T) {
	cfg := &Config{StoreURL: "postgres://db/bikes", StoreAnonKey: "anon", StorePassword: "pw", AppHost: "bikes.example.org"}
	r := cfg.StoreResolver(nil)
	require.Equal(t, "postgres://db/bikes", r.Env.URL)
	require.Equal(t, "anon", r.Env.AnonKey)
	require.Equal(t, "pw", r.Env.Password)
	require.Equal(t, "bikes.example.org", r.Host)
}

func TestAsynqRedisOptParsesURL(t *testing.T) {
	cfg := &Config{RedisAddr: "redis://:secret@cache:6380/2"}
	opt := cfg.AsynqRedisOpt()
	require.Equal(t, "cache:6380", opt.Addr)
	require.Equal(t, "secret", opt.Password)
	require.Equal(t, 2, opt.DB)

	cfg.RedisAddr = "127.0.0.1:6379"
	require.Equal(t, "127.0.0.1:6379", cfg.AsynqRedisOpt().Addr)
}
