package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "console", cfg.Server.LogFormat)
	require.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)
	require.Equal(t, 3306, cfg.Database.MySQL.Port)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "redis.example.com:6380", cfg.Cache.Redis.Address)
	require.Equal(t, "directory:test", cfg.Cache.Redis.Channel)
	require.Equal(t, 2*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, 10, cfg.RateLimit.Messages)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Window)

	require.Equal(t, "jwt", cfg.Auth.Provider)
	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "directory-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.False(t, cfg.Features.Notifications.Enabled)
	require.True(t, cfg.Features.Repair.OnVendorList)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@every 5m", cfg.Maintenance.IntegritySchedule)
	require.Equal(t, "@daily", cfg.Maintenance.AuditSchedule)
	require.Equal(t, 30, cfg.Maintenance.AuditRetentionDays)

	require.Equal(t, "legacy-project", cfg.Importer.ProjectID)
	require.Equal(t, 50, cfg.Importer.BatchSize)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DIRECTORY_SERVER_PORT", "7070")
	t.Setenv("DIRECTORY_RATELIMIT_MESSAGES", "5")
	t.Setenv("DIRECTORY_AUTH_JWT_SECRET", "from-env")

	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 5, cfg.RateLimit.Messages)
	require.Equal(t, "from-env", cfg.Auth.JWT.Secret)
}

func TestLoadConfigDefaultsRequireSecret(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "auth.jwt.secret")

	t.Setenv("DIRECTORY_AUTH_JWT_SECRET", "s3cret")
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 30, cfg.RateLimit.Messages)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.Equal(t, 200, cfg.Importer.BatchSize)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Auth: AuthConfig{Provider: "firebase"}}
	require.ErrorContains(t, cfg.Validate(), "project_id")

	cfg.Auth.Firebase.ProjectID = "proj"
	require.NoError(t, cfg.Validate())

	cfg.Auth.Provider = "saml"
	require.ErrorContains(t, cfg.Validate(), "unsupported")

	cfg = Config{Auth: AuthConfig{Provider: "jwt", JWT: JWTSettings{Secret: "x"}}, RateLimit: RateLimitConfig{Messages: -1}}
	require.ErrorContains(t, cfg.Validate(), "ratelimit")

	cfg.RateLimit.Messages = 0
	cfg.Server.LogLevel = "chatty"
	require.ErrorContains(t, cfg.Validate(), "server.log_level")
}

func TestDatabaseConnectionConfig(t *testing.T) {
	cfg := DatabaseConfig{
		Driver:   "PostgreSQL",
		Postgres: DBAuthConfig{Host: " db ", Port: 5432, Database: "directory", Username: "svc", Password: "pw"},
	}
	dbCfg := cfg.ConnectionConfig()
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db", dbCfg.Host)
	require.Equal(t, "directory", dbCfg.Name)
	require.Equal(t, "svc", dbCfg.User)

	cfg.Driver = ""
	require.Equal(t, "sqlite", cfg.ConnectionConfig().Driver)

	cfg.Driver = "mysql"
	cfg.MySQL = DBAuthConfig{Host: "mysql", Port: 3306}
	dbCfg = cfg.ConnectionConfig()
	require.Equal(t, "mysql", dbCfg.Host)
	require.Equal(t, 3306, dbCfg.Port)

	cfg.Driver = "oracle"
	require.Equal(t, "oracle", cfg.ConnectionConfig().Driver)
}
