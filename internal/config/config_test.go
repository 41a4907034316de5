package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "ehr-files", cfg.Storage.Bucket)
	assert.Equal(t, 120*time.Second, cfg.Storage.PatientURLExpiry)
	assert.Equal(t, time.Hour, cfg.Storage.DoctorURLExpiry)
	assert.Equal(t, 5, cfg.Booking.PageSize)
	assert.Equal(t, "careportal_session", cfg.Auth.CookieName)
	assert.True(t, cfg.Auth.RequireVerifiedEmail)
}

func TestLoadConfigFileAndEnvOverride(t *testing.T) {
	dir := writeConfig(t, `
site_url: https://portal.example.com/
jwt:
  secret: from-file
  access_ttl: 30m
booking:
  timezone: Asia/Kolkata
database:
  host: db.internal
  port: 6543
`)
	t.Setenv("CAREPORTAL_JWT_SECRET", "from-env")
	t.Setenv("CAREPORTAL_STORAGE_SECRET_KEY", "s3cr3t")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example.com", cfg.SiteURL)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, "s3cr3t", cfg.Storage.SecretKey)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)

	loc, err := cfg.Booking.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())

	assert.NoError(t, cfg.Validate())
}

func TestValidateReportsMissingFields(t *testing.T) {
	cfg := &Config{Booking: BookingConfig{Timezone: "Not/AZone"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret is required")
	assert.Contains(t, err.Error(), "site_url is required")
	assert.Contains(t, err.Error(), "database.host is required")
	assert.Contains(t, err.Error(), "invalid booking timezone")
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host='h' port=1 user='u' password='p' dbname='n' sslmode='disable'", c.DSN())

	c.Password = `s3cret pass'word\x`
	assert.Equal(t, `host='h' port=1 user='u' password='s3cret pass\'word\\x' dbname='n' sslmode='disable'`, c.DSN())
}
