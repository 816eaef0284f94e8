package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-governance/leave"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 7, cfg.Attendance.WindowDays)
	assert.Equal(t, leave.DefaultOpeningBalance, cfg.Leave.OpeningBalance)

	p, err := cfg.AttendancePolicy()
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour, p.DayStart)
	assert.Equal(t, time.Hour, p.SanctionThreshold)
	assert.Equal(t, time.UTC, p.Location)

	lp, err := cfg.LeavePolicy()
	require.NoError(t, err)
	assert.Equal(t, leave.DefaultAuthorizedTypes, lp.AuthorizedTypes)
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GIVEN: a YAML file and an env var overriding one of its keys
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 9090
database:
  driver: postgres
  dsn: postgres://localhost/leavegov
attendance:
  timezone: Africa/Nairobi
  day_start: "07:30"
  grace: 5m
leave:
  authorized_types: [ordinary, maternity]
`), 0o644))
	t.Setenv("LEAVEGOV_HTTP_PORT", "7070")
	t.Setenv("LEAVEGOV_AUTH_SECRET", "s3cret")

	// WHEN
	cfg, err := Load(path)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.HTTP.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	require.NoError(t, cfg.Validate())

	p, err := cfg.AttendancePolicy()
	require.NoError(t, err)
	assert.Equal(t, 7*time.Hour+30*time.Minute, p.DayStart)
	assert.Equal(t, 5*time.Minute, p.Grace)
	assert.Equal(t, "Africa/Nairobi", p.Location.String())

	lp, err := cfg.LeavePolicy()
	require.NoError(t, err)
	assert.Equal(t, []leave.LeaveType{leave.TypeOrdinary, leave.TypeMaternity}, lp.AuthorizedTypes)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Auth.Secret = "s3cret"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no secret", func(c *Config) { c.Auth.Secret = "" }},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = DriverPostgres; c.Database.DSN = "" }},
		{"bad clock", func(c *Config) { c.Attendance.DayStart = "8am" }},
		{"bad timezone", func(c *Config) { c.Attendance.Timezone = "Mars/Olympus" }},
		{"zero window", func(c *Config) { c.Attendance.WindowDays = 0 }},
		{"unknown leave type", func(c *Config) { c.Leave.AuthorizedTypes = []string{"sabbatical"} }},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("memory needs no dsn", func(t *testing.T) {
		cfg := valid()
		cfg.Database.Driver = DriverMemory
		cfg.Database.DSN = ""
		assert.NoError(t, cfg.Validate())
	})
}
