/*
config.go - Process configuration

PURPOSE:
  Loads the server configuration from, in increasing precedence:
    1. built-in defaults
    2. an optional YAML file (config.yaml)
    3. an optional .env file
    4. environment variables prefixed LEAVEGOV_

  Nested keys map to env vars by upper-casing and replacing dots with
  underscores: database.dsn -> LEAVEGOV_DATABASE_DSN.

SECTIONS:
  http, database, log, auth, attendance, leave, redis, scheduler, documents

SEE ALSO:
  - cmd/server: Consumes Config
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // attendance.timezone must resolve on minimal images

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/warp/leave-governance/attendance"
	"github.com/warp/leave-governance/leave"
	"github.com/warp/leave-governance/notify"
	"github.com/warp/leave-governance/store/postgres"
)

const EnvPrefix = "LEAVEGOV"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Attendance AttendanceConfig `mapstructure:"attendance"`
	Leave      LeaveConfig      `mapstructure:"leave"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Documents  DocumentsConfig  `mapstructure:"documents"`
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type AuthConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type AttendanceConfig struct {
	Timezone          string        `mapstructure:"timezone"`
	DayStart          string        `mapstructure:"day_start"` // HH:MM
	Grace             time.Duration `mapstructure:"grace"`
	StandardDay       time.Duration `mapstructure:"standard_day"`
	WindowDays        int           `mapstructure:"window_days"`
	AbsencePenalty    time.Duration `mapstructure:"absence_penalty"`
	SanctionThreshold time.Duration `mapstructure:"sanction_threshold"`
	SkipWeekends      bool          `mapstructure:"skip_weekends"`
}

type LeaveConfig struct {
	OpeningBalance  int      `mapstructure:"opening_balance"`
	AuthorizedTypes []string `mapstructure:"authorized_types"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	PDFDir   string        `mapstructure:"pdf_dir"`
}

type DocumentsConfig struct {
	Dir     string `mapstructure:"dir"`
	MaxSize int64  `mapstructure:"max_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "30s")
	v.SetDefault("http.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "leavegov.db")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "leavegov")
	v.SetDefault("auth.ttl", "12h")

	v.SetDefault("attendance.timezone", "UTC")
	v.SetDefault("attendance.day_start", "08:00")
	v.SetDefault("attendance.grace", "0s")
	v.SetDefault("attendance.standard_day", "8h")
	v.SetDefault("attendance.window_days", 7)
	v.SetDefault("attendance.absence_penalty", "60m")
	v.SetDefault("attendance.sanction_threshold", "60m")
	v.SetDefault("attendance.skip_weekends", false)

	v.SetDefault("leave.opening_balance", leave.DefaultOpeningBalance)
	types := make([]string, len(leave.DefaultAuthorizedTypes))
	for i, t := range leave.DefaultAuthorizedTypes {
		types[i] = string(t)
	}
	v.SetDefault("leave.authorized_types", types)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "leavegov:notices")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "168h")
	v.SetDefault("scheduler.pdf_dir", "")

	v.SetDefault("documents.dir", "documents")
	v.SetDefault("documents.max_size", 10<<20)
}

// Load reads configuration. path is a YAML file; it may be empty or missing.
func Load(path string) (*Config, error) {
	// .env only seeds the process environment; real env vars win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for %s", c.Database.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want sqlite, postgres or memory", c.Database.Driver))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	}
	if c.Auth.TTL <= 0 {
		errs = append(errs, errors.New("auth.ttl must be positive"))
	}
	if _, err := c.AttendancePolicy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LeavePolicy(); err != nil {
		errs = append(errs, err)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("scheduler.interval must be positive"))
	}
	return errors.Join(errs...)
}

// AttendancePolicy converts the attendance section.
func (c *Config) AttendancePolicy() (attendance.Policy, error) {
	a := c.Attendance
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return attendance.Policy{}, fmt.Errorf("attendance.timezone: %w", err)
	}
	start, err := attendance.ParseClock(a.DayStart)
	if err != nil {
		return attendance.Policy{}, fmt.Errorf("attendance.day_start: %w", err)
	}
	if a.Grace < 0 || a.StandardDay <= 0 || a.WindowDays <= 0 || a.AbsencePenalty < 0 || a.SanctionThreshold <= 0 {
		return attendance.Policy{}, errors.New("attendance: durations and window must be positive")
	}
	return attendance.Policy{
		Location:          loc,
		DayStart:          start,
		Grace:             a.Grace,
		StandardDay:       a.StandardDay,
		WindowDays:        a.WindowDays,
		AbsencePenalty:    a.AbsencePenalty,
		SanctionThreshold: a.SanctionThreshold,
		SkipWeekends:      a.SkipWeekends,
	}, nil
}

// LeavePolicy converts the leave section.
func (c *Config) LeavePolicy() (leave.Policy, error) {
	p := leave.DefaultPolicy()
	if c.Leave.OpeningBalance < 0 {
		return p, errors.New("leave.opening_balance must not be negative")
	}
	p.OpeningBalance = c.Leave.OpeningBalance
	p.AuthorizedTypes = p.AuthorizedTypes[:0]
	for _, s := range c.Leave.AuthorizedTypes {
		t, err := leave.ParseLeaveType(s)
		if err != nil {
			return p, fmt.Errorf("leave.authorized_types: %w", err)
		}
		p.AuthorizedTypes = append(p.AuthorizedTypes, t)
	}
	return p, nil
}

func (c *Config) PostgresOptions() postgres.Options {
	return postgres.Options{
		DSN:             c.Database.DSN,
		MaxConns:        c.Database.MaxConns,
		MinConns:        c.Database.MinConns,
		MaxConnLifetime: c.Database.MaxConnLifetime,
		MaxConnIdleTime: c.Database.MaxConnIdleTime,
	}
}

func (c *Config) RedisOptions() notify.RedisOptions {
	return notify.RedisOptions{Addr: c.Redis.Addr, Password: c.Redis.Password, DB: c.Redis.DB}
}
