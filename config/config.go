// Package config loads the carhire server configuration from a YAML file and the environment.
// Environment variables (prefix CARHIRE_) win over file values, defaults fill in the rest.
package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v2"

	"github.com/AntonStoeckl/dynamic-collections-go/logging"
)

const EnvPrefix = "CARHIRE_"

// Store engines.
const (
	EnginePostgres = "postgres"
	EngineMongo    = "mongo"
	EngineMemory   = "memory"
)

// Postgres adapters.
const (
	AdapterPGX  = "pgx"
	AdapterSQL  = "sql"
	AdapterSQLX = "sqlx"
)

// Settings backends.
const (
	SettingsDir = "dir"
	SettingsS3  = "s3"
)

// Trace exporters.
const (
	TraceExporterNone   = "none"
	TraceExporterStdout = "stdout"
	TraceExporterOTLP   = "otlp"
)

type Config struct {
	Server   Server         `yaml:"server" env:", prefix=SERVER_"`
	Store    Store          `yaml:"store" env:", prefix=STORE_"`
	Settings Settings       `yaml:"settings" env:", prefix=SETTINGS_"`
	Tracing  Tracing        `yaml:"tracing" env:", prefix=TRACING_"`
	Log      logging.Config `yaml:"log" env:", prefix=LOG_"`
	TimeZone string         `yaml:"time_zone" env:"TIME_ZONE"`
}

type Server struct {
	Host           string        `yaml:"host" env:"HOST"`
	Port           int           `yaml:"port" env:"PORT"`
	CORSAllowAll   bool          `yaml:"cors_allow_all" env:"CORS_ALLOW_ALL"`
	AccessLog      bool          `yaml:"access_log" env:"ACCESS_LOG"`
	RedactErrors   bool          `yaml:"redact_errors" env:"REDACT_ERRORS"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	BcryptCost     int           `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

// Addr is host:port for http.Server.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type Store struct {
	Engine   string   `yaml:"engine" env:"ENGINE"`
	Postgres Postgres `yaml:"postgres" env:", prefix=POSTGRES_"`
	Mongo    Mongo    `yaml:"mongo" env:", prefix=MONGO_"`
}

type Postgres struct {
	DSN             string        `yaml:"dsn" env:"DSN"`
	Adapter         string        `yaml:"adapter" env:"ADAPTER"`
	Table           string        `yaml:"table" env:"TABLE"`
	MaxConns        int           `yaml:"max_conns" env:"MAX_CONNS"`
	MinConns        int           `yaml:"min_conns" env:"MIN_CONNS"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"MAX_CONN_LIFETIME"`
	MigrateOnStart  bool          `yaml:"migrate_on_start" env:"MIGRATE_ON_START"`
}

type Mongo struct {
	URI      string `yaml:"uri" env:"URI"`
	Database string `yaml:"database" env:"DATABASE"`
}

type Settings struct {
	Backend string `yaml:"backend" env:"BACKEND"`
	Dir     string `yaml:"dir" env:"DIR"`
	S3      S3     `yaml:"s3" env:", prefix=S3_"`
}

type S3 struct {
	Bucket          string `yaml:"bucket" env:"BUCKET"`
	Prefix          string `yaml:"prefix" env:"PREFIX"`
	Region          string `yaml:"region" env:"REGION"`
	Endpoint        string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SECRET_ACCESS_KEY"`
}

// Tracing selects where spans go. With "none" spans only feed trace ids into the logs. An empty
// OTLP endpoint falls back to the OTEL_EXPORTER_OTLP_* environment.
type Tracing struct {
	Exporter string `yaml:"exporter" env:"EXPORTER"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	Insecure bool   `yaml:"insecure" env:"INSECURE"`
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}

	if c.Store.Engine == "" {
		c.Store.Engine = EngineMemory
	}
	if c.Store.Postgres.Adapter == "" {
		c.Store.Postgres.Adapter = AdapterPGX
	}
	if c.Store.Postgres.Table == "" {
		c.Store.Postgres.Table = "records"
	}
	if c.Store.Postgres.MaxConns == 0 {
		c.Store.Postgres.MaxConns = 20
	}
	if c.Store.Postgres.MinConns == 0 {
		c.Store.Postgres.MinConns = 2
	}
	if c.Store.Postgres.MaxConnLifetime == 0 {
		c.Store.Postgres.MaxConnLifetime = 30 * time.Minute
	}
	if c.Store.Mongo.Database == "" {
		c.Store.Mongo.Database = "carhire"
	}

	if c.Settings.Backend == "" {
		c.Settings.Backend = SettingsDir
	}
	if c.Settings.Dir == "" {
		c.Settings.Dir = "settings"
	}

	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = TraceExporterNone
	}

	if c.TimeZone == "" {
		c.TimeZone = "UTC"
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	if c.Server.RequestTimeout < 0 {
		errs = append(errs, errors.New("server request timeout must not be negative"))
	}

	switch c.Store.Engine {
	case EngineMemory:
	case EnginePostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres dsn is required for the postgres engine"))
		}
		switch c.Store.Postgres.Adapter {
		case AdapterPGX, AdapterSQL, AdapterSQLX:
		default:
			errs = append(errs, fmt.Errorf("unknown postgres adapter %q", c.Store.Postgres.Adapter))
		}
		if c.Store.Postgres.MaxConns < 1 {
			errs = append(errs, errors.New("postgres max_conns must be positive"))
		}
		if c.Store.Postgres.MinConns > c.Store.Postgres.MaxConns {
			errs = append(errs, errors.New("postgres min_conns exceeds max_conns"))
		}
	case EngineMongo:
		if c.Store.Mongo.URI == "" {
			errs = append(errs, errors.New("mongo uri is required for the mongo engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store engine %q", c.Store.Engine))
	}

	switch c.Settings.Backend {
	case SettingsDir:
	case SettingsS3:
		if c.Settings.S3.Bucket == "" {
			errs = append(errs, errors.New("s3 bucket is required for the s3 settings backend"))
		}
		if (c.Settings.S3.AccessKeyID == "") != (c.Settings.S3.SecretAccessKey == "") {
			errs = append(errs, errors.New("s3 access key id and secret access key must be given together"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown settings backend %q", c.Settings.Backend))
	}

	switch c.Tracing.Exporter {
	case TraceExporterNone, TraceExporterStdout, TraceExporterOTLP:
	default:
		errs = append(errs, fmt.Errorf("unknown trace exporter %q", c.Tracing.Exporter))
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("time zone %q: %w", c.TimeZone, err))
	}

	return errors.Join(errs...)
}

// Location resolves TimeZone; Validate has checked it.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// Load reads filenameOrData (a path, inline YAML starting with "{", or "" for none), applies the
// environment from lookuper (the process environment when nil), defaults and validation.
func Load(ctx context.Context, filenameOrData string, lookuper envconfig.Lookuper) (*Config, error) {
	var config Config

	var data []byte

	switch {
	case filenameOrData == "":
	case strings.HasPrefix(strings.TrimSpace(filenameOrData), "{"):
		data = []byte(filenameOrData)
	default:
		content, err := os.ReadFile(filenameOrData)
		if err != nil {
			return nil, err
		}
		data = content
	}

	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           &config,
		Lookuper:         envconfig.PrefixLookuper(EnvPrefix, lookuper),
		DefaultOverwrite: true,
	}); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	config.setDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	return &config, nil
}
