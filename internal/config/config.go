package config

import (
	"fmt"
	"time"

	"github.com/MrEthical07/staffauth"
	"github.com/MrEthical07/staffauth/internal/obs"
	"github.com/MrEthical07/staffauth/middleware"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	// TrustedProxies lists CIDRs or IPs allowed to set X-Forwarded-For.
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (l *Log) AsLoggerConfig(app App) obs.LogConfig {
	return obs.LogConfig{
		Level:  l.Level,
		Pretty: l.Pretty,
		App:    app.Name,
		Env:    app.Env,
		Ver:    app.Version,
	}
}

type Auth struct {
	Secret       string        `mapstructure:"secret"`
	Issuer       string        `mapstructure:"issuer"`
	Leeway       time.Duration `mapstructure:"leeway"`
	AccessTTL    time.Duration `mapstructure:"access_ttl"`
	RefreshTTL   time.Duration `mapstructure:"refresh_ttl"`
	RequireStaff bool          `mapstructure:"require_staff"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Postgres struct {
	DSN     string `mapstructure:"dsn"`
	Migrate bool   `mapstructure:"migrate"`
}

type Store struct {
	Driver    string        `mapstructure:"driver"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	OpTimeout time.Duration `mapstructure:"op_timeout"`
	Redis     Redis         `mapstructure:"redis"`
	Postgres  Postgres      `mapstructure:"postgres"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Audit struct {
	Sink       string `mapstructure:"sink"`
	BufferSize int    `mapstructure:"buffer_size"`
	DropIfFull bool   `mapstructure:"drop_if_full"`
	Kafka      Kafka  `mapstructure:"kafka"`
}

type Metrics struct {
	Enabled bool `mapstructure:"enabled"`
	Latency bool `mapstructure:"latency"`
}

// Member seeds the in-memory directory of the reference server.
type Member struct {
	ID       string `mapstructure:"id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Staff    bool   `mapstructure:"staff"`
}

type Directory struct {
	Members []Member `mapstructure:"members"`
}

type Config struct {
	App       App       `mapstructure:"app"`
	Server    Server    `mapstructure:"server"`
	Log       Log       `mapstructure:"log"`
	Auth      Auth      `mapstructure:"auth"`
	Store     Store     `mapstructure:"store"`
	Audit     Audit     `mapstructure:"audit"`
	Metrics   Metrics   `mapstructure:"metrics"`
	Directory Directory `mapstructure:"directory"`
}

const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"

	SinkLog   = "log"
	SinkKafka = "kafka"
	SinkNone  = "none"
)

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

func (c *Config) validate() error {
	if c.Auth.Secret == "" {
		return ErrConfig("auth.secret is required")
	}
	if _, err := middleware.TrustedProxies(c.Server.TrustedProxies); err != nil {
		return ErrConfig("server.trusted_proxies: " + err.Error())
	}
	switch c.Store.Driver {
	case DriverRedis:
		if c.Store.Redis.Addr == "" {
			return ErrConfig("store.redis.addr is required for the redis driver")
		}
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			return ErrConfig("store.postgres.dsn is required for the postgres driver")
		}
	default:
		return ErrConfig(fmt.Sprintf("store.driver %q: want redis or postgres", c.Store.Driver))
	}
	switch c.Audit.Sink {
	case SinkLog, SinkNone:
	case SinkKafka:
		if len(c.Audit.Kafka.Brokers) == 0 || c.Audit.Kafka.Topic == "" {
			return ErrConfig("audit.kafka.brokers and audit.kafka.topic are required for the kafka sink")
		}
	default:
		return ErrConfig(fmt.Sprintf("audit.sink %q: want log, kafka or none", c.Audit.Sink))
	}
	return nil
}

// Engine converts the process config into a validated engine config.
func (c *Config) Engine() (staffauth.Config, error) {
	out := staffauth.DefaultConfig()
	out.Signing.Secret = []byte(c.Auth.Secret)
	out.Signing.Issuer = c.Auth.Issuer
	out.Signing.Leeway = c.Auth.Leeway
	out.TTL.Access = c.Auth.AccessTTL
	out.TTL.Refresh = c.Auth.RefreshTTL
	out.Store.KeyPrefix = c.Store.KeyPrefix
	out.Store.OpTimeout = c.Store.OpTimeout
	out.Issuance.RequireStaff = c.Auth.RequireStaff
	out.Audit.Enabled = c.Audit.Sink != SinkNone
	out.Audit.BufferSize = c.Audit.BufferSize
	out.Audit.DropIfFull = c.Audit.DropIfFull
	out.Metrics.Enabled = c.Metrics.Enabled
	out.Metrics.EnableLatencyHistograms = c.Metrics.Enabled && c.Metrics.Latency

	if err := out.Validate(); err != nil {
		return staffauth.Config{}, err
	}
	return out, nil
}
