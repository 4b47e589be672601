package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Etcd      EtcdConfig      `mapstructure:"etcd"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Environment string `mapstructure:"environment"`
	Port        string `mapstructure:"port"`
}

// StorageConfig selects the device-local database. SQLite is the default for
// tablets and single-board gateways; district offices with a site database
// server can point the same schema at MySQL.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "mysql"
	Path   string `mapstructure:"path"`   // sqlite file path
	DSN    string `mapstructure:"dsn"`    // mysql dsn
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type SyncConfig struct {
	RetryCeiling    int           `mapstructure:"retry_ceiling"`
	EagerDrain      bool          `mapstructure:"eager_drain"`
	ProbeInterval   time.Duration `mapstructure:"probe_interval"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RefreshKinds    []string      `mapstructure:"refresh_kinds"`
	DrainLock       bool          `mapstructure:"drain_lock"`
}

type StreamConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HubBufferSize     int           `mapstructure:"hub_buffer_size"`
	ReplayBufferSize  int           `mapstructure:"replay_buffer_size"`
}

type AuthConfig struct {
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second"`
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("OPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.environment", "dev")
	viper.SetDefault("server.port", ":8080")
	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.path", "opsoms.db")
	viper.SetDefault("sync.retry_ceiling", 3)
	viper.SetDefault("sync.eager_drain", true)
	viper.SetDefault("sync.probe_interval", 15*time.Second)
	viper.SetDefault("sync.probe_timeout", 3*time.Second)
	viper.SetDefault("sync.refresh_interval", 5*time.Minute)
	viper.SetDefault("stream.heartbeat_interval", 30*time.Second)
	viper.SetDefault("stream.hub_buffer_size", 512)
	viper.SetDefault("stream.replay_buffer_size", 1000)
	viper.SetDefault("ratelimit.requests_per_second", 50)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}
