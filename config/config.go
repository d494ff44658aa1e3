// config/config.go
package config

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
	Prometheus    PrometheusConfiguration
	Auth          AuthConfiguration
	RateLimit     RateLimitConfiguration
	Scaling       ScalingConfiguration
	Log           LogConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port            string
	ShutdownTimeout time.Duration
	UpstreamURL     string
}

// RedisConfiguration stores data for the Redis connection backing the secret store
type RedisConfiguration struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	KeyPrefix    string
}

// ElasticsearchConfiguration stores data for the audit trail
type ElasticsearchConfiguration struct {
	Enabled bool
	URL     string
	Index   string
}

// PrometheusConfiguration points at the metrics backend queried for samples
type PrometheusConfiguration struct {
	URL string
}

// AuthConfiguration drives the authorizer and its verdict cache
type AuthConfiguration struct {
	SecretID           string
	AllowTTL           time.Duration
	DenyTTL            time.Duration
	FetchTimeout       time.Duration
	CacheSize          int
	CacheSweepInterval time.Duration
	DeniedAuditLimit   int
}

// RateLimitConfiguration bounds requests per client at the edge
type RateLimitConfiguration struct {
	Requests int
	Window   time.Duration
}

// PoolConfiguration declares one backend pool
type PoolConfiguration struct {
	ID      string
	Min     int
	Max     int
	Initial int
}

// ScalingConfiguration drives the capacity controller
type ScalingConfiguration struct {
	Source            string
	Query             string
	SampleInterval    time.Duration
	SampleTimeout     time.Duration
	SampleWindow      time.Duration
	ScaleOutThreshold float64
	ScaleInThreshold  float64
	ScaleOutCooldown  time.Duration
	ScaleInCooldown   time.Duration
	Step              int
	EscalateAfter     int
	Pools             []PoolConfiguration
}

type LogConfiguration struct {
	Dir string
}

var config *Configuration

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdownTimeout", "5s")
	v.SetDefault("server.upstreamURL", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.dialTimeout", "2s")
	v.SetDefault("redis.readTimeout", "1s")
	v.SetDefault("redis.writeTimeout", "1s")
	v.SetDefault("redis.poolSize", 20)
	v.SetDefault("redis.keyPrefix", "secret:")

	v.SetDefault("elasticsearch.enabled", false)
	v.SetDefault("elasticsearch.url", "http://localhost:9200")
	v.SetDefault("elasticsearch.index", "gateway-audit")

	v.SetDefault("prometheus.url", "http://localhost:9090")

	v.SetDefault("auth.secretId", "mlflow-token")
	v.SetDefault("auth.allowTTL", "5m")
	v.SetDefault("auth.denyTTL", "10s")
	v.SetDefault("auth.fetchTimeout", "2s")
	v.SetDefault("auth.cacheSize", 10000)
	v.SetDefault("auth.cacheSweepInterval", "1m")
	v.SetDefault("auth.deniedAuditLimit", 64)

	v.SetDefault("ratelimit.requests", 600)
	v.SetDefault("ratelimit.window", "1m")

	v.SetDefault("scaling.source", "prometheus")
	v.SetDefault("scaling.query", `avg(rate(container_cpu_usage_seconds_total{pool="%s"}[1m])) * 100`)
	v.SetDefault("scaling.sampleInterval", "60s")
	v.SetDefault("scaling.sampleTimeout", "5s")
	v.SetDefault("scaling.sampleWindow", "60s")
	v.SetDefault("scaling.scaleOutThreshold", 70.0)
	v.SetDefault("scaling.scaleInThreshold", 30.0)
	v.SetDefault("scaling.scaleOutCooldown", "60s")
	v.SetDefault("scaling.scaleInCooldown", "60s")
	v.SetDefault("scaling.step", 1)
	v.SetDefault("scaling.escalateAfter", 5)
	v.SetDefault("scaling.pools", []map[string]interface{}{
		{"id": "mlflow", "min": 2, "max": 6, "initial": 2},
	})

	v.SetDefault("log.dir", "")
}

// Load reads configuration from the given viper instance. It is split out of
// InitConfig so tests can drive it without touching the global instance.
func Load(v *viper.Viper) (*Configuration, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return nil, err
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	for i := range cfg.Scaling.Pools {
		if cfg.Scaling.Pools[i].Initial == 0 {
			cfg.Scaling.Pools[i].Initial = cfg.Scaling.Pools[i].Min
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InitConfig loads config/config.yaml into the global viper instance.
// Variables from a local .env file are exported first so they take part in
// the environment override.
func InitConfig() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	cfg, err := Load(viper.GetViper())
	if err != nil {
		return err
	}
	config = cfg
	return nil
}

// poolIDPattern keeps pool ids safe to substitute into a quoted PromQL
// label matcher and a URL path segment.
var poolIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Validate reports configuration violations. These are the only fatal
// conditions of the process.
func (c *Configuration) Validate() error {
	a := c.Auth
	if a.AllowTTL <= 0 || a.DenyTTL <= 0 {
		return fmt.Errorf("%w: auth TTLs must be positive", gate_errors.ErrInvalidConfig)
	}
	if a.DenyTTL >= a.AllowTTL {
		return fmt.Errorf("%w: auth.denyTTL (%s) must be shorter than auth.allowTTL (%s)",
			gate_errors.ErrInvalidConfig, a.DenyTTL, a.AllowTTL)
	}
	if a.FetchTimeout <= 0 {
		return fmt.Errorf("%w: auth.fetchTimeout must be positive", gate_errors.ErrInvalidConfig)
	}
	if a.SecretID == "" {
		return fmt.Errorf("%w: auth.secretId is required", gate_errors.ErrInvalidConfig)
	}

	s := c.Scaling
	if s.Step <= 0 {
		return fmt.Errorf("%w: scaling.step must be positive", gate_errors.ErrInvalidConfig)
	}
	if s.ScaleInThreshold >= s.ScaleOutThreshold {
		return fmt.Errorf("%w: scaling.scaleInThreshold (%.1f) must be below scaling.scaleOutThreshold (%.1f)",
			gate_errors.ErrInvalidConfig, s.ScaleInThreshold, s.ScaleOutThreshold)
	}
	if s.SampleInterval <= 0 || s.SampleTimeout <= 0 {
		return fmt.Errorf("%w: scaling sample interval and timeout must be positive", gate_errors.ErrInvalidConfig)
	}
	if s.ScaleOutCooldown < 0 || s.ScaleInCooldown < 0 {
		return fmt.Errorf("%w: scaling cooldowns must not be negative", gate_errors.ErrInvalidConfig)
	}
	switch s.Source {
	case "prometheus", "host", "push":
	default:
		return fmt.Errorf("%w: scaling.source %q must be prometheus, host or push", gate_errors.ErrInvalidConfig, s.Source)
	}
	if s.EscalateAfter <= 0 {
		return fmt.Errorf("%w: scaling.escalateAfter must be positive", gate_errors.ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(s.Pools))
	for _, p := range s.Pools {
		if p.ID == "" {
			return fmt.Errorf("%w: pool id is required", gate_errors.ErrInvalidConfig)
		}
		if !poolIDPattern.MatchString(p.ID) {
			return fmt.Errorf("%w: pool id %q must match %s", gate_errors.ErrInvalidConfig, p.ID, poolIDPattern)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: pool %q declared twice", gate_errors.ErrInvalidConfig, p.ID)
		}
		seen[p.ID] = true
		if p.Min < 0 || p.Min > p.Max {
			return fmt.Errorf("%w: pool %q has invalid bounds [%d, %d]", gate_errors.ErrInvalidConfig, p.ID, p.Min, p.Max)
		}
		if p.Initial < p.Min || p.Initial > p.Max {
			return fmt.Errorf("%w: pool %q initial size %d outside [%d, %d]",
				gate_errors.ErrInvalidConfig, p.ID, p.Initial, p.Min, p.Max)
		}
	}
	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}
