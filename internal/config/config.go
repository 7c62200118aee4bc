// Package config loads process configuration via viper, the way every
// service in the teacher monorepo does: one sub-struct per concern, file
// plus environment overrides, defaults dense enough to boot with nothing
// present.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Mode         string        `mapstructure:"mode"`
}

type ElasticsearchConfig struct {
	Addresses []string      `mapstructure:"addresses"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// GetDSN builds the GORM postgres DSN, matching product-service's convention.
func (c *PostgresConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// GetAddress builds the redis client address, matching identity-service's convention.
func (c *RedisConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers             []string      `mapstructure:"brokers"`
	ConfigUpdatedTopic  string        `mapstructure:"config_updated_topic"`
	ProductIndexedTopic string        `mapstructure:"product_indexed_topic"`
	ConsumerGroup       string        `mapstructure:"consumer_group"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout"`
}

type CacheConfig struct {
	Disabled            bool          `mapstructure:"disabled"`
	FilterListTTL       time.Duration `mapstructure:"filter_list_ttl"`
	SearchTTL           time.Duration `mapstructure:"search_ttl"`
	FacetTTL            time.Duration `mapstructure:"facet_ttl"`
	MaxSize             int           `mapstructure:"max_size"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	ConfigLookupTTL     time.Duration `mapstructure:"config_lookup_ttl"`
	ConfigStoreCacheTTL time.Duration `mapstructure:"config_store_cache_ttl"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Config is the root configuration object for the service.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Cache         CacheConfig         `mapstructure:"cache"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// LoadConfig loads configuration from the environment, configPath (if
// present), and defaults, in that precedence order (environment variables
// override file values) — matching the teacher's LoadConfig functions.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("config: no config file at %s, using defaults+env: %v", configPath, err)
		} else {
			log.Printf("config: loaded from %s", configPath)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.mode", "release")

	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.timeout", 10*time.Second)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.dbname", "storefront_query_engine")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 25)
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("postgres.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.config_updated_topic", "filter_config.updated")
	v.SetDefault("kafka.product_indexed_topic", "product.indexed")
	v.SetDefault("kafka.consumer_group", "storefront-query-engine")
	v.SetDefault("kafka.write_timeout", 10*time.Second)

	v.SetDefault("cache.disabled", false)
	v.SetDefault("cache.filter_list_ttl", 10*time.Minute)
	v.SetDefault("cache.search_ttl", 5*time.Minute)
	v.SetDefault("cache.facet_ttl", 10*time.Minute)
	v.SetDefault("cache.max_size", 5000)
	v.SetDefault("cache.sweep_interval", 60*time.Second)
	v.SetDefault("cache.config_lookup_ttl", 60*time.Second)
	v.SetDefault("cache.config_store_cache_ttl", 30*time.Second)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 500)
	v.SetDefault("rate_limit.burst", 50)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "json")
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}
