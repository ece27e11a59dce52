package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Collector      CollectorConfig
	Matcher        MatcherConfig
	Notifier       NotifierConfig
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Redis   RedisConfig
	MongoDB MongoDBConfig
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI             string `mapstructure:"uri"`
	Database        string `mapstructure:"database"`
	UsersCollection string `mapstructure:"users_collection"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	Username          string   `mapstructure:"username"`
	Password          string   `mapstructure:"password"`
	Namespace         string   `mapstructure:"namespace"` // topic prefix, isolates deployments sharing a cluster
	Queue             string   `mapstructure:"queue"`
	GroupID           string   `mapstructure:"group_id"`
	Partitions        int      `mapstructure:"partitions"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
	// DialTimeout bounds connection establishment and admin requests.
	DialTimeout     time.Duration   `mapstructure:"dial_timeout"`
	Reconnect       ReconnectConfig `mapstructure:"reconnect"`
	LocalBufferSize int             `mapstructure:"local_buffer_size"`
}

type ReconnectConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CollectorConfig struct {
	Sources        []string             `mapstructure:"sources"`
	PollInterval   time.Duration        `mapstructure:"poll_interval"`
	RequestTimeout time.Duration        `mapstructure:"request_timeout"`
	EventFilter    string               `mapstructure:"event_filter"` // CEL, evaluated per parsed event
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type MatcherConfig struct {
	IdleDelay           time.Duration `mapstructure:"idle_delay"`
	NotifyPer           string        `mapstructure:"notify_per"` // "preference" (default) or "user"
	RequireSameCurrency bool          `mapstructure:"require_same_currency"`
}

type NotifierConfig struct {
	Type          string              `mapstructure:"type"` // "log", "redis", "nats"
	Template      string              `mapstructure:"template"`
	RatePerSecond float64             `mapstructure:"rate_per_second"`
	Burst         int                 `mapstructure:"burst"`
	Redis         RedisNotifierConfig `mapstructure:"redis"`
	NATS          NATSNotifierConfig  `mapstructure:"nats"`
}

type RedisNotifierConfig struct {
	Channel string `mapstructure:"channel"`
}

type NATSNotifierConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
