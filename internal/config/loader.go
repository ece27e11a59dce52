package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"farewatch/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", 15*time.Second)
	viper.SetDefault("server.write_timeout_seconds", 15*time.Second)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("broker.type", "kafka")
	viper.SetDefault("broker.kafka.queue", constants.DefaultQueueName)
	viper.SetDefault("broker.kafka.group_id", constants.DefaultConsumerGroup)
	viper.SetDefault("broker.kafka.partitions", 1)
	viper.SetDefault("broker.kafka.replication_factor", 1)
	viper.SetDefault("broker.kafka.dial_timeout", constants.DefaultDialTimeout)
	viper.SetDefault("broker.kafka.reconnect.initial_interval", 5*time.Second)
	viper.SetDefault("broker.kafka.reconnect.max_interval", time.Minute)
	viper.SetDefault("broker.kafka.reconnect.multiplier", 2.0)

	viper.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)
	viper.SetDefault("database.mongodb.users_collection", constants.DefaultUsersCollection)

	viper.SetDefault("collector.poll_interval", constants.DefaultPollInterval)
	viper.SetDefault("collector.request_timeout", constants.DefaultHTTPTimeout)

	viper.SetDefault("matcher.idle_delay", constants.DefaultIdleDelay)
	viper.SetDefault("matcher.notify_per", constants.NotifyPerPreference)

	viper.SetDefault("notifier.type", constants.NotifierTypeLog)
	viper.SetDefault("notifier.template", constants.DefaultAlertTemplate)
	viper.SetDefault("notifier.redis.channel", constants.DefaultPushChannel)
	viper.SetDefault("notifier.nats.subject", constants.DefaultPushChannel)
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.username", "BROKER_KAFKA_USERNAME")
	viper.BindEnv("broker.kafka.password", "BROKER_KAFKA_PASSWORD")
	viper.BindEnv("broker.kafka.namespace", "BROKER_KAFKA_NAMESPACE")
	viper.BindEnv("broker.kafka.queue", "BROKER_KAFKA_QUEUE")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("collector.sources", "COLLECTOR_SOURCES")
	viper.BindEnv("collector.poll_interval", "COLLECTOR_POLL_INTERVAL")

	viper.BindEnv("notifier.type", "NOTIFIER_TYPE")
	viper.BindEnv("notifier.nats.url", "NOTIFIER_NATS_URL")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
}

func applyEnvOverrides(cfg *Config) {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		if brokers := splitList(brokersEnv); len(brokers) > 0 {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if sourcesEnv := viper.GetString("COLLECTOR_SOURCES"); sourcesEnv != "" {
		if sources := splitList(sourcesEnv); len(sources) > 0 {
			cfg.Collector.Sources = sources
		}
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
