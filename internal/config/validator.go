package config

import (
	"fmt"
	"net/url"
	"strings"

	"farewatch/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateCollector(cfg.Collector); err != nil {
		errors = append(errors, err)
	}

	if err := validateMatcher(cfg.Matcher); err != nil {
		errors = append(errors, err)
	}

	if err := validateNotifier(cfg.Notifier, cfg.Database.Redis); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	}

	switch cfg.Type {
	case "kafka":
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.Queue == "" {
		return &ValidationError{
			Field:   "broker.kafka.queue",
			Message: "queue name is required",
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if (cfg.Username == "") != (cfg.Password == "") {
		return &ValidationError{
			Field:   "broker.kafka.username",
			Message: "username and password must be set together",
		}
	}

	if cfg.Partitions < 1 {
		return &ValidationError{
			Field:   "broker.kafka.partitions",
			Message: "partitions must be at least 1",
		}
	}

	if cfg.ReplicationFactor < 1 {
		return &ValidationError{
			Field:   "broker.kafka.replication_factor",
			Message: "replication_factor must be at least 1",
		}
	}

	if cfg.Reconnect.InitialInterval < 0 || cfg.Reconnect.MaxInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.reconnect",
			Message: "reconnect intervals must be non-negative",
		}
	}

	if cfg.Reconnect.MaxInterval > 0 && cfg.Reconnect.InitialInterval > cfg.Reconnect.MaxInterval {
		return &ValidationError{
			Field:   "broker.kafka.reconnect.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.LocalBufferSize < 0 {
		return &ValidationError{
			Field:   "broker.kafka.local_buffer_size",
			Message: "local_buffer_size must be non-negative",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

// validateCollector allows an empty source list; the collector logs a warning
// each cycle instead.
func validateCollector(cfg CollectorConfig) error {
	for i, source := range cfg.Sources {
		u, err := url.Parse(source)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return &ValidationError{
				Field:   fmt.Sprintf("collector.sources[%d]", i),
				Message: fmt.Sprintf("source must be an absolute http(s) URL, got %q", source),
			}
		}
	}

	if cfg.PollInterval <= 0 {
		return &ValidationError{
			Field:   "collector.poll_interval",
			Message: "poll interval must be positive",
		}
	}

	if cfg.RequestTimeout < 0 {
		return &ValidationError{
			Field:   "collector.request_timeout",
			Message: "request timeout must be non-negative",
		}
	}

	return nil
}

func validateMatcher(cfg MatcherConfig) error {
	if cfg.IdleDelay < 0 {
		return &ValidationError{
			Field:   "matcher.idle_delay",
			Message: "idle delay must be non-negative",
		}
	}

	switch strings.ToLower(cfg.NotifyPer) {
	case "", constants.NotifyPerPreference, constants.NotifyPerUser:
	default:
		return &ValidationError{
			Field:   "matcher.notify_per",
			Message: fmt.Sprintf("invalid notify_per value: %s (valid: preference, user)", cfg.NotifyPer),
		}
	}

	return nil
}

func validateNotifier(cfg NotifierConfig, redis RedisConfig) error {
	switch cfg.Type {
	case "", constants.NotifierTypeLog:
	case constants.NotifierTypeRedis:
		if redis.Host == "" {
			return &ValidationError{
				Field:   "notifier.type",
				Message: "redis notifier requires database.redis to be configured",
			}
		}
		if cfg.Redis.Channel == "" {
			return &ValidationError{
				Field:   "notifier.redis.channel",
				Message: "redis channel is required",
			}
		}
	case constants.NotifierTypeNATS:
		if cfg.NATS.URL == "" {
			return &ValidationError{
				Field:   "notifier.nats.url",
				Message: "NATS URL is required",
			}
		}
		if cfg.NATS.Subject == "" {
			return &ValidationError{
				Field:   "notifier.nats.subject",
				Message: "NATS subject is required",
			}
		}
	default:
		return &ValidationError{
			Field:   "notifier.type",
			Message: fmt.Sprintf("unknown notifier type: %s (supported: log, redis, nats)", cfg.Type),
		}
	}

	if cfg.RatePerSecond < 0 {
		return &ValidationError{
			Field:   "notifier.rate_per_second",
			Message: "rate must be non-negative",
		}
	}

	return nil
}
