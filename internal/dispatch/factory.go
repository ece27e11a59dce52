package dispatch

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"farewatch/internal/config"
	"farewatch/internal/constants"
	"farewatch/internal/logger"
)

// NewNotifier builds the configured transport. The redis notifier needs a
// client; pass nil when redis is not configured.
func NewNotifier(cfg config.NotifierConfig, rdb *redis.Client, log logger.Logger) (Notifier, error) {
	switch strings.ToLower(cfg.Type) {
	case "", constants.NotifierTypeLog:
		return NewLogNotifier(log), nil
	case constants.NotifierTypeRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis notifier requires database.redis to be configured")
		}
		return NewRedisNotifier(rdb, cfg.Redis.Channel), nil
	case constants.NotifierTypeNATS:
		return NewNATSNotifier(cfg.NATS.URL, cfg.NATS.Subject)
	default:
		return nil, fmt.Errorf("unsupported notifier type: %s", cfg.Type)
	}
}
