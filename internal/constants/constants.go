package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
	KafkaMaxWait      = 500 * time.Millisecond
)

const (
	DefaultQueueName     = "FlightPricesQueue"
	DefaultConsumerGroup = "farewatch-matcher"
	DefaultDialTimeout   = 5 * time.Second
)

const (
	DefaultHTTPTimeout  = 10 * time.Second
	DefaultPollInterval = time.Minute
	DefaultIdleDelay    = 100 * time.Millisecond
	DegradedRetryDelay  = time.Second
)

const (
	DefaultMongoDBName     = "FlightManagementSystem"
	DefaultUsersCollection = "users"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	NotifyPerPreference = "preference"
	NotifyPerUser       = "user"
)

const (
	NotifierTypeLog   = "log"
	NotifierTypeRedis = "redis"
	NotifierTypeNATS  = "nats"
)

const (
	DefaultPushChannel   = "farewatch.push"
	DefaultAlertTemplate = "Hi {{.User.Name}}, {{.Event.Airline}} has a flight from {{.Event.Origin}} to {{.Event.Destination}} for {{.Event.Price}} {{.Event.Currency}}."
)

const (
	ServiceName = "farewatch"
)
