package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	MessageIDKey   = "message_id"
	RequestIDKey   = "request_id"
	ServiceNameKey = "service_name"
	FlightIDKey    = "flight_id"
	SourceURLKey   = "source_url"
	UserIDKey      = "user_id"
)

type ctxKey string

// orderedKeys fixes the order fields are emitted in.
var orderedKeys = []string{TraceIDKey, MessageIDKey, RequestIDKey, ServiceNameKey, FlightIDKey, SourceURLKey, UserIDKey}

func with(ctx context.Context, key, value string) context.Context {
	return context.WithValue(ctx, ctxKey(key), value)
}

func get(ctx context.Context, key string) string {
	if v, ok := ctx.Value(ctxKey(key)).(string); ok {
		return v
	}
	return ""
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return with(ctx, TraceIDKey, traceID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return with(ctx, MessageIDKey, messageID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, RequestIDKey, requestID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return with(ctx, ServiceNameKey, serviceName)
}

func WithFlightID(ctx context.Context, flightID string) context.Context {
	return with(ctx, FlightIDKey, flightID)
}

func WithSourceURL(ctx context.Context, url string) context.Context {
	return with(ctx, SourceURLKey, url)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, UserIDKey, userID)
}

func GetTraceID(ctx context.Context) string {
	return get(ctx, TraceIDKey)
}

func GetMessageID(ctx context.Context) string {
	return get(ctx, MessageIDKey)
}

func GetRequestID(ctx context.Context) string {
	return get(ctx, RequestIDKey)
}

func GetServiceName(ctx context.Context) string {
	return get(ctx, ServiceNameKey)
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 2*len(orderedKeys))

	for _, key := range orderedKeys {
		if v := get(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}

	return fields
}
