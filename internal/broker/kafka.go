package broker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"

	"farewatch/internal/config"
	"farewatch/internal/constants"
	"farewatch/internal/logger"
	"farewatch/pkg/logging"
	"farewatch/pkg/metrics"
	"farewatch/pkg/models"
	"farewatch/pkg/retry"
	"farewatch/pkg/tracing"
)

const messageIDHeader = "message-id"

var errQueueClosed = errors.New("queue client closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type adminClient interface {
	CreateTopics(ctx context.Context, req *kafka.CreateTopicsRequest) (*kafka.CreateTopicsResponse, error)
	Metadata(ctx context.Context, req *kafka.MetadataRequest) (*kafka.MetadataResponse, error)
	ListOffsets(ctx context.Context, req *kafka.ListOffsetsRequest) (*kafka.ListOffsetsResponse, error)
	OffsetFetch(ctx context.Context, req *kafka.OffsetFetchRequest) (*kafka.OffsetFetchResponse, error)
}

// session owns the writer and reader of one established connection.
type session struct {
	writer messageWriter
	reader messageReader
}

func (s *session) close() error {
	var errs []error
	if s.reader != nil {
		if err := s.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reader: %w", err))
		}
	}
	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer: %w", err))
		}
	}
	return errors.Join(errs...)
}

// KafkaQueue is a durable point-to-point queue backed by a single Kafka topic
// and one consumer group. While the broker is unreachable it stays degraded:
// calls fail fast with ErrConnection and a new connection is attempted by the
// first call made after the reconnect backoff has elapsed.
type KafkaQueue struct {
	cfg    config.KafkaConfig
	topic  string
	logger logger.Logger

	admin     adminClient
	newWriter func() messageWriter
	newReader func() messageReader
	now       func() time.Time

	mu         sync.Mutex
	sess       *session
	connecting bool
	closed     bool
	pacer      *retry.Pacer
	buffer     *localBuffer
}

// NewKafkaQueue attempts the first connection before returning. A failed
// attempt is logged and leaves the queue degraded; it is never returned as an
// error.
func NewKafkaQueue(ctx context.Context, cfg config.KafkaConfig, log logger.Logger) *KafkaQueue {
	q := newKafkaQueue(cfg, log)

	mechanism := saslMechanism(cfg)
	transport := &kafka.Transport{
		DialTimeout: q.dialTimeout(),
		SASL:        mechanism,
		ClientID:    constants.ServiceName,
	}
	dialer := &kafka.Dialer{
		Timeout:       q.dialTimeout(),
		DualStack:     true,
		ClientID:      constants.ServiceName,
		SASLMechanism: mechanism,
	}

	q.admin = &kafka.Client{
		Addr:      kafka.TCP(cfg.Brokers...),
		Timeout:   q.dialTimeout(),
		Transport: transport,
	}
	q.newWriter = func() messageWriter {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        q.topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: constants.KafkaBatchTimeout,
			WriteTimeout: constants.KafkaWriteTimeout,
			Transport:    transport,
		}
	}
	q.newReader = func() messageReader {
		// QueueCapacity 1 with synchronous commits keeps a single
		// unacknowledged message in flight for this consumer.
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			GroupID:        cfg.GroupID,
			Topic:          q.topic,
			Dialer:         dialer,
			QueueCapacity:  1,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        constants.KafkaMaxWait,
			CommitInterval: 0,
			StartOffset:    kafka.FirstOffset,
		})
	}

	q.start(ctx)
	return q
}

func newKafkaQueue(cfg config.KafkaConfig, log logger.Logger) *KafkaQueue {
	q := &KafkaQueue{
		cfg:    cfg,
		topic:  TopicName(cfg.Namespace, cfg.Queue),
		logger: log,
		now:    time.Now,
		pacer: retry.NewPacer(retry.ExponentialBackoff(
			cfg.Reconnect.InitialInterval,
			cfg.Reconnect.MaxInterval,
			cfg.Reconnect.Multiplier,
		)),
	}
	if cfg.LocalBufferSize > 0 {
		q.buffer = newLocalBuffer(cfg.LocalBufferSize)
	}
	return q
}

// TopicName prefixes name with the namespace, if any.
func TopicName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

func saslMechanism(cfg config.KafkaConfig) sasl.Mechanism {
	if cfg.Username == "" {
		return nil
	}
	return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
}

func (q *KafkaQueue) start(ctx context.Context) {
	metrics.SetQueueConnected(q.topic, false)
	if _, err := q.acquire(ctx); err != nil {
		q.logger.Warnw("Broker unavailable at startup, continuing without broker",
			"queue", q.topic,
			"brokers", q.cfg.Brokers,
			"error", err,
		)
	}
}

func (q *KafkaQueue) dialTimeout() time.Duration {
	if q.cfg.DialTimeout > 0 {
		return q.cfg.DialTimeout
	}
	return constants.DefaultDialTimeout
}

func (q *KafkaQueue) Name() string {
	return q.topic
}

func (q *KafkaQueue) Connected() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sess != nil
}

// acquire returns the live session, connecting first when the queue is
// degraded and the backoff allows another attempt. The dial runs without
// holding mu; calls made meanwhile fail fast with ErrConnection.
func (q *KafkaQueue) acquire(ctx context.Context) (*session, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, connectionError(errQueueClosed)
	}
	if q.sess != nil {
		sess := q.sess
		q.mu.Unlock()
		return sess, nil
	}

	now := q.now()
	if q.connecting || !q.pacer.Ready(now) {
		q.mu.Unlock()
		return nil, ErrConnection
	}
	q.connecting = true
	q.mu.Unlock()

	sess, err := q.connect(ctx)

	q.mu.Lock()
	q.connecting = false
	if err != nil {
		var next time.Time
		if ctx.Err() == nil {
			next = q.pacer.Failed(now)
		}
		q.mu.Unlock()
		if !next.IsZero() {
			q.logger.Warnw("Broker connection attempt failed",
				"queue", q.topic,
				"error", err,
				"next_attempt", next,
			)
		}
		return nil, connectionError(err)
	}
	if q.closed {
		q.mu.Unlock()
		_ = sess.close()
		return nil, connectionError(errQueueClosed)
	}
	q.sess = sess
	q.pacer.Succeeded()
	q.mu.Unlock()

	metrics.SetQueueConnected(q.topic, true)
	q.logger.Infow("Connected to broker",
		"queue", q.topic,
		"brokers", q.cfg.Brokers,
		"group_id", q.cfg.GroupID,
	)

	q.flushBuffer(ctx, sess)
	return sess, nil
}

func (q *KafkaQueue) connect(ctx context.Context) (*session, error) {
	ctx, cancel := context.WithTimeout(ctx, q.dialTimeout())
	defer cancel()

	if err := q.declare(ctx); err != nil {
		return nil, err
	}

	return &session{
		writer: q.newWriter(),
		reader: q.newReader(),
	}, nil
}

// declare creates the topic when it does not exist yet.
func (q *KafkaQueue) declare(ctx context.Context) error {
	partitions := q.cfg.Partitions
	if partitions < 1 {
		partitions = 1
	}
	replication := q.cfg.ReplicationFactor
	if replication < 1 {
		replication = 1
	}

	resp, err := q.admin.CreateTopics(ctx, &kafka.CreateTopicsRequest{
		Topics: []kafka.TopicConfig{{
			Topic:             q.topic,
			NumPartitions:     partitions,
			ReplicationFactor: replication,
		}},
	})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", q.topic, err)
	}

	if topicErr := resp.Errors[q.topic]; topicErr != nil && !errors.Is(topicErr, kafka.TopicAlreadyExists) {
		return fmt.Errorf("declare queue %s: %w", q.topic, topicErr)
	}

	return nil
}

// degrade drops failed if it is still the current session.
func (q *KafkaQueue) degrade(failed *session, cause error) {
	q.mu.Lock()
	if q.sess != failed {
		q.mu.Unlock()
		return
	}
	q.sess = nil
	next := q.pacer.Failed(q.now())
	q.mu.Unlock()

	metrics.SetQueueConnected(q.topic, false)
	q.logger.Errorw("Broker session lost",
		"queue", q.topic,
		"error", cause,
		"next_attempt", next,
	)

	if err := failed.close(); err != nil {
		q.logger.Warnw("Failed to close broker session", "queue", q.topic, "error", err)
	}
}

func (q *KafkaQueue) Publish(ctx context.Context, event models.PriceEvent) error {
	ctx, span := tracing.StartPublishSpan(ctx, q.topic)
	defer span.End()

	body, err := models.EncodePriceEvent(event)
	if err != nil {
		metrics.IncQueueMessages(q.topic, "publish", "invalid")
		return &PublishError{Queue: q.topic, Err: err}
	}

	msg := kafka.Message{
		Key:   []byte(event.FlightID),
		Value: body,
		Headers: tracing.InjectTraceContext(ctx, []kafka.Header{
			{Key: messageIDHeader, Value: []byte(uuid.NewString())},
		}),
		Time: q.now(),
	}

	sess, err := q.acquire(ctx)
	if err != nil {
		return q.bufferOrFail(msg, err)
	}

	err = sess.writer.WriteMessages(ctx, msg)
	switch {
	case err == nil:
		metrics.IncQueueMessages(q.topic, "publish", "success")
		metrics.ObserveQueueMessageSize(q.topic, "out", len(body))
		return nil
	case ctx.Err() != nil:
		return &PublishError{Queue: q.topic, Err: err}
	case isBrokerRejection(err):
		metrics.IncQueueMessages(q.topic, "publish", "error")
		return &PublishError{Queue: q.topic, Err: err}
	default:
		q.degrade(sess, err)
		return q.bufferOrFail(msg, connectionError(err))
	}
}

func (q *KafkaQueue) bufferOrFail(msg kafka.Message, cause error) error {
	if q.buffer == nil {
		metrics.IncQueueMessages(q.topic, "publish", "unavailable")
		return &PublishError{Queue: q.topic, Err: cause}
	}

	if !q.buffer.push(msg) {
		metrics.IncQueueMessages(q.topic, "publish", "unavailable")
		return &PublishError{
			Queue: q.topic,
			Err:   fmt.Errorf("local buffer full (%d events): %w", q.cfg.LocalBufferSize, cause),
		}
	}

	size := q.buffer.len()
	metrics.IncQueueMessages(q.topic, "publish", "buffered")
	metrics.SetQueueLocalBufferSize(q.topic, size)
	q.logger.Debugw("Buffered event while broker is unavailable",
		"queue", q.topic,
		"buffered", size,
	)
	return nil
}

func (q *KafkaQueue) flushBuffer(ctx context.Context, sess *session) {
	if q.buffer == nil {
		return
	}

	pending := q.buffer.drain()
	if len(pending) == 0 {
		return
	}

	if err := sess.writer.WriteMessages(ctx, pending...); err != nil {
		dropped := q.buffer.restore(pending)
		metrics.SetQueueLocalBufferSize(q.topic, q.buffer.len())
		q.logger.Warnw("Failed to flush local buffer",
			"queue", q.topic,
			"pending", len(pending),
			"dropped", dropped,
			"error", err,
		)
		if ctx.Err() == nil && !isBrokerRejection(err) {
			q.degrade(sess, err)
		}
		return
	}

	metrics.SetQueueLocalBufferSize(q.topic, q.buffer.len())
	q.logger.Infow("Flushed local buffer", "queue", q.topic, "count", len(pending))
}

// Consume blocks until a well-formed event is available. Each message is
// committed once it has been decoded. Malformed messages are committed,
// logged and skipped so they are never delivered again.
func (q *KafkaQueue) Consume(ctx context.Context) (*models.PriceEvent, error) {
	for {
		if ctx.Err() != nil {
			return nil, nil
		}

		sess, err := q.acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil
			}
			return nil, &ConsumeError{Queue: q.topic, Err: err}
		}

		msg, err := sess.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil
			}
			q.degrade(sess, err)
			return nil, &ConsumeError{Queue: q.topic, Err: connectionError(err)}
		}

		event, err := q.receive(ctx, sess, msg)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil
			}
			q.degrade(sess, err)
			return nil, &ConsumeError{Queue: q.topic, Err: connectionError(err)}
		}
		if event == nil {
			continue
		}

		return event, nil
	}
}

// receive decodes and commits msg. A nil event with a nil error means the
// message was malformed and has been dropped.
func (q *KafkaQueue) receive(ctx context.Context, sess *session, msg kafka.Message) (*models.PriceEvent, error) {
	msgCtx, span := tracing.StartQueueSpan(ctx, "queue.consume", q.topic, msg.Headers)
	defer span.End()
	msgCtx = logging.WithMessageID(msgCtx, headerValue(msg.Headers, messageIDHeader))

	event, decodeErr := models.DecodePriceEvent(msg.Value)

	if err := sess.reader.CommitMessages(msgCtx, msg); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("commit offset %d: %w", msg.Offset, err)
	}

	if decodeErr != nil {
		span.RecordError(decodeErr)
		metrics.IncQueueMessages(q.topic, "consume", "rejected")
		q.logger.ErrorwCtx(msgCtx, "Rejected malformed message",
			"queue", q.topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", decodeErr,
		)
		return nil, nil
	}

	metrics.IncQueueMessages(q.topic, "consume", "success")
	metrics.ObserveQueueMessageSize(q.topic, "in", len(msg.Value))
	q.logger.DebugwCtx(logging.WithFlightID(msgCtx, event.FlightID), "Received price event",
		"queue", q.topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
	)
	return &event, nil
}

// QueueDepth sums, across partitions, the messages not yet committed by the
// consumer group. It only reads metadata and offsets.
func (q *KafkaQueue) QueueDepth(ctx context.Context, name string) (uint64, error) {
	topic := TopicName(q.cfg.Namespace, name)

	ctx, cancel := context.WithTimeout(ctx, q.dialTimeout())
	defer cancel()

	meta, err := q.admin.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{topic}})
	if err != nil {
		return 0, &QueryError{Queue: topic, Err: connectionError(err)}
	}

	partitions, err := topicPartitions(meta, topic)
	if err != nil {
		return 0, &QueryError{Queue: topic, Err: err}
	}

	requests := make([]kafka.OffsetRequest, 0, 2*len(partitions))
	for _, p := range partitions {
		requests = append(requests, kafka.FirstOffsetOf(p), kafka.LastOffsetOf(p))
	}

	offsets, err := q.admin.ListOffsets(ctx, &kafka.ListOffsetsRequest{
		Topics: map[string][]kafka.OffsetRequest{topic: requests},
	})
	if err != nil {
		return 0, &QueryError{Queue: topic, Err: connectionError(err)}
	}

	committed, err := q.admin.OffsetFetch(ctx, &kafka.OffsetFetchRequest{
		GroupID: q.cfg.GroupID,
		Topics:  map[string][]int{topic: partitions},
	})
	if err != nil {
		return 0, &QueryError{Queue: topic, Err: connectionError(err)}
	}
	if committed.Error != nil {
		return 0, &QueryError{Queue: topic, Err: committed.Error}
	}

	commits := make(map[int]int64, len(partitions))
	for _, p := range committed.Topics[topic] {
		if p.Error != nil {
			return 0, &QueryError{Queue: topic, Err: fmt.Errorf("partition %d: %w", p.Partition, p.Error)}
		}
		commits[p.Partition] = p.CommittedOffset
	}

	var total uint64
	for _, po := range offsets.Topics[topic] {
		if po.Error != nil {
			return 0, &QueryError{Queue: topic, Err: fmt.Errorf("partition %d: %w", po.Partition, po.Error)}
		}

		start := po.FirstOffset
		if c, ok := commits[po.Partition]; ok && c > start {
			start = c
		}

		depth := po.LastOffset - start
		if depth < 0 {
			depth = 0
		}
		metrics.SetQueueDepth(topic, po.Partition, depth)
		total += uint64(depth)
	}

	return total, nil
}

func topicPartitions(meta *kafka.MetadataResponse, topic string) ([]int, error) {
	for _, t := range meta.Topics {
		if t.Name != topic {
			continue
		}
		if errors.Is(t.Error, kafka.UnknownTopicOrPartition) {
			return nil, fmt.Errorf("%w: %s: %w", ErrQueueNotFound, topic, t.Error)
		}
		if t.Error != nil {
			return nil, fmt.Errorf("queue %s: %w", topic, t.Error)
		}
		ids := make([]int, 0, len(t.Partitions))
		for _, p := range t.Partitions {
			ids = append(ids, p.ID)
		}
		sort.Ints(ids)
		return ids, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrQueueNotFound, topic)
}

// Close releases the reader, then the writer. It is safe to call on a queue
// that never connected, and more than once.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	sess := q.sess
	q.sess = nil
	q.closed = true
	q.mu.Unlock()

	metrics.SetQueueConnected(q.topic, false)

	if q.buffer != nil {
		if n := q.buffer.len(); n > 0 {
			q.logger.Warnw("Discarding buffered events on shutdown", "queue", q.topic, "count", n)
		}
	}

	if sess == nil {
		return nil
	}
	return sess.close()
}

// isBrokerRejection reports errors returned by a reachable broker, as opposed
// to transport failures.
func isBrokerRejection(err error) bool {
	var tooLarge kafka.MessageTooLargeError
	if errors.As(err, &tooLarge) {
		return true
	}

	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		if writeErrs.Count() == 0 {
			return false
		}
		for _, e := range writeErrs {
			if e != nil && !isBrokerRejection(e) {
				return false
			}
		}
		return true
	}

	var kerr kafka.Error
	return errors.As(err, &kerr) && !kerr.Temporary()
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
