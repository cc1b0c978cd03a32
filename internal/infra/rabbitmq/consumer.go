package rabbitmq

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/risingstars/video-pipeline/internal/domain/entity"
	"github.com/risingstars/video-pipeline/internal/domain/port"
	"go.uber.org/zap"
)

const (
	processingRoutingKey = "video.processing"

	// retryCountHeader carries how many deliveries of a job were released
	// without an acknowledgement.
	retryCountHeader = "x-retry-count"
)

type Topology struct {
	Exchange string
	Queue    string
	DLQ      string
}

// DeclareTopology is idempotent; both the API and the worker call it.
func DeclareTopology(ch *amqp.Channel, t Topology) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range []string{t.Queue, t.DLQ} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	if err := ch.QueueBind(t.Queue, processingRoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind processing queue: %w", err)
	}
	return nil
}

type pendingDelivery struct {
	delivery  amqp.Delivery
	attempt   int
	releaseAt time.Time
}

// Consumer turns the push-style AMQP delivery stream into receive and
// acknowledge calls. A delivery that is received but never acknowledged is
// released once its backoff elapses, which mirrors a visibility timeout:
// it is republished to the tail of the queue with its retry count bumped.
type Consumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queue     string
	baseDelay time.Duration
	logger    *zap.Logger

	startOnce  sync.Once
	startErr   error
	deliveries <-chan amqp.Delivery

	mu      sync.Mutex
	pending map[uint64]pendingDelivery
	now     func() time.Time

	republish func(ctx context.Context, msg amqp.Publishing) error
	closed    atomic.Bool
}

type ConsumerConfig struct {
	URL       string
	Topology  Topology
	Prefetch  int
	BaseDelay time.Duration
}

func NewConsumer(cfg ConsumerConfig, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := DeclareTopology(ch, cfg.Topology); err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	c := &Consumer{
		conn:      conn,
		channel:   ch,
		queue:     cfg.Topology.Queue,
		baseDelay: cfg.BaseDelay,
		logger:    logger,
		pending:   make(map[uint64]pendingDelivery),
		now:       time.Now,
		republish: func(ctx context.Context, msg amqp.Publishing) error {
			return ch.PublishWithContext(ctx, cfg.Topology.Exchange, processingRoutingKey, false, false, msg)
		},
	}
	go c.watchClose(conn.NotifyClose(make(chan *amqp.Error, 1)), ch.NotifyClose(make(chan *amqp.Error, 1)))
	return c, nil
}

// watchClose flags the consumer as closed as soon as either the connection
// or the channel goes away. Neither is ever reopened.
func (c *Consumer) watchClose(connClosed, chanClosed <-chan *amqp.Error) {
	var reason *amqp.Error
	select {
	case reason = <-connClosed:
	case reason = <-chanClosed:
	}
	c.closed.Store(true)
	if reason != nil {
		c.logger.Error("rabbitmq consumer closed", zap.String("queue", c.queue), zap.Error(reason))
	}
}

// Ready fails once the broker connection is gone.
func (c *Consumer) Ready(context.Context) error {
	if c.closed.Load() {
		return fmt.Errorf("consumer on %s: %w", c.queue, port.ErrQueueClosed)
	}
	return nil
}

func (c *Consumer) start() error {
	c.startOnce.Do(func() {
		if c.deliveries != nil {
			return
		}
		c.deliveries, c.startErr = c.channel.ConsumeWithContext(
			context.Background(),
			c.queue,
			"",
			false, // autoAck=false
			false,
			false,
			false,
			nil,
		)
	})
	return c.startErr
}

// Receive waits up to wait for the first delivery and then takes whatever
// else is already buffered, up to maxMessages. A closed delivery stream is
// reported as port.ErrQueueClosed.
func (c *Consumer) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]entity.QueueMessage, error) {
	if err := c.Ready(ctx); err != nil {
		return nil, err
	}
	if err := c.start(); err != nil {
		return nil, fmt.Errorf("start consuming %s: %w", c.queue, err)
	}
	c.releaseExpired(ctx)

	if maxMessages < 1 {
		maxMessages = 1
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	var msgs []entity.QueueMessage
	select {
	case <-ctx.Done():
		return nil, nil
	case <-timer.C:
		return nil, nil
	case d, ok := <-c.deliveries:
		if !ok {
			c.closed.Store(true)
			return nil, fmt.Errorf("deliveries from %s: %w", c.queue, port.ErrQueueClosed)
		}
		msgs = append(msgs, c.track(d))
	}

	for len(msgs) < maxMessages {
		select {
		case d, ok := <-c.deliveries:
			if !ok {
				c.closed.Store(true)
				return msgs, nil
			}
			msgs = append(msgs, c.track(d))
		default:
			return msgs, nil
		}
	}
	return msgs, nil
}

func (c *Consumer) track(d amqp.Delivery) entity.QueueMessage {
	attempt := attemptFromHeaders(d)

	c.mu.Lock()
	c.pending[d.DeliveryTag] = pendingDelivery{
		delivery:  d,
		attempt:   attempt,
		releaseAt: c.now().Add(c.backoff(attempt)),
	}
	c.mu.Unlock()

	return entity.QueueMessage{
		Body:          d.Body,
		ReceiptHandle: strconv.FormatUint(d.DeliveryTag, 10),
		Attempt:       attempt,
	}
}

func (c *Consumer) Acknowledge(_ context.Context, msg entity.QueueMessage) bool {
	tag, err := strconv.ParseUint(msg.ReceiptHandle, 10, 64)
	if err != nil {
		c.logger.Error("invalid receipt handle", zap.String("receipt_handle", msg.ReceiptHandle))
		return false
	}

	c.mu.Lock()
	p, ok := c.pending[tag]
	delete(c.pending, tag)
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("acknowledge of unknown delivery", zap.Uint64("delivery_tag", tag))
		return false
	}
	if err := p.delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack delivery", zap.Uint64("delivery_tag", tag), zap.Error(err))
		return false
	}
	return true
}

// releaseExpired hands deliveries whose holder never acknowledged them back
// to the queue.
func (c *Consumer) releaseExpired(ctx context.Context) {
	now := c.now()

	c.mu.Lock()
	var expired []pendingDelivery
	for tag, p := range c.pending {
		if !now.Before(p.releaseAt) {
			expired = append(expired, p)
			delete(c.pending, tag)
		}
	}
	c.mu.Unlock()

	for _, p := range expired {
		c.release(ctx, p)
	}
}

// release republishes the job behind the rest of the queue and acks the old
// delivery. If the republish fails the delivery is requeued in place, which
// keeps the message but not its retry count.
func (c *Consumer) release(ctx context.Context, p pendingDelivery) {
	d := p.delivery
	log := c.logger.With(zap.Uint64("delivery_tag", d.DeliveryTag), zap.Int("attempt", p.attempt))

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryCountHeader] = int32(p.attempt)

	err := c.republish(ctx, amqp.Publishing{
		ContentType:  d.ContentType,
		Body:         d.Body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
	})
	if err != nil {
		log.Warn("failed to republish unacknowledged delivery, requeueing in place", zap.Error(err))
		if err := d.Nack(false, true); err != nil {
			log.Error("failed to requeue delivery", zap.Error(err))
		}
		return
	}

	log.Info("released unacknowledged delivery for retry")
	if err := d.Ack(false); err != nil {
		log.Error("failed to ack released delivery", zap.Error(err))
	}
}

// attemptFromHeaders prefers the retry count this consumer stamps on
// released jobs, then the delivery count quorum queues attach, then x-death
// entries from dead-letter cycles and finally the redelivered flag.
func attemptFromHeaders(d amqp.Delivery) int {
	switch n := d.Headers[retryCountHeader].(type) {
	case int32:
		return int(n) + 1
	case int64:
		return int(n) + 1
	case int:
		return n + 1
	}
	if n, ok := d.Headers["x-delivery-count"].(int64); ok {
		return int(n) + 1
	}
	if xDeath, ok := d.Headers["x-death"]; ok {
		if deaths, ok := xDeath.([]interface{}); ok && len(deaths) > 0 {
			return len(deaths)
		}
	}
	if d.Redelivered {
		return 2
	}
	return 1
}

func (c *Consumer) backoff(attempt int) time.Duration {
	delay := c.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	return delay
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
