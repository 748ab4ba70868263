package amqp

import (
	"context"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"cashflow/internal/log"
)

// Client wraps an AMQP connection for publishing and consuming report
// change events.
type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	logger   *log.Logger
}

// NewClient creates a new AMQP client and declares the exchange.
func NewClient(url, exchange, queue string, logger *log.Logger) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Client{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		queue:    queue,
		logger:   logger.WithComponent(log.ComponentAMQP),
	}, nil
}

// PublishReportChanged publishes a report change event.
func (c *Client) PublishReportChanged(ctx context.Context, msg *ReportChangedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		pubCtx,
		c.exchange,
		c.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.DebugContext(ctx, "published report change",
		log.FieldReportID, msg.ReportID,
		"change", msg.Change,
	)
	return nil
}

// Consume starts consuming report change messages, invoking handler for each
// one. Messages are acked on success and nacked with requeue on failure.
// Blocks until ctx is cancelled or the delivery channel closes.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, *ReportChangedMessage) error) error {
	q, err := c.channel.QueueDeclare(
		c.queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := c.channel.QueueBind(q.Name, c.queue, c.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := c.channel.Consume(
		q.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "consuming report changes", "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, delivery amqp.Delivery, handler func(context.Context, *ReportChangedMessage) error) {
	msg, err := ReportChangedMessageFromJSON(delivery.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to decode message, dropping", log.FieldError, err)
		// Malformed messages are never going to parse; don't requeue.
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.logger.ErrorContext(ctx, "failed to nack message", log.FieldError, nackErr)
		}
		return
	}

	if err := handler(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "handler failed, requeueing",
			log.FieldReportID, msg.ReportID,
			log.FieldError, err,
		)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.ErrorContext(ctx, "failed to nack message", log.FieldError, nackErr)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.ErrorContext(ctx, "failed to ack message",
			log.FieldReportID, msg.ReportID,
			log.FieldError, err,
		)
	}
}

// ConsumeWithReconnect runs Consume and re-dials with exponential backoff
// when the connection drops. Non-connection errors are returned to the
// caller.
func ConsumeWithReconnect(ctx context.Context, url, exchange, queue string, logger *log.Logger, handler func(context.Context, *ReportChangedMessage) error) error {
	attempt := 0
	for {
		client, err := NewClient(url, exchange, queue, logger)
		if err == nil {
			attempt = 0
			err = client.Consume(ctx, handler)
			client.Close()
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}

		delay := exponentialBackoff(attempt)
		logger.WarnContext(ctx, "AMQP connection lost, reconnecting",
			log.FieldError, err,
			"retry_in", delay,
		)
		attempt++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Close closes the channel and connection.
func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// exponentialBackoff returns the delay before retry attempt n: 1s, 2s, 4s,
// 8s, 16s, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	d := time.Second << uint(attempt)
	if d > 30*time.Second || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// isConnectionError reports whether err looks like a broken connection
// rather than a permanent protocol or handler failure.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if amqpErr, ok := err.(*amqp.Error); ok {
		return amqpErr.Code == amqp.ConnectionForced || amqpErr.Code == amqp.ChannelError
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"channel/connection is not open",
		"delivery channel closed",
		"EOF",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
