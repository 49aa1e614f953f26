package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPNotifier publishes notifications as JSON on a fanout exchange, routed by kind.
type AMQPNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger

	mu sync.Mutex
}

// DialAMQP connects, opens a channel and declares the durable fanout exchange.
func DialAMQP(url, exchange string, logger *slog.Logger) (*AMQPNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}
	logger.Info("notify.amqp.connected", "exchange", exchange)
	return &AMQPNotifier{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func (a *AMQPNotifier) Notify(ctx context.Context, n Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		a.logger.Error("notify.amqp.encode_error", "notification_id", n.ID, "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.channel.PublishWithContext(ctx,
		a.exchange,
		string(n.Kind),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.ID,
			Timestamp:    n.At,
			Body:         body,
		})
	if err != nil {
		a.logger.Error("notify.amqp.publish_error", "notification_id", n.ID, "job_id", n.JobID, "error", err)
		return
	}
	a.logger.Debug("notify.amqp.published", "notification_id", n.ID, "job_id", n.JobID, "kind", n.Kind)
}

// Close closes the channel and the connection.
func (a *AMQPNotifier) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	chErr := a.channel.Close()
	connErr := a.conn.Close()
	if chErr != nil {
		return chErr
	}
	return connErr
}
