package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"prairie_track/internal/domain"
)

// RabbitMQ publishes refresh notifications so other processes (a desktop
// toast daemon, a chat bot) can surface them.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger

	mu sync.Mutex
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	// QueueName is optional. When set, a durable queue is bound to the
	// exchange so notifications survive until a consumer attaches.
	QueueName string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err == nil {
		err = declareTopology(ch, cfg)
		if err != nil {
			ch.Close()
		}
	}
	if err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("notifications routed to rabbitmq", "exchange", cfg.Exchange, "routing_key", cfg.RoutingKey)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger.With("component", "notify"),
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if cfg.QueueName == "" {
		return nil
	}
	if _, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}
	if err := ch.QueueBind(cfg.QueueName, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", cfg.QueueName, err)
	}
	return nil
}

type NotificationMessage struct {
	Kind      domain.NotificationKind `json:"kind"`
	Message   string                  `json:"message"`
	RunID     string                  `json:"run_id,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// newPublishing wraps a notification as a persistent JSON message.
func newPublishing(n domain.Notification, at time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(NotificationMessage{
		Kind:      n.Kind,
		Message:   n.Message,
		RunID:     n.RunID,
		Timestamp: at.UTC(),
	})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal notification: %w", err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    n.RunID,
		Type:         string(n.Kind),
		Timestamp:    at,
		Body:         body,
	}, nil
}

func (r *RabbitMQ) Notify(ctx context.Context, n domain.Notification) error {
	msg, err := newPublishing(n, time.Now())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.channel.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish %s notification: %w", n.Kind, err)
	}
	r.logger.Debug("published notification", "kind", n.Kind, "run_id", n.RunID)
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
