package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

// publisher is the subset of *amqp.Channel used by AMQPSender.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSender publishes updates to a topic exchange; the subscriber's
// routing key selects the queues that receive them.
type AMQPSender struct {
	conn     *amqp.Connection
	channel  publisher
	exchange string
	log      *slog.Logger
}

// UpdateMessage is the JSON payload of a published update.
type UpdateMessage struct {
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
	RoutingKey string    `json:"routing_key"`
}

// NewAMQPSender connects to the broker and declares a durable topic exchange.
func NewAMQPSender(url, exchange string, log *slog.Logger) (*AMQPSender, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	log.Info("connected to rabbitmq", "exchange", exchange)

	return &AMQPSender{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

func (s *AMQPSender) Send(ctx context.Context, to, subject, body string) error {
	now := time.Now().UTC()
	payload, err := json.Marshal(UpdateMessage{
		Subject:    subject,
		Body:       body,
		SentAt:     now,
		RoutingKey: to,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = s.channel.PublishWithContext(ctx, s.exchange, to, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         payload,
		Timestamp:    now,
	})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	s.log.Debug("published update", "routing_key", to)
	return nil
}

// Close closes the channel and the connection.
func (s *AMQPSender) Close() error {
	if s.channel != nil {
		_ = s.channel.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
