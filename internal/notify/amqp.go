package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AMQPNotifier publishes trip events to a topic exchange, routed by
// event type. Publishing is best-effort: a broker failure is logged and
// the event dropped, never surfaced to the trip path.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      zerolog.Logger
}

func NewAMQPNotifier(url, exchange string, log zerolog.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange, log: log}, nil
}

func (n *AMQPNotifier) Publish(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		n.log.Error().Err(err).Str("event", event.Type).Msg("marshal event")
		return
	}

	pubctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err = n.ch.PublishWithContext(pubctx, n.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		n.log.Warn().Err(err).Str("event", event.Type).Msg("event publish dropped")
	}
}

func (n *AMQPNotifier) Close() {
	if n.ch != nil {
		n.ch.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}
