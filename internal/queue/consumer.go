package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/apperr"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/config"
)

// Consumer reads job envelopes off the analysis queue with manual acks.
// It declares the same topology as the publisher so either side can start
// first.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewConsumer dials the broker and declares the shared topology.
func NewConsumer(cfg config.RabbitMQConfig) (*Consumer, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Dial: amqp.DefaultDial(connectTimeout(cfg.ConnectTimeout)),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Service, err, "connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.Service, err, "open channel")
	}

	// One unacked message at a time keeps slow analyses from starving
	// other workers.
	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.Service, err, "set qos")
	}

	if err := ch.ExchangeDeclare(cfg.ExchangeName, "direct", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.Service, err, "declare exchange %s", cfg.ExchangeName)
	}

	if _, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.Service, err, "declare queue %s", cfg.QueueName)
	}

	if err := ch.QueueBind(cfg.QueueName, cfg.RoutingKey, cfg.ExchangeName, false, nil); err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.Service, err, "bind queue %s", cfg.QueueName)
	}

	log.Info().Str("queue", cfg.QueueName).Msg("rabbitmq consumer initialized")

	return &Consumer{conn: conn, channel: ch, queue: cfg.QueueName}, nil
}

// Deliveries opens the delivery stream. Acks are the caller's job: ack on
// handled (including handled-by-rejecting), nack with requeue only on
// transient infrastructure failure.
func (c *Consumer) Deliveries() (<-chan amqp.Delivery, error) {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Service, err, "consume from queue %s", c.queue)
	}
	return deliveries, nil
}

// Close shuts down the channel and connection; the delivery channel closes
// as a side effect.
func (c *Consumer) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
