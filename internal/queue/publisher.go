// Package queue owns the RabbitMQ topology for vision analysis jobs: one
// direct exchange, one durable queue, one fixed routing key.
package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/apperr"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/config"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/model"
)

// Publisher hands job envelopes to the broker over a single long-lived
// channel. All topology is declared at construction; declaration is
// idempotent so repeated restarts are safe.
type Publisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// Connect dials the broker and sets up channel, QoS, exchange, queue and
// binding. Any step failing fails the whole initialization: topology
// problems surface at startup, not per message.
func Connect(cfg config.RabbitMQConfig) (*Publisher, error) {
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

	// QoS matters on the consumer side; set here too so both ends of the
	// queue share one declaration path.
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

	log.Info().
		Str("exchange", cfg.ExchangeName).
		Str("queue", cfg.QueueName).
		Str("routing_key", cfg.RoutingKey).
		Msg("rabbitmq publisher initialized")

	return &Publisher{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.ExchangeName,
		routingKey: cfg.RoutingKey,
	}, nil
}

// Publish serializes the envelope and delivers it to the exchange with the
// job id as message id. Failures are Service errors; the caller decides
// how to reconcile the already-written status record.
func (p *Publisher) Publish(ctx context.Context, msg *model.VisionAnalysisMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "serialize job envelope")
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, p.routingKey, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.JobID.String(),
			Timestamp:    msg.Timestamp,
			Body:         payload,
		})
	if err != nil {
		return apperr.Wrap(apperr.Service, err, "publish job envelope")
	}

	log.Info().Str("job_id", msg.JobID.String()).Msg("published vision analysis job")
	return nil
}

// HealthCheck reports whether the underlying connection is open. No
// round-trip is performed.
func (p *Publisher) HealthCheck() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// connectTimeout keeps DialConfig sane when the config carries a zero
// timeout.
func connectTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}
