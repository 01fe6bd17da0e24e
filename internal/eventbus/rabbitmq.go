// Package eventbus publishes domain events to a RabbitMQ topic exchange for
// downstream consumers.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

const (
	// For publisher confirms
	publishTimeout = 5 * time.Second
	exchangeType   = "topic"
)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialer func(url, exchange string) (*amqp.Connection, channel, chan amqp.Confirmation, error)

// Publisher is a fan-out sink that writes each event to the exchange with
// the event type as routing key and waits for the broker's confirm.
type Publisher struct {
	url      string
	exchange string
	dial     dialer

	mu      sync.Mutex // serializes publish + confirm pairs
	conn    *amqp.Connection
	ch      channel
	confirm chan amqp.Confirmation
}

var _ domain.Sink = (*Publisher)(nil)

// NewPublisher connects to url and declares the exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	p := &Publisher{url: url, exchange: exchange, dial: dialAMQP}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func dialAMQP(url, exchange string) (*amqp.Connection, channel, chan amqp.Confirmation, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("failed to open producer channel: %w", err)
	}
	// Enable publisher confirms on this channel
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("producer channel could not be put into confirm mode: %w", err)
	}
	confirm := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	err = ch.ExchangeDeclare(
		exchange,     // name
		exchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return conn, ch, confirm, nil
}

func (p *Publisher) connect() error {
	conn, ch, confirm, err := p.dial(p.url, p.exchange)
	if err != nil {
		return err
	}
	p.conn, p.ch, p.confirm = conn, ch, confirm
	log.Info().Str("exchange", p.exchange).Msg("connected to RabbitMQ")
	return nil
}

func (p *Publisher) Name() string { return "rabbitmq" }

// Deliver publishes evt and waits for the confirm. A failed publish drops the
// channel so the next delivery reconnects.
func (p *Publisher) Deliver(ctx context.Context, evt domain.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		if err := p.connect(); err != nil {
			return err
		}
	}

	err = p.ch.Publish(
		p.exchange,       // exchange
		string(evt.Type), // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    evt.ID,
			Timestamp:    evt.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		p.reset()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case confirm, ok := <-p.confirm:
		if !ok {
			p.reset()
			return errors.New("confirm channel closed")
		}
		if !confirm.Ack {
			return fmt.Errorf("event %s nacked by broker", evt.ID)
		}
		return nil
	case <-timer.C:
		// the confirm may still arrive; a fresh channel keeps tags in step
		p.reset()
		return errors.New("publish confirmation timeout")
	case <-ctx.Done():
		p.reset()
		return ctx.Err()
	}
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch, p.confirm = nil, nil, nil
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
