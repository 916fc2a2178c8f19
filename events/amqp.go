// Package events delivers engine events to a RabbitMQ topic exchange so
// out-of-process consumers (notification, loyalty, referral services)
// can react to auction activity without touching settlement state.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/vicodeox/stackAuc/engine"
)

const exchangeName = "auction.events"

// AMQPPublisher implements engine.Publisher over a RabbitMQ topic
// exchange. The event type doubles as the routing key, so consumers can
// bind to e.g. "auction.finalized" or "bid.*".
//
// Publish never blocks settlement: a broker failure is logged and the
// event is dropped. Events are notifications, not the source of truth;
// the security event log and the store carry the durable record.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger
}

// NewAMQPPublisher dials the broker and declares the topic exchange.
func NewAMQPPublisher(url string, log *zap.Logger) (*AMQPPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open AMQP channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, channel: channel, log: log}, nil
}

func (p *AMQPPublisher) Publish(ev engine.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("event not encoded", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	err = p.channel.Publish(
		exchangeName,
		ev.Type, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		p.log.Error("event not published",
			zap.String("type", ev.Type),
			zap.Uint64("auction_id", ev.AuctionID),
			zap.Error(err))
	}
}

// Close shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("close AMQP channel: %w", err)
	}
	return p.conn.Close()
}
