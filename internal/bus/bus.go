// Package bus publishes lifecycle events to RabbitMQ topic exchanges.
// Publishes are best-effort; a lost message never blocks the core loop.
package bus

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

const (
	// ExchangeMatchmaking carries matchmaking.* routing keys
	ExchangeMatchmaking = "matchmaking"
	// ExchangeGameEvents carries game.* and player.* routing keys
	ExchangeGameEvents = "game_events"

	connectAttempts = 10
	connectSpacing  = 3 * time.Second
)

// Publisher is a durable-topic-exchange publisher over one AMQP channel.
type Publisher struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials the broker, retrying up to 10 times 3 s apart, and declares
// both durable topic exchanges. Exhausting the attempts is fatal to startup.
func Connect(url string) (*Publisher, error) {
	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Printf("[BUS] Connect attempt %d/%d failed: %v", attempt, connectAttempts, err)
		if attempt < connectAttempts {
			time.Sleep(connectSpacing)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("bus connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bus channel: %w", err)
	}
	for _, exchange := range []string{ExchangeMatchmaking, ExchangeGameEvents} {
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
	}

	log.Printf("[BUS] Connected, exchanges declared")
	return &Publisher{conn: conn, ch: ch}, nil
}

// Publish sends a JSON-encoded message with persistent delivery.
func (p *Publisher) Publish(exchange, key string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode bus message %s: %w", key, err)
	}

	// amqp channels are not safe for concurrent publishes
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Publish(exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Close tears down the channel and connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
