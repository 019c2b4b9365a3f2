package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"coop-ledger/internal/pkg/pubsub"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends one message to the configured exchange
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	Close()
}

// Producer publishes JSON messages to a durable topic exchange
type Producer struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// Fallback is used when AMQP is not configured or unreachable at startup
type Fallback struct{}

func (Fallback) Publish(_ context.Context, routingKey string, _ interface{}) error {
	log.Printf("⚠️ Event forwarding disabled, dropped %s", routingKey)
	return nil
}

func (Fallback) Close() {}

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewProducer dials amqpURL and declares exchange
func NewProducer(amqpURL, exchange string) (*Producer, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Producer{conn: conn, channel: ch, exchange: exchange}, nil
}

// Connect returns a live Producer, or Fallback when amqpURL is empty or cannot be reached
func Connect(amqpURL, exchange string) Publisher {
	if strings.TrimSpace(amqpURL) == "" {
		log.Println("⚠️ AMQP_URL not set, change events stay in-process")
		return Fallback{}
	}
	p, err := NewProducer(amqpURL, exchange)
	if err != nil {
		log.Printf("⚠️ RabbitMQ unavailable (%v), change events stay in-process", err)
		return Fallback{}
	}
	log.Printf("✅ RabbitMQ connected, forwarding to exchange %s", exchange)
	return p
}

// Publish sends body as JSON to the exchange under routingKey
func (p *Producer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
}

func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// RoutingKey maps a hub path to a topic routing key (org/ledger/loans/1 -> org.ledger.loans.1)
func RoutingKey(path string) string {
	return strings.ReplaceAll(pubsub.Clean(path), "/", ".")
}

// Forward relays every hub event to pub until ctx is done.
// It returns once its subscription is established.
func Forward(ctx context.Context, hub *pubsub.Hub, pub Publisher) {
	events, cancel := hub.Subscribe(pubsub.Root)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				pctx, done := context.WithTimeout(ctx, 5*time.Second)
				if err := pub.Publish(pctx, RoutingKey(e.Path), e); err != nil {
					log.Printf("❌ Failed to forward %s: %v", e.Path, err)
				}
				done()
			}
		}
	}()
}
