package infra

import (
	"fmt"
	"math/rand"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wwada/optiroute/config"
)

type RabbitMQClient struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
}

// dialBackoff returns the wait before the given retry attempt: exponential
// on a 500ms base with up to one base unit of jitter, capped at 30s.
func dialBackoff(attempt int) time.Duration {
	base := 500 * time.Millisecond
	delay := 30 * time.Second
	if attempt < 6 {
		delay = base * (1 << attempt)
	}
	jitter := time.Duration(rand.Int63n(int64(base)))
	return delay + jitter
}

func InitRabbitMQClient(cfg *config.EnvConfig) (*RabbitMQClient, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/",
		cfg.RabbitMQ.Username,
		cfg.RabbitMQ.Password,
		cfg.RabbitMQ.Host,
		cfg.RabbitMQ.Port,
	)

	maxAttempts := cfg.RabbitMQ.DialMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var conn *amqp.Connection
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		if attempt < maxAttempts-1 {
			time.Sleep(dialBackoff(attempt))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxAttempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	return &RabbitMQClient{
		Connection: conn,
		Channel:    channel,
	}, nil
}

func (c *RabbitMQClient) Close() {
	if c.Channel != nil {
		_ = c.Channel.Close()
	}
	if c.Connection != nil {
		_ = c.Connection.Close()
	}
}
