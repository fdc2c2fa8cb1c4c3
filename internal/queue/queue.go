package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/graphrag/internal/config"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// IngestQueue carries IngestMessage bodies.
const IngestQueue = "ingest_queue"

// retryDelay is how long a failed message waits in the retry queue before it
// is dead lettered back onto its main queue.
const retryDelay = 10 * time.Second

// Channel is the part of an AMQP channel used to declare queues and publish.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func Init(cfg config.QueueConfig) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ at %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	return conn, nil
}

// SetupQueues declares each queue with its _dlq and _retry companions.
func SetupQueues(ch Channel, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", retryName, err)
		}
		logger.Debug("[Queue] Declared", "queue", name)
	}

	return nil
}

func PublishFIFO(ctx context.Context, ch Channel, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	if err := ch.PublishWithContext(ctx, "", queueName, false, false, publishing); err != nil {
		return fmt.Errorf("publish to %s: %w", queueName, err)
	}
	return nil
}
