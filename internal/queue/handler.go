package queue

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/graphrag/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// MaxRetries is how often a message is retried before it goes to the DLQ.
const MaxRetries = 10

const retriesHeader = "x-retries"

func retryCount(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// HandleProcessingError republishes msg to the retry queue of queueName, or
// to its dead letter queue once MaxRetries is reached or cause is an
// ErrInvalidMessage, and acks the original. If republishing fails the message
// is requeued.
func HandleProcessingError(ctx context.Context, ch Channel, msg amqp091.Delivery, queueName string, cause error) {
	retries := retryCount(msg.Headers)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	target := queueName + "_retry"
	if retries >= MaxRetries || errors.Is(cause, ErrInvalidMessage) {
		target = queueName + "_dlq"
		logger.Warn("[Queue] Sending message to DLQ", "dlq", target, "retries", retries)
	} else {
		headers[retriesHeader] = int32(retries + 1)
	}

	pubErr := ch.PublishWithContext(
		ctx,
		"",
		target,
		false,
		false,
		amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if pubErr != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", pubErr)
		if err := msg.Nack(false, true); err != nil {
			logger.Error("[Queue] Failed to nack message", "err", err)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}
