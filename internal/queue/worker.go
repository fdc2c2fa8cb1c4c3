package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// Consumer is the part of an AMQP channel the worker needs.
type Consumer interface {
	Channel
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
}

// Metrics exposes the AI usage of the processed message.
type Metrics interface {
	GetMetrics() ai.ModelMetrics
	ResetMetrics()
}

// Worker consumes ingest_queue one message at a time.
type Worker struct {
	ch        Consumer
	processor *Processor
	metrics   Metrics
}

// NewWorker returns a worker. metrics may be nil.
func NewWorker(ch Consumer, processor *Processor, metrics Metrics) *Worker {
	return &Worker{ch: ch, processor: processor, metrics: metrics}
}

// Run consumes until ctx is done or the delivery channel closes.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := w.ch.Consume(
		IngestQueue,
		IngestQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", IngestQueue, err)
	}

	logger.Info("[Queue] Listening for messages", "queue", IngestQueue)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Stopping consumer", "queue", IngestQueue)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("[Queue] Message channel closed", "queue", IngestQueue)
				return nil
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg amqp091.Delivery) {
	startTime := time.Now()
	logger.Info("[Queue] Received message", "queue", IngestQueue)

	if err := w.processor.ProcessIngestMessage(ctx, msg.Body); err != nil {
		logger.Error("[Queue] Error processing message", "queue", IngestQueue, "err", err)
		HandleProcessingError(ctx, w.ch, msg, IngestQueue, err)
	} else {
		if err := msg.Ack(false); err != nil {
			logger.Error("[Queue] Failed to ack message", "err", err)
		}
		logger.Info("[Queue] Message processed successfully", "queue", IngestQueue)
	}

	if w.metrics != nil {
		metrics := w.metrics.GetMetrics()
		logger.Info(
			"[Queue] AI metrics",
			"requests", metrics.Requests,
			"input_tokens", metrics.InputTokens,
			"output_tokens", metrics.OutputTokens,
			"total_tokens", metrics.TotalTokens,
			"duration", formatDuration(time.Duration(metrics.DurationMs)*time.Millisecond),
		)
		w.metrics.ResetMetrics()
	}
	logger.Info("[Queue] Processing time", "duration", formatDuration(time.Since(startTime)))
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
