package queue

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/common"

	"github.com/rabbitmq/amqp091-go"
)

type published struct {
	key string
	msg amqp091.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	args       map[string]amqp091.Table
	published  []published
	publishErr error
	deliveries chan amqp091.Delivery
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declared = append(f.declared, name)
	if f.args == nil {
		f.args = make(map[string]amqp091.Table)
	}
	f.args[name] = args
	return amqp091.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error { return nil }

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error) {
	return f.deliveries, nil
}

type fakeAck struct {
	acks, nacks int
	requeued    bool
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error {
	a.acks++
	return nil
}

func (a *fakeAck) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nacks++
	a.requeued = requeue
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error { return nil }

type ingestCall struct {
	source, text string
	metadata     map[string]string
}

type fakeIngester struct {
	calls []ingestCall
	err   error
}

func (f *fakeIngester) Ingest(ctx context.Context, source, text string, metadata map[string]string, entityTypes []string) (*common.Graph, error) {
	f.calls = append(f.calls, ingestCall{source: source, text: text, metadata: metadata})
	if f.err != nil {
		return nil, f.err
	}
	return &common.Graph{}, nil
}

type fakeFetcher map[string]string

func (f fakeFetcher) GetText(ctx context.Context, key string) (string, error) {
	text, ok := f[key]
	if !ok {
		return "", errors.New("no such key")
	}
	return text, nil
}

func TestSetupQueues(t *testing.T) {
	ch := &fakeChannel{}
	if err := SetupQueues(ch, []string{IngestQueue}); err != nil {
		t.Fatalf("SetupQueues() error = %v", err)
	}
	want := []string{"ingest_queue", "ingest_queue_dlq", "ingest_queue_retry"}
	if !reflect.DeepEqual(ch.declared, want) {
		t.Fatalf("declared = %v, want %v", ch.declared, want)
	}
	args := ch.args["ingest_queue_retry"]
	if args["x-dead-letter-routing-key"] != IngestQueue || args["x-message-ttl"] != int32(10000) {
		t.Fatalf("retry args = %v", args)
	}
}

func TestPublishFIFO(t *testing.T) {
	ch := &fakeChannel{}
	if err := PublishFIFO(context.Background(), ch, IngestQueue, []byte(`{"text":"x"}`)); err != nil {
		t.Fatalf("PublishFIFO() error = %v", err)
	}
	if len(ch.published) != 1 || ch.published[0].key != IngestQueue || ch.published[0].msg.DeliveryMode != amqp091.Persistent {
		t.Fatalf("published = %+v", ch.published)
	}

	ch.publishErr = errors.New("closed")
	if err := PublishFIFO(context.Background(), ch, IngestQueue, nil); err == nil {
		t.Fatalf("PublishFIFO() error = nil on a closed channel")
	}
}

func TestHandleProcessingError(t *testing.T) {
	tests := []struct {
		name        string
		headers     amqp091.Table
		cause       error
		publishErr  error
		wantKey     string
		wantRetries any
		wantAcks    int
		wantNacks   int
	}{
		{
			name:        "first failure goes to retry",
			cause:       errors.New("llm down"),
			wantKey:     "ingest_queue_retry",
			wantRetries: int32(1),
			wantAcks:    1,
		},
		{
			name:        "retry count increments",
			headers:     amqp091.Table{"x-retries": int64(4)},
			cause:       errors.New("llm down"),
			wantKey:     "ingest_queue_retry",
			wantRetries: int32(5),
			wantAcks:    1,
		},
		{
			name:        "exhausted retries go to dlq",
			headers:     amqp091.Table{"x-retries": int32(MaxRetries)},
			cause:       errors.New("llm down"),
			wantKey:     "ingest_queue_dlq",
			wantRetries: int32(MaxRetries),
			wantAcks:    1,
		},
		{
			name:        "invalid message goes to dlq",
			cause:       ErrInvalidMessage,
			wantKey:     "ingest_queue_dlq",
			wantRetries: nil,
			wantAcks:    1,
		},
		{
			name:       "publish failure requeues",
			cause:      errors.New("llm down"),
			publishErr: errors.New("closed"),
			wantNacks:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{publishErr: tt.publishErr}
			ack := &fakeAck{}
			msg := amqp091.Delivery{Acknowledger: ack, Headers: tt.headers, Body: []byte("body")}

			HandleProcessingError(context.Background(), ch, msg, IngestQueue, tt.cause)

			if ack.acks != tt.wantAcks || ack.nacks != tt.wantNacks {
				t.Fatalf("acks = %d, nacks = %d, want %d, %d", ack.acks, ack.nacks, tt.wantAcks, tt.wantNacks)
			}
			if tt.publishErr != nil {
				if !ack.requeued {
					t.Fatalf("nack should requeue")
				}
				return
			}
			if len(ch.published) != 1 {
				t.Fatalf("published %d messages, want 1", len(ch.published))
			}
			p := ch.published[0]
			if p.key != tt.wantKey || string(p.msg.Body) != "body" {
				t.Fatalf("published to %s, want %s", p.key, tt.wantKey)
			}
			if got := p.msg.Headers["x-retries"]; got != tt.wantRetries {
				t.Fatalf("x-retries = %v (%T), want %v", got, got, tt.wantRetries)
			}
		})
	}
}

func TestProcessIngestMessage(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		fetcher   TextFetcher
		ingestErr error
		wantErr   error
		anyErr    bool
		wantCall  *ingestCall
	}{
		{
			name:     "inline text",
			body:     `{"source":"bio.txt","text":"Obama was born in Hawaii.","metadata":{"lang":"en"}}`,
			wantCall: &ingestCall{source: "bio.txt", text: "Obama was born in Hawaii.", metadata: map[string]string{"lang": "en"}},
		},
		{
			name:     "text from storage",
			body:     `{"document_key":"docs/bio.txt"}`,
			fetcher:  fakeFetcher{"docs/bio.txt": "Obama was born in Hawaii."},
			wantCall: &ingestCall{source: "docs/bio.txt", text: "Obama was born in Hawaii."},
		},
		{
			name:    "broken json",
			body:    `{"text":`,
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "no text and no key",
			body:    `{"source":"bio.txt","text":"  "}`,
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "key without storage",
			body:    `{"document_key":"docs/bio.txt"}`,
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "missing object",
			body:    `{"document_key":"docs/missing.txt"}`,
			fetcher: fakeFetcher{},
			anyErr:  true,
		},
		{
			name:      "ingest failure",
			body:      `{"text":"Obama was born in Hawaii."}`,
			ingestErr: errors.New("store down"),
			anyErr:    true,
			wantCall:  &ingestCall{text: "Obama was born in Hawaii."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingester := &fakeIngester{err: tt.ingestErr}
			p := NewProcessor(ingester, tt.fetcher)

			err := p.ProcessIngestMessage(context.Background(), []byte(tt.body))
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ProcessIngestMessage() error = %v, want %v", err, tt.wantErr)
				}
			case tt.anyErr:
				if err == nil {
					t.Fatalf("ProcessIngestMessage() error = nil")
				}
				if errors.Is(err, ErrInvalidMessage) {
					t.Fatalf("ProcessIngestMessage() error = %v should be retryable", err)
				}
			default:
				if err != nil {
					t.Fatalf("ProcessIngestMessage() error = %v", err)
				}
			}

			if tt.wantCall == nil {
				if len(ingester.calls) != 0 {
					t.Fatalf("Ingest called %d times, want 0", len(ingester.calls))
				}
				return
			}
			if len(ingester.calls) != 1 || !reflect.DeepEqual(ingester.calls[0], *tt.wantCall) {
				t.Fatalf("Ingest calls = %+v, want %+v", ingester.calls, *tt.wantCall)
			}
		})
	}
}

type fakeMetrics struct {
	resets int
}

func (m *fakeMetrics) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{Requests: 2, TotalTokens: 40} }
func (m *fakeMetrics) ResetMetrics()               { m.resets++ }

func TestWorkerRun(t *testing.T) {
	deliveries := make(chan amqp091.Delivery, 2)
	okAck, badAck := &fakeAck{}, &fakeAck{}
	deliveries <- amqp091.Delivery{Acknowledger: okAck, Body: []byte(`{"source":"a","text":"Alex moved to Berlin."}`)}
	deliveries <- amqp091.Delivery{Acknowledger: badAck, Body: []byte(`not json`)}
	close(deliveries)

	ch := &fakeChannel{deliveries: deliveries}
	ingester := &fakeIngester{}
	metrics := &fakeMetrics{}
	w := NewWorker(ch, NewProcessor(ingester, nil), metrics)

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if okAck.acks != 1 || len(ingester.calls) != 1 {
		t.Fatalf("valid message: acks = %d, ingests = %d", okAck.acks, len(ingester.calls))
	}
	if badAck.acks != 1 || len(ch.published) != 1 || ch.published[0].key != "ingest_queue_dlq" {
		t.Fatalf("invalid message: acks = %d, published = %+v", badAck.acks, ch.published)
	}
	if metrics.resets != 2 {
		t.Fatalf("ResetMetrics() called %d times, want 2", metrics.resets)
	}
}
