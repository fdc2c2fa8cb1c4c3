package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
)

// ErrInvalidMessage is returned for bodies that are not a usable
// IngestMessage. Retrying them cannot succeed.
var ErrInvalidMessage = errors.New("invalid ingest message")

// IngestMessage asks the worker to ingest one document. Either Text or
// DocumentKey (an S3 object key) must be set. Source defaults to the key.
type IngestMessage struct {
	Source      string            `json:"source,omitempty"`
	Text        string            `json:"text,omitempty"`
	DocumentKey string            `json:"document_key,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	EntityTypes []string          `json:"entity_types,omitempty"`
}

// Ingester stores and consolidates one document.
type Ingester interface {
	Ingest(ctx context.Context, source, text string, metadata map[string]string, entityTypes []string) (*common.Graph, error)
}

// TextFetcher loads document text by key.
type TextFetcher interface {
	GetText(ctx context.Context, key string) (string, error)
}

// Processor handles ingest_queue messages.
type Processor struct {
	ingester Ingester
	fetcher  TextFetcher
}

// NewProcessor returns a processor. fetcher may be nil when messages always
// carry their text.
func NewProcessor(ingester Ingester, fetcher TextFetcher) *Processor {
	return &Processor{ingester: ingester, fetcher: fetcher}
}

// ProcessIngestMessage decodes body, loads the text and ingests it.
func (p *Processor) ProcessIngestMessage(ctx context.Context, body []byte) error {
	var data IngestMessage
	if err := json.Unmarshal(body, &data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	text := data.Text
	source := data.Source
	if strings.TrimSpace(text) == "" {
		if data.DocumentKey == "" {
			return fmt.Errorf("%w: neither text nor document_key set", ErrInvalidMessage)
		}
		if p.fetcher == nil {
			return fmt.Errorf("%w: no document storage configured for key %s", ErrInvalidMessage, data.DocumentKey)
		}
		var err error
		text, err = p.fetcher.GetText(ctx, data.DocumentKey)
		if err != nil {
			return err
		}
		if source == "" {
			source = data.DocumentKey
		}
	}

	g, err := p.ingester.Ingest(ctx, source, text, data.Metadata, data.EntityTypes)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", source, err)
	}
	if g == nil {
		logger.Info("[Queue] Nothing extracted", "source", source)
		return nil
	}
	logger.Info("[Queue] Ingested", "source", source, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return nil
}
