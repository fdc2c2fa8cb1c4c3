package ollama

import (
	"net/http"
	"net/url"
	"time"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

const defaultDimensions = 4096

// GraphOllamaClient implements the ai.GraphAIClient interface using Ollama as the backend.
// It supports text generation and embeddings via locally-hosted models.
type GraphOllamaClient struct {
	embeddingModel  string
	summaryModel    string
	extractionModel string
	embeddingDim    int

	timeout   time.Duration
	reqLock   *semaphore.Weighted
	tokenizer ai.Tokenizer

	metrics ai.MetricsRecorder

	Client *api.Client
}

// NewGraphOllamaClientParams contains configuration options for creating a new GraphOllamaClient.
type NewGraphOllamaClientParams struct {
	EmbeddingModel  string
	SummaryModel    string
	ExtractionModel string
	EmbeddingDim    int

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
	Timeout               time.Duration
	// Tokenizer sizes num_ctx for long prompts. Defaults to a word count.
	Tokenizer ai.Tokenizer
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if v == "" || r.Header.Get(k) != "" {
			continue
		}
		r.Header.Set(k, v)
	}
	return t.rt.RoundTrip(r)
}

// NewGraphOllamaClient creates a new Ollama-based AI client with the specified configuration.
// It connects to the Ollama server at the given BaseURL (or the default if empty)
// and uses the configured models for different AI operations.
func NewGraphOllamaClient(
	params NewGraphOllamaClientParams,
) (*GraphOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}
	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 4
	}
	if params.Timeout <= 0 {
		params.Timeout = 10 * time.Minute
	}
	if params.EmbeddingDim <= 0 {
		params.EmbeddingDim = defaultDimensions
	}
	if params.ExtractionModel == "" {
		params.ExtractionModel = params.SummaryModel
	}
	if params.Tokenizer == nil {
		params.Tokenizer = ai.WordTokenizer{}
	}

	authorization := ""
	if params.ApiKey != "" {
		authorization = "Bearer " + params.ApiKey
	}
	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": authorization,
			},
			rt: http.DefaultTransport,
		},
	}

	return &GraphOllamaClient{
		embeddingModel:  params.EmbeddingModel,
		summaryModel:    params.SummaryModel,
		extractionModel: params.ExtractionModel,
		embeddingDim:    params.EmbeddingDim,

		timeout:   params.Timeout,
		reqLock:   semaphore.NewWeighted(params.MaxConcurrentRequests),
		tokenizer: params.Tokenizer,

		Client: api.NewClient(u, httpClient),
	}, nil
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (c *GraphOllamaClient) ResetMetrics() {
	c.metrics.Reset()
}

// GetMetrics returns the accumulated token usage and timing metrics since the last reset.
func (c *GraphOllamaClient) GetMetrics() ai.ModelMetrics {
	return c.metrics.Snapshot()
}
