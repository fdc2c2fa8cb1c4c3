package openai

import (
	"time"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// GraphOpenAIClient is a client for interacting with AI models used in the
// graph RAG system. It manages separate OpenAI clients for embeddings
// and chat/completion tasks.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	embeddingModel  string
	summaryModel    string
	extractionModel string
	embeddingDim    int

	chatURL string

	timeout       time.Duration
	reqLock       *semaphore.Weighted
	embeddingLock *semaphore.Weighted

	metrics ai.MetricsRecorder

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for
// creating a new GraphOpenAIClient.
//
// SummaryModel is the default for plain completions, ExtractionModel for
// schema bound completions. EmbeddingDim truncates or pads embeddings to a
// fixed size. MaxConcurrentRequests bounds in-flight requests per endpoint.
type NewGraphOpenAIClientParams struct {
	EmbeddingModel  string
	SummaryModel    string
	ExtractionModel string
	EmbeddingDim    int

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

// NewGraphOpenAIClient creates and returns a new GraphOpenAIClient configured
// with the provided parameters.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		EmbeddingModel:  "text-embedding-3-small",
//		SummaryModel:    "gpt-4o-mini",
//		ExtractionModel: "gpt-4o-mini",
//		EmbeddingKey:    os.Getenv("OPENAI_API_KEY"),
//		ChatKey:         os.Getenv("OPENAI_API_KEY"),
//	})
func NewGraphOpenAIClient(
	params NewGraphOpenAIClientParams,
) *GraphOpenAIClient {
	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 8
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

	return &GraphOpenAIClient{
		embeddingModel:  params.EmbeddingModel,
		summaryModel:    params.SummaryModel,
		extractionModel: params.ExtractionModel,
		embeddingDim:    params.EmbeddingDim,

		chatURL: params.ChatURL,

		timeout:       params.Timeout,
		reqLock:       semaphore.NewWeighted(params.MaxConcurrentRequests),
		embeddingLock: semaphore.NewWeighted(params.MaxConcurrentRequests),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

// ResetMetrics clears all accumulated token and timing metrics.
func (c *GraphOpenAIClient) ResetMetrics() {
	c.metrics.Reset()
}

// GetMetrics returns the accumulated metrics since the last reset.
func (c *GraphOpenAIClient) GetMetrics() ai.ModelMetrics {
	return c.metrics.Snapshot()
}
