package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"notesim/internal/domain"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// OpenAIEmbedder talks to any OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client    *openai.Client
	apiKey    string
	model     string
	baseURL   string
	dimension int
	maxChars  int
}

type Options struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	// MaxChars truncates every input before it is sent. Zero disables truncation.
	MaxChars int
	// Timeout bounds a single request. Zero keeps the transport default.
	Timeout time.Duration
}

// NewOpenAIEmbedder builds an embedder. A missing credential is not an error
// here; every embedding call fails with AuthError instead, so that commands
// that never embed still work without a key.
func NewOpenAIEmbedder(opts Options) *OpenAIEmbedder {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = baseURL
	httpClient := &http.Client{}
	if opts.Timeout > 0 {
		httpClient.Timeout = opts.Timeout
	}
	cfg.HTTPClient = httpClient

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(cfg),
		apiKey:    strings.TrimSpace(opts.APIKey),
		model:     opts.Model,
		baseURL:   baseURL,
		dimension: opts.Dimension,
		maxChars:  opts.MaxChars,
	}
}

func (e *OpenAIEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if e.apiKey == "" {
		return nil, &domain.AuthError{Reason: "no API key configured"}
	}

	input := Truncate(text, e.maxChars)
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      input,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimension,
	})
	if err != nil {
		return nil, providerError(err)
	}
	if len(resp.Data) == 0 {
		return nil, &domain.ProviderError{Message: "response contains no embedding data"}
	}
	return resp.Data[0].Embedding, nil
}

func (e *OpenAIEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if e.apiKey == "" {
		return nil, &domain.AuthError{Reason: "no API key configured"}
	}

	results := make([][]float32, len(texts))
	var inputs []string
	var slots []int
	for i, text := range texts {
		input := Truncate(text, e.maxChars)
		if strings.TrimSpace(input) == "" {
			continue
		}
		inputs = append(inputs, input)
		slots = append(slots, i)
	}
	if len(inputs) == 0 {
		return results, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      inputs,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimension,
	})
	if err != nil {
		return nil, providerError(err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, &domain.ProviderError{
			Message: fmt.Sprintf("embedding count mismatch: sent %d, received %d", len(inputs), len(resp.Data)),
		}
	}

	for i, item := range resp.Data {
		results[slots[i]] = item.Embedding
	}
	return results, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

func (e *OpenAIEmbedder) BaseURL() string {
	return e.baseURL
}

// providerError maps go-openai failures onto the domain error taxonomy.
func providerError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := strings.TrimSpace(string(reqErr.Body))
		if body == "" && reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &domain.ProviderError{StatusCode: reqErr.HTTPStatusCode, Body: body}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.ProviderError{Message: err.Error()}
}

// Truncate cuts text to at most maxChars characters. Zero or negative means no limit.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == maxChars {
			return text[:i]
		}
		count++
	}
	return text
}
