package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

const defaultCallTimeout = 120 * time.Second

type Options struct {
	// CallTimeout bounds one model call including retries.
	CallTimeout time.Duration
	Executor    *resilience.Executor
	HTTPClient  *http.Client
}

// Client talks to one Ollama model. The primary extraction model and the hint
// model are separate clients so each can be configured or left out.
type Client struct {
	baseURL     string
	model       string
	callTimeout time.Duration
	httpClient  *http.Client
	executor    *resilience.Executor
}

func New(baseURL, model string, opts Options) *Client {
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       strings.TrimSpace(model),
		callTimeout: timeout,
		httpClient:  httpClient,
		executor:    opts.Executor,
	}
}

func (c *Client) ModelName() string { return c.model }

// GenerateJSON asks the model for a JSON-formatted completion and returns the
// raw response text. An empty model name yields domain.ErrNotConfigured.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	if c.model == "" || c.baseURL == "" {
		return "", domain.WrapError(domain.ErrNotConfigured, "ollama generate", errors.New("model is not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0.1,
		},
	}
	out, err := resilience.Call(ctx, c.executor, "ollama.generate."+c.model, func(ctx context.Context) (string, error) {
		var response struct {
			Response string `json:"response"`
		}
		if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
			return "", err
		}
		return strings.TrimSpace(response.Response), nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return "", resilience.WrapTemporary("ollama generate", err, resilience.ClassifyHTTP)
	}
	return out, nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.client.model == "" {
		return nil, domain.WrapError(domain.ErrNotConfigured, "ollama embed", errors.New("embedding model is not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, e.client.callTimeout)
	defer cancel()

	request := map[string]any{
		"model": e.client.model,
		"input": texts,
	}
	vectors, err := resilience.Call(ctx, e.client.executor, "ollama.embed", func(ctx context.Context) ([][]float32, error) {
		var response struct {
			Embeddings [][]float32 `json:"embeddings"`
		}
		if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
			return nil, err
		}
		return response.Embeddings, nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, resilience.WrapTemporary("ollama embed", err, resilience.ClassifyHTTP)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("ollama embed returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}
