package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/docsage/backend/internal/intent"
	"github.com/docsage/backend/internal/metrics"
	"github.com/docsage/backend/internal/stream"
	"github.com/docsage/backend/pkg/circuitbreaker"
	"github.com/docsage/backend/pkg/logger"
	"github.com/docsage/backend/pkg/utils"
)

const embeddingCacheTTL = 24 * time.Hour

// EmbeddingCache is consulted before calling the embedding endpoint.
// Errors are treated as misses.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	cb             *circuitbreaker.CircuitBreaker
	cache          EmbeddingCache
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

// NewClient builds the process-wide model service handle. cache may be nil.
func NewClient(apiKey, model, embeddingModel string, temperature float32, maxTokens int, cache EmbeddingCache) *Client {
	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         openai.NewClient(apiKey),
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		cb:             cb,
		cache:          cache,
	}
}

// Embed returns the embedding vector for text, consulting the cache first.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	textHash := utils.HashString(text)

	if c.cache != nil {
		if cached, ok, err := c.cache.GetEmbedding(ctx, textHash); err == nil && ok {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			return cached, nil
		} else if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(c.embeddingModel),
		})
		if err != nil {
			return fmt.Errorf("failed to generate embedding: %w", err)
		}

		embedding = make([]float32, len(resp.Data[0].Embedding))
		copy(embedding, resp.Data[0].Embedding)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetEmbedding(ctx, textHash, embedding, embeddingCacheTTL); err != nil {
			logger.Warn("Embedding cache store failed", zap.Error(err))
		}
	}

	return embedding, nil
}

// Complete runs a non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	var content string

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Temperature: temperature,
			MaxTokens:   maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("completion returned no choices")
		}

		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}

	return content, nil
}

// Stream adapts the OpenAI delta stream to the pipeline's token stream.
type Stream struct {
	inner *openai.ChatCompletionStream
}

// Recv returns the next text delta, io.EOF after the final one.
func (s *Stream) Recv() (string, error) {
	resp, err := s.inner.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *Stream) Close() {
	s.inner.Close()
}

// GenerateStream starts a streaming completion. The caller owns the
// returned stream and must Close it.
func (c *Client) GenerateStream(ctx context.Context, systemPrompt, userPrompt string) (stream.TokenStream, error) {
	var inner *openai.ChatCompletionStream

	err := c.cb.Execute(ctx, func() error {
		s, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
			Stream:      true,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to start completion stream: %w", err)
		}
		inner = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Stream{inner: inner}, nil
}

const intentSystemPrompt = `You classify short user messages for a document assistant.
If the message asks to manage files or folders, label it with exactly one of:
create_file, create_folder, rename_file, rename_folder, move_file, delete_file, delete_folder.
Anything else gets the label "none".

Return JSON only:
{"intent": "create_folder", "confidence": 0.9}`

// DetectIntent implements the secondary intent classifier consumed by the
// router's file-action fallback.
func (c *Client) DetectIntent(ctx context.Context, text string) (intent.Guess, error) {
	content, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: intentSystemPrompt,
		UserPrompt:   text,
		Temperature:  0.1,
		MaxTokens:    100,
	})
	if err != nil {
		return intent.Guess{}, fmt.Errorf("intent classification failed: %w", err)
	}

	guess, err := parseIntentGuess(content)
	if err != nil {
		logger.Warn("Unparseable intent classification",
			zap.String("content", content),
			zap.Error(err),
		)
		return intent.Guess{}, nil
	}

	return guess, nil
}

func parseIntentGuess(content string) (intent.Guess, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return intent.Guess{}, fmt.Errorf("no JSON object in response")
	}

	var parsed struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return intent.Guess{}, fmt.Errorf("failed to parse intent JSON: %w", err)
	}

	return intent.Guess{Intent: parsed.Intent, Confidence: parsed.Confidence}, nil
}
