package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/docassist/backend/pkg/circuitbreaker"
	"github.com/docassist/backend/pkg/errs"
	"github.com/docassist/backend/pkg/logger"
	"github.com/docassist/backend/pkg/retry"
)

const answerSystemPrompt = `You are a document assistant. Answer the user's question using ONLY the provided document excerpts.
If the excerpts do not contain the answer, say so plainly.
Be concise and factual.`

// Client wraps the OpenAI API for embeddings and answer generation. The
// completion model is passed per call because the active model is an admin
// setting resolved fresh on every query.
type Client struct {
	client         *openai.Client
	embeddingModel string
	temperature    float32
	maxTokens      int
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewClient(apiKey, embeddingModel string, temperature float32, maxTokens int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         client,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.embeddingModel),
				},
			)
			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)

			return nil
		})
	})

	if err != nil {
		return nil, errs.External("embedding", err)
	}

	return embedding, nil
}

// GenerateAnswer produces an answer to query grounded on the retrieved
// excerpts, using the given completion model.
func (c *Client) GenerateAnswer(ctx context.Context, model, query string, excerpts []string) (string, error) {
	var contextBlock strings.Builder
	for i, excerpt := range excerpts {
		contextBlock.WriteString(fmt.Sprintf("[Excerpt %d]\n%s\n\n", i+1, excerpt))
	}

	userPrompt := fmt.Sprintf("Document excerpts:\n%s\nQuestion: %s", contextBlock.String(), query)

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: answerSystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: userPrompt,
		},
	}

	var answer string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       model,
					Messages:    messages,
					Temperature: c.temperature,
					MaxTokens:   c.maxTokens,
				},
			)
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			logger.Debug("Answer generated",
				zap.String("model", model),
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			answer = resp.Choices[0].Message.Content
			return nil
		})
	})

	if err != nil {
		return "", errs.External("completion", err)
	}

	return answer, nil
}
