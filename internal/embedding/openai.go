package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient OpenAI兼容接口的嵌入客户端
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient 创建OpenAI嵌入客户端
func NewOpenAIClient(config Config) (Client, error) {
	if config.APIKey == "" {
		return nil, ErrInvalidAPIKey
	}
	if config.Model == "" {
		config.Model = string(openai.SmallEmbedding3)
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Embed 对单个文本生成嵌入向量
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 对多个文本生成嵌入向量，限流时指数退避重试
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if c.config.BatchSize > 0 && len(texts) > c.config.BatchSize {
		return nil, ErrBatchTooLarge
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ErrEmptyText
		}
	}

	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(c.config.Model),
		Dimensions: c.config.Dimensions,
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.create(ctx, req)
		if err == nil {
			return orderByIndex(resp.Data, len(texts))
		}
		if !isRateLimitError(err) {
			return nil, fmt.Errorf("embedding API error: %w", err)
		}
		if attempt >= c.config.MaxRetries {
			return nil, ErrRateLimited
		}

		wait := time.Duration(1<<attempt) * c.config.RetryDelay
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *OpenAIClient) create(ctx context.Context, req openai.EmbeddingRequest) (openai.EmbeddingResponse, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}
	return c.client.CreateEmbeddings(ctx, req)
}

// orderByIndex 按响应中的 index 还原输入顺序
func orderByIndex(data []openai.Embedding, n int) ([][]float32, error) {
	if len(data) != n {
		return nil, NewEmbeddingError(ErrCodeBadResponse,
			fmt.Sprintf("expected %d embeddings, got %d", n, len(data)))
	}
	out := make([][]float32, n)
	for _, d := range data {
		if d.Index < 0 || d.Index >= n || out[d.Index] != nil {
			return nil, NewEmbeddingError(ErrCodeBadResponse, fmt.Sprintf("unexpected embedding index %d", d.Index))
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// isRateLimitError 检查是否为速率限制错误
func isRateLimitError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "rate limit")
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.config.Model
}

// Dimension 返回配置的向量维度
func (c *OpenAIClient) Dimension() int {
	return c.config.Dimensions
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
}
