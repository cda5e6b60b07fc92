package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ServiceClient 调用独立部署的句向量服务
// 请求 POST {BaseURL}/embed {"model": ..., "texts": [...]}，响应 {"embeddings": [[...]]}
type ServiceClient struct {
	http   *http.Client
	config Config
}

// APIError 嵌入服务返回的错误
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("embedding service error (status code: %d): %s", e.StatusCode, e.Detail)
}

type serviceRequest struct {
	Model string   `json:"model,omitempty"`
	Texts []string `json:"texts"`
}

type serviceResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Detail     string      `json:"detail,omitempty"`
}

// NewServiceClient 创建句向量服务客户端
func NewServiceClient(config Config) (Client, error) {
	if config.BaseURL == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, "embedding service base URL is required")
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &ServiceClient{
		http: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		config: config,
	}, nil
}

// Embed 生成单条文本的向量
func (c *ServiceClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量生成向量
func (c *ServiceClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if c.config.BatchSize > 0 && len(texts) > c.config.BatchSize {
		return nil, ErrBatchTooLarge
	}

	body, err := json.Marshal(serviceRequest{Model: c.config.Model, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request data: %w", err)
	}

	var resp serviceResponse
	if err := c.postWithRetry(ctx, c.config.BaseURL+"/embed", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeBadResponse,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)))
	}
	return resp.Embeddings, nil
}

// postWithRetry 网络错误、429 和 5xx 时重试，每次重试重建请求
func (c *ServiceClient) postWithRetry(ctx context.Context, url string, body []byte, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("request context canceled: %w", ctx.Err())
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		retry, err := c.post(ctx, url, body, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}
	return fmt.Errorf("embedding request failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *ServiceClient) post(ctx context.Context, url string, body []byte, result interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: string(data)}
		var errResp serviceResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Detail != "" {
			apiErr.Detail = errResp.Detail
		}
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retry, apiErr
	}

	if err := json.Unmarshal(data, result); err != nil {
		return false, fmt.Errorf("failed to unmarshal response JSON: %w", err)
	}
	return false, nil
}

// Name 返回模型名称
func (c *ServiceClient) Name() string {
	if c.config.Model == "" {
		return "service"
	}
	return c.config.Model
}

// Dimension 返回配置的向量维度
func (c *ServiceClient) Dimension() int {
	return c.config.Dimensions
}

func init() {
	RegisterClient("service", NewServiceClient)
}
