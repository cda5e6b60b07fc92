package embedding

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/cache"
)

// CachedClient 在嵌入客户端前加一层向量缓存
// 缓存读写失败只记录日志，不影响结果
type CachedClient struct {
	Client
	cache  cache.Cache
	logger *logrus.Logger
}

// NewCachedClient 创建带缓存的客户端
func NewCachedClient(client Client, c cache.Cache, logger *logrus.Logger) *CachedClient {
	if logger == nil {
		logger = logrus.New()
	}
	return &CachedClient{Client: client, cache: c, logger: logger}
}

// Embed 命中缓存时直接返回
func (c *CachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.Key(c.Name(), text)
	if vec, ok := c.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := c.Client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

// EmbedBatch 只为未命中的文本请求底层客户端
func (c *CachedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		keys[i] = cache.Key(c.Name(), text)
		if vec, ok := c.lookup(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.Client.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, NewEmbeddingError(ErrCodeBadResponse,
			fmt.Sprintf("expected %d vectors, got %d", len(missTexts), len(vectors)))
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		c.store(ctx, keys[i], vectors[j])
	}

	c.logger.WithFields(logrus.Fields{
		"model":  c.Name(),
		"hits":   len(texts) - len(missTexts),
		"misses": len(missTexts),
	}).Debug("Embedding cache lookup")
	return out, nil
}

func (c *CachedClient) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read embedding cache")
		return nil, false
	}
	return vec, found
}

func (c *CachedClient) store(ctx context.Context, key string, vec []float32) {
	if err := c.cache.Set(ctx, key, vec); err != nil {
		c.logger.WithError(err).Warn("Failed to write embedding cache")
	}
}
