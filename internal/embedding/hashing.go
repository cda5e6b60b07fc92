package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashClient 本地特征哈希嵌入，无需网络，结果确定
// 词与相邻词对按 FNV-1a 散列到固定维度，最后做 L2 归一化
type HashClient struct {
	dim   int
	batch int
}

// NewHashClient 创建特征哈希客户端
func NewHashClient(cfg Config) (Client, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("hash embedding requires positive dimensions, got %d", cfg.Dimensions)
	}
	return &HashClient{dim: cfg.Dimensions, batch: cfg.BatchSize}, nil
}

// Embed 生成单条文本的向量
func (c *HashClient) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return nil, ErrEmptyText
	}

	vec := make([]float32, c.dim)
	for i, tok := range tokens {
		c.add(vec, tok, 1)
		if i > 0 {
			c.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (c *HashClient) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(c.dim))
	// 最高位决定符号
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// EmbedBatch 逐条生成向量
func (c *HashClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.batch > 0 && len(texts) > c.batch {
		return nil, ErrBatchTooLarge
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := c.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// Name 返回模型名称
func (c *HashClient) Name() string {
	return fmt.Sprintf("hash-%d", c.dim)
}

// Dimension 返回向量维度
func (c *HashClient) Dimension() int {
	return c.dim
}

func init() {
	RegisterClient("hash", NewHashClient)
}
