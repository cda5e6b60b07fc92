package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/embedding"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

// DefaultEmbedContentRunes 生成内容向量时截取的最大字符数
const DefaultEmbedContentRunes = 1000

// EmbeddingEnricher 为记录补充内容、摘要与主题向量
// 只写入向量字段，不改变记录的其他内容
type EmbeddingEnricher struct {
	processor    *embedding.BatchProcessor
	contentRunes int
	logger       *logrus.Logger
}

// NewEmbeddingEnricher 创建向量补充阶段
func NewEmbeddingEnricher(processor *embedding.BatchProcessor, contentRunes int, logger *logrus.Logger) *EmbeddingEnricher {
	if contentRunes <= 0 {
		contentRunes = DefaultEmbedContentRunes
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &EmbeddingEnricher{processor: processor, contentRunes: contentRunes, logger: logger}
}

// Enrich 原地填充 records 的向量字段
// 空白的摘要或主题对应的向量保持为空
func (e *EmbeddingEnricher) Enrich(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	texts := make([]string, 0, 3*n)
	for _, rec := range records {
		texts = append(texts, truncateRunes(rec.Content, e.contentRunes))
	}
	for _, rec := range records {
		texts = append(texts, rec.Summary)
	}
	for _, rec := range records {
		texts = append(texts, rec.TopicName)
	}

	vectors, err := e.processor.Process(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed records: %w", err)
	}

	for i := range records {
		records[i].ContentEmbedding = vectors[i]
		records[i].SummaryEmbedding = vectors[n+i]
		records[i].TopicEmbedding = vectors[2*n+i]
	}

	e.logger.WithFields(logrus.Fields{
		"records": n,
		"texts":   len(texts),
	}).Info("Records embedded")
	return nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
