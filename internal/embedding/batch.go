package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gammazero/workerpool"
)

// BatchProcessor 将大量文本分批并行提交给嵌入客户端
type BatchProcessor struct {
	client     Client
	batchSize  int
	maxWorkers int
}

// NewBatchProcessor 创建批处理器
func NewBatchProcessor(client Client, batchSize int, maxWorkers int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 16
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &BatchProcessor{
		client:     client,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
	}
}

// Process 返回与 texts 一一对应的向量，空白文本对应 nil
func (p *BatchProcessor) Process(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	// 只提交非空文本，记录其原始位置
	var positions []int
	var inputs []string
	for i, text := range texts {
		if strings.TrimSpace(text) != "" {
			positions = append(positions, i)
			inputs = append(inputs, text)
		}
	}
	if len(inputs) == 0 {
		return results, nil
	}

	batches := splitIntoBatches(len(inputs), p.batchSize)

	wp := workerpool.New(p.maxWorkers)
	var mu sync.Mutex
	var firstErr error

	for i, b := range batches {
		i, b := i, b
		wp.Submit(func() {
			if ctx.Err() != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			}

			vectors, err := p.client.EmbedBatch(ctx, inputs[b.start:b.end])
			if err == nil && len(vectors) != b.end-b.start {
				err = NewEmbeddingError(ErrCodeBadResponse,
					fmt.Sprintf("expected %d vectors, got %d", b.end-b.start, len(vectors)))
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("batch %d processing error: %w", i, err)
				}
				return
			}
			for j, vec := range vectors {
				results[positions[b.start+j]] = vec
			}
		})
	}
	wp.StopWait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

type batchRange struct {
	start, end int
}

// splitIntoBatches 将 n 个元素划分为大小不超过 size 的连续批次
func splitIntoBatches(n, size int) []batchRange {
	if size <= 0 {
		size = 1
	}
	batches := make([]batchRange, 0, (n+size-1)/size)
	for i := 0; i < n; i += size {
		batches = append(batches, batchRange{start: i, end: min(i+size, n)})
	}
	return batches
}
