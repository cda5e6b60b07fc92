package embedding

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(vec []float32) float64 {
	var s float64
	for _, v := range vec {
		s += float64(v) * float64(v)
	}
	return math.Sqrt(s)
}

func TestHashClient(t *testing.T) {
	client, err := NewClient("hash", WithDimensions(64))
	require.NoError(t, err)
	assert.Equal(t, "hash-64", client.Name())
	assert.Equal(t, 64, client.Dimension())

	ctx := context.Background()
	a, err := client.Embed(ctx, "Kawasaki disease is a vasculitis")
	require.NoError(t, err)
	b, err := client.Embed(ctx, "kawasaki DISEASE is a vasculitis!")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
	// 大小写与标点不影响结果
	assert.Equal(t, a, b)

	c, err := client.Embed(ctx, "iron deficiency anemia")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = client.Embed(ctx, " -- ")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = NewHashClient(Config{Dimensions: 0})
	assert.Error(t, err)
}

func TestHashClientBatch(t *testing.T) {
	client, err := NewHashClient(Config{Dimensions: 16, BatchSize: 2})
	require.NoError(t, err)

	ctx := context.Background()
	vectors, err := client.EmbedBatch(ctx, []string{"fever", "rash"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	single, _ := client.Embed(ctx, "rash")
	assert.Equal(t, single, vectors[1])

	_, err = client.EmbedBatch(ctx, []string{"a", "b", "c"})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient("does-not-exist")
	require.Error(t, err)

	var embErr EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, ErrCodeInvalidRequest, embErr.Code)
}

// countingClient 记录每次批量调用的大小
type countingClient struct {
	calls   atomic.Int32
	failOn  string
	dim     int
	batches chan int
}

func (c *countingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (c *countingClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	if c.batches != nil {
		c.batches <- len(texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if t == c.failOn {
			return nil, errors.New("boom")
		}
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *countingClient) Name() string   { return "counting" }
func (c *countingClient) Dimension() int { return 1 }

func TestBatchProcessor(t *testing.T) {
	client := &countingClient{batches: make(chan int, 10)}
	p := NewBatchProcessor(client, 2, 3)

	texts := []string{"a", "", "bbb", "cc", "   ", "dddd", "eeeee"}
	vectors, err := p.Process(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	assert.Equal(t, []float32{1}, vectors[0])
	assert.Nil(t, vectors[1])
	assert.Equal(t, []float32{3}, vectors[2])
	assert.Equal(t, []float32{2}, vectors[3])
	assert.Nil(t, vectors[4])
	assert.Equal(t, []float32{4}, vectors[5])
	assert.Equal(t, []float32{5}, vectors[6])

	// 5 个非空文本，批大小 2
	assert.Equal(t, int32(3), client.calls.Load())
	close(client.batches)
	for n := range client.batches {
		assert.LessOrEqual(t, n, 2)
	}
}

func TestBatchProcessorErrors(t *testing.T) {
	t.Run("批次失败", func(t *testing.T) {
		p := NewBatchProcessor(&countingClient{failOn: "bad"}, 1, 2)
		_, err := p.Process(context.Background(), []string{"ok", "bad", "fine"})
		assert.Error(t, err)
	})

	t.Run("上下文已取消", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := NewBatchProcessor(&countingClient{}, 1, 1)
		_, err := p.Process(ctx, []string{"a", "b"})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("全部为空", func(t *testing.T) {
		client := &countingClient{}
		p := NewBatchProcessor(client, 4, 2)
		vectors, err := p.Process(context.Background(), []string{"", " "})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{nil, nil}, vectors)
		assert.Equal(t, int32(0), client.calls.Load())
	})
}

func TestSplitIntoBatches(t *testing.T) {
	assert.Equal(t, []batchRange{{0, 2}, {2, 4}, {4, 5}}, splitIntoBatches(5, 2))
	assert.Empty(t, splitIntoBatches(0, 3))
	assert.Len(t, splitIntoBatches(3, 0), 3)
}
