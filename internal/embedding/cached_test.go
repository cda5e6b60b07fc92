package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/cache"
)

// mockClient 基于 testify/mock 的嵌入客户端
type mockClient struct {
	mock.Mock
}

func (m *mockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if v := args.Get(0); v != nil {
		return v.([]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if v := args.Get(0); v != nil {
		return v.([][]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) Name() string   { return "mock-model" }
func (m *mockClient) Dimension() int { return 2 }

func newTestCache(t *testing.T) cache.Cache {
	c, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestCachedClientEmbed(t *testing.T) {
	ctx := context.Background()
	inner := &mockClient{}
	inner.On("Embed", ctx, "fever").Return([]float32{1, 2}, nil).Once()

	client := NewCachedClient(inner, newTestCache(t), nil)

	for i := 0; i < 3; i++ {
		vec, err := client.Embed(ctx, "fever")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2}, vec)
	}
	inner.AssertNumberOfCalls(t, "Embed", 1)
	assert.Equal(t, "mock-model", client.Name())
}

func TestCachedClientBatchOnlyMisses(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	require.NoError(t, c.Set(ctx, cache.Key("mock-model", "rash"), []float32{9, 9}))

	inner := &mockClient{}
	inner.On("EmbedBatch", ctx, []string{"fever", "cough"}).
		Return([][]float32{{1, 1}, {2, 2}}, nil).Once()

	client := NewCachedClient(inner, c, nil)
	vectors, err := client.EmbedBatch(ctx, []string{"fever", "rash", "cough"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {9, 9}, {2, 2}}, vectors)

	// 第二次全部命中
	vectors, err = client.EmbedBatch(ctx, []string{"cough", "fever"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 2}, {1, 1}}, vectors)
	inner.AssertExpectations(t)
}

func TestCachedClientPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	inner := &mockClient{}
	inner.On("Embed", ctx, "fever").Return(nil, errors.New("upstream down"))
	inner.On("EmbedBatch", ctx, []string{"a", "b"}).Return([][]float32{{1}}, nil)

	client := NewCachedClient(inner, newTestCache(t), nil)

	_, err := client.Embed(ctx, "fever")
	assert.EqualError(t, err, "upstream down")

	_, err = client.EmbedBatch(ctx, []string{"a", "b"})
	assert.Error(t, err)
}
