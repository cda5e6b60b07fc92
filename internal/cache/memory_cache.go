package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache 基于go-cache实现的进程内向量缓存
type MemoryCache struct {
	cache     *gocache.Cache
	namespace string
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache(config Config) (Cache, error) {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	cleanup := config.CleanupInterval
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}

	return &MemoryCache{
		cache:     gocache.New(ttl, cleanup),
		namespace: config.Namespace,
	}, nil
}

func (m *MemoryCache) key(k string) string {
	if m.namespace == "" {
		return k
	}
	return m.namespace + ":" + k
}

// Get 获取缓存的向量副本
func (m *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	value, found := m.cache.Get(m.key(key))
	if !found {
		return nil, false, nil
	}
	vec, ok := value.([]float32)
	if !ok {
		return nil, false, nil
	}
	return append([]float32(nil), vec...), true, nil
}

// Set 写入向量副本，使用默认过期时间
func (m *MemoryCache) Set(_ context.Context, key string, vec []float32) error {
	m.cache.SetDefault(m.key(key), append([]float32(nil), vec...))
	return nil
}

// Delete 删除缓存项
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.cache.Delete(m.key(key))
	return nil
}

// Clear 清空命名空间下的条目
func (m *MemoryCache) Clear(_ context.Context) error {
	if m.namespace == "" {
		m.cache.Flush()
		return nil
	}
	prefix := m.namespace + ":"
	for k := range m.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			m.cache.Delete(k)
		}
	}
	return nil
}

// Len 返回当前条目数
func (m *MemoryCache) Len() int {
	return m.cache.ItemCount()
}

func init() {
	RegisterCache("memory", NewMemoryCache)
}
