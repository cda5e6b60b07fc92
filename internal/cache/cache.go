package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// Cache 嵌入向量缓存接口
type Cache interface {
	Get(ctx context.Context, key string) (vec []float32, found bool, err error)
	Set(ctx context.Context, key string, vec []float32) error
	Delete(ctx context.Context, key string) error
	// Clear 清空本缓存命名空间下的所有条目
	Clear(ctx context.Context) error
}

// Factory 缓存工厂函数类型
type Factory func(config Config) (Cache, error)

var registry = make(map[string]Factory)

// RegisterCache 注册缓存实现
func RegisterCache(name string, factory Factory) {
	registry[name] = factory
}

// NewCache 按类型创建缓存，类型为空时使用内存缓存
func NewCache(config Config) (Cache, error) {
	if config.Type == "" {
		config.Type = "memory"
	}
	factory, ok := registry[config.Type]
	if !ok {
		return nil, fmt.Errorf("unknown cache type: %s", config.Type)
	}
	return factory(config)
}

// Config 缓存配置
type Config struct {
	Type            string        // memory 或 redis
	Addr            string        // Redis地址
	Password        string        // Redis密码
	DB              int           // Redis数据库编号
	Namespace       string        // 键前缀
	TTL             time.Duration // 条目过期时间，0表示不过期
	CleanupInterval time.Duration // 内存缓存清理间隔
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		Namespace:       "emb",
		TTL:             7 * 24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

// Key 由模型名和文本生成定长缓存键
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return model + ":" + hex.EncodeToString(sum[:])
}

// encodeVector 以小端 float32 序列编码向量
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector entry: %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
