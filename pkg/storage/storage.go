package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// ObjectInfo 产物对象元数据
type ObjectInfo struct {
	Key         string    // 对象键，形如 <run-id>/<file>
	Size        int64     // 大小(字节)
	ContentType string    // MIME类型
	ModTime     time.Time // 最后修改时间
}

// Storage 产物存储接口
// 可以有不同实现(本地目录、MinIO等)，键统一使用 / 分隔
type Storage interface {
	// Put 写入对象，size 未知时传 -1
	Put(ctx context.Context, key string, r io.Reader, size int64) (ObjectInfo, error)

	// Get 读取对象内容
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete 删除对象，对象不存在时不报错
	Delete(ctx context.Context, key string) error

	// List 按前缀列出对象，按键排序
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)
}

// Config 存储配置
type Config struct {
	Type  string // local 或 minio
	Local LocalConfig
	Minio MinioConfig
}

// New 根据配置创建存储实现
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(cfg.Local)
	case "minio":
		return NewMinioStorage(ctx, cfg.Minio)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// ValidateKey 检查对象键：非空、相对路径、不含 .. 段
func ValidateKey(key string) error {
	if key == "" {
		return errors.New("object key cannot be empty")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid object key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("invalid object key %q", key)
		}
	}
	return nil
}

// PublishFiles 将本地文件上传到 prefix/<文件名>
func PublishFiles(ctx context.Context, s Storage, prefix string, files ...string) ([]ObjectInfo, error) {
	infos := make([]ObjectInfo, 0, len(files))
	for _, file := range files {
		info, err := publishFile(ctx, s, path.Join(prefix, filepath.Base(file)), file)
		if err != nil {
			return infos, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func publishFile(ctx context.Context, s Storage, key, file string) (ObjectInfo, error) {
	f, err := os.Open(file)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to stat %s: %w", file, err)
	}

	info, err := s.Put(ctx, key, f, st.Size())
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to publish %s: %w", file, err)
	}
	return info, nil
}

// contentType 根据扩展名判断产物的MIME类型
func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".sql":
		return "application/sql"
	case ".db", ".sqlite":
		return "application/vnd.sqlite3"
	case ".txt", ".log":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
