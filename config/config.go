package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/extract"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/logging"
)

// Config 应用程序配置结构体
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Output   OutputConfig   `mapstructure:"output"`
	Embed    EmbedConfig    `mapstructure:"embed"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      logging.Config `mapstructure:"log"`
}

// InputConfig 输入文件
type InputConfig struct {
	Book string `mapstructure:"book"` // 书籍文本(.txt/.md/.pdf)
	TOC  string `mapstructure:"toc"`  // 章节表文件
}

// PipelineConfig 流水线参数
type PipelineConfig struct {
	BookTitle             string                  `mapstructure:"book_title" validate:"required"`
	IDPrefix              string                  `mapstructure:"id_prefix" validate:"required,alphanum"`
	ChunkCount            int                     `mapstructure:"chunk_count" validate:"gte=1"`
	WindowFraction        float64                 `mapstructure:"window_fraction" validate:"gt=0,lte=0.5"`
	HeadingThreshold      float64                 `mapstructure:"heading_threshold" validate:"gte=0,lte=1"`
	CleanHeadingThreshold float64                 `mapstructure:"clean_heading_threshold" validate:"gte=0,lte=1"`
	LabelHeadingThreshold float64                 `mapstructure:"label_heading_threshold" validate:"gte=0,lte=1"`
	MaxSummaryChars       int                     `mapstructure:"max_summary_chars" validate:"gte=1"`
	MaxSentences          int                     `mapstructure:"max_sentences" validate:"gte=0"`
	MicroChunks           bool                    `mapstructure:"micro_chunks"`
	MicroChunkSize        int                     `mapstructure:"micro_chunk_size" validate:"gte=1"`
	MicroWindowFraction   float64                 `mapstructure:"micro_window_fraction" validate:"gt=0,lte=0.5"`
	Tables                bool                    `mapstructure:"tables"`
	Categories            []extract.CategoryRange `mapstructure:"categories" validate:"dive"` // 为空时使用内置分类表
}

// OutputConfig 输出配置
type OutputConfig struct {
	Dir           string   `mapstructure:"dir" validate:"required"`
	Formats       []string `mapstructure:"formats" validate:"min=1,dive,oneof=csv json xlsx"`
	SchemaDialect string   `mapstructure:"schema_dialect" validate:"oneof=sqlite postgres"`
	Report        bool     `mapstructure:"report"` // 是否写出 report.json
}

// EmbedConfig 向量嵌入配置
type EmbedConfig struct {
	Enable       bool          `mapstructure:"enable"`
	Provider     string        `mapstructure:"provider" validate:"omitempty,oneof=openai service hash"`
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url" validate:"omitempty,url"`
	Dimensions   int           `mapstructure:"dimensions" validate:"gte=0"`
	BatchSize    int           `mapstructure:"batch_size" validate:"gte=1"`
	Workers      int           `mapstructure:"workers" validate:"gte=1"`
	ContentRunes int           `mapstructure:"content_runes" validate:"gte=1"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
}

// CacheConfig 向量缓存配置
type CacheConfig struct {
	Enable    bool          `mapstructure:"enable"`
	Type      string        `mapstructure:"type" validate:"oneof=memory redis"`
	Address   string        `mapstructure:"address" validate:"required_if=Type redis"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db" validate:"gte=0"`
	Namespace string        `mapstructure:"namespace"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig 导入数据库配置
type DatabaseConfig struct {
	Enable bool   `mapstructure:"enable"`
	Type   string `mapstructure:"type" validate:"oneof=sqlite"`
	DSN    string `mapstructure:"dsn" validate:"required_if=Enable true"`
}

// StorageConfig 产物发布配置
type StorageConfig struct {
	Enable    bool   `mapstructure:"enable"`
	Type      string `mapstructure:"type" validate:"oneof=local minio"` // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`                              // 本地存储路径
	Bucket    string `mapstructure:"bucket"`                            // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"`                          // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// Load 从文件和环境变量加载配置
// configPath 为空时在当前目录和 ./config 下查找 config.yaml，找不到则只使用默认值
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 支持环境变量覆盖，如 OUTPUT_DIR、EMBED_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	processEnvironmentVariables(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// processEnvironmentVariables 展开凭据字段中的 ${VAR} 引用
func processEnvironmentVariables(cfg *Config) {
	for _, field := range []*string{
		&cfg.Embed.APIKey,
		&cfg.Cache.Password,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
	} {
		*field = expandEnv(*field)
	}
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		if val := os.Getenv(s[2 : len(s)-1]); val != "" {
			return val
		}
	}
	return s
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	return v
}

// Validate 校验配置
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s (%s)", configKey(fe.Namespace()), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Storage.Enable && cfg.Storage.Type == "minio" && (cfg.Storage.Endpoint == "" || cfg.Storage.Bucket == "") {
		return errors.New("invalid config: storage.endpoint and storage.bucket are required for minio")
	}
	if cfg.Storage.Enable && cfg.Storage.Type == "local" && cfg.Storage.Path == "" {
		return errors.New("invalid config: storage.path is required for local storage")
	}
	return nil
}

// configKey 将 Config.pipeline.chunk_count 形式的命名空间转换为配置键
func configKey(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 输入
	v.SetDefault("input.book", "")
	v.SetDefault("input.toc", "")

	// 流水线默认配置
	v.SetDefault("pipeline.book_title", "Nelson Textbook of Pediatrics")
	v.SetDefault("pipeline.id_prefix", "NELSON")
	v.SetDefault("pipeline.chunk_count", 3)
	v.SetDefault("pipeline.window_fraction", 0.25)
	v.SetDefault("pipeline.heading_threshold", 1.0)
	v.SetDefault("pipeline.clean_heading_threshold", 0.5)
	v.SetDefault("pipeline.label_heading_threshold", 0.5)
	v.SetDefault("pipeline.max_summary_chars", 600)
	v.SetDefault("pipeline.max_sentences", 5)
	v.SetDefault("pipeline.micro_chunks", true)
	v.SetDefault("pipeline.micro_chunk_size", 1000)
	v.SetDefault("pipeline.micro_window_fraction", 0.2)
	v.SetDefault("pipeline.tables", true)

	// 输出默认配置
	v.SetDefault("output.dir", "./output")
	v.SetDefault("output.formats", []string{"csv", "json"})
	v.SetDefault("output.schema_dialect", "sqlite")
	v.SetDefault("output.report", true)

	// Embedding默认配置
	v.SetDefault("embed.enable", false)
	v.SetDefault("embed.provider", "hash")
	v.SetDefault("embed.model", "")
	v.SetDefault("embed.api_key", "")
	v.SetDefault("embed.base_url", "")
	v.SetDefault("embed.dimensions", 384)
	v.SetDefault("embed.batch_size", 32)
	v.SetDefault("embed.workers", 4)
	v.SetDefault("embed.content_runes", 1000)
	v.SetDefault("embed.timeout", "30s")
	v.SetDefault("embed.max_retries", 3)
	v.SetDefault("embed.retry_delay", "500ms")

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.namespace", "emb")
	v.SetDefault("cache.ttl", "168h")

	// 数据库默认配置
	v.SetDefault("database.enable", false)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "output/dataset.db")

	// 存储默认配置
	v.SetDefault("storage.enable", false)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./artifacts")
	v.SetDefault("storage.bucket", "datasets")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)

	// 日志默认配置
	def := logging.DefaultConfig()
	v.SetDefault("log.level", def.Level)
	v.SetDefault("log.format", def.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", def.MaxSizeMB)
	v.SetDefault("log.max_backups", def.MaxBackups)
	v.SetDefault("log.max_age_days", def.MaxAgeDays)
	v.SetDefault("log.compress", false)
}
