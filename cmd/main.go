package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	appconfig "github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/config"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/cache"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/database"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/document"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/embedding"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/export"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/extract"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/logging"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/repository"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/services"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/pkg/storage"
)

// 命令行选项，非空时覆盖配置文件
type options struct {
	ConfigFile string // 配置文件路径
	EnvFile    string // .env 文件路径
	Book       string // 书籍文本
	TOC        string // 章节表
	OutDir     string // 输出目录
	Title      string // 书名
	LogLevel   string // 日志级别
	ImportFile string // 导入已有的 CSV/JSON 数据集
	Embed      bool   // 启用向量补充
	Import     bool   // 构建后写入数据库
	Publish    bool   // 构建后发布产物
}

func main() {
	opts := parseFlags()

	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: failed to load %s: %v", opts.EnvFile, err)
	}

	cfg, err := appconfig.Load(opts.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, opts)
	if err := appconfig.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.ImportFile != "" {
		err = runImport(ctx, cfg, opts.ImportFile, logger)
	} else {
		err = run(ctx, cfg, logger)
	}
	if err != nil {
		logger.WithError(err).Error("Run failed")
		os.Exit(1)
	}
}

// parseFlags 解析命令行参数
func parseFlags() options {
	var opts options

	flag.StringVar(&opts.ConfigFile, "config", "", "Config file path (default: ./config.yaml if present)")
	flag.StringVar(&opts.EnvFile, "env", ".env", "Dotenv file loaded before the config")
	flag.StringVar(&opts.Book, "book", "", "Book text file (.txt, .md, .pdf)")
	flag.StringVar(&opts.TOC, "toc", "", "Table of contents file")
	flag.StringVar(&opts.OutDir, "out", "", "Output directory")
	flag.StringVar(&opts.Title, "title", "", "Book title written into every record")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug/info/warn/error)")
	flag.StringVar(&opts.ImportFile, "import", "", "Import an existing dataset (.csv or .json) into the database and exit")
	flag.BoolVar(&opts.Embed, "embed", false, "Generate embeddings for every record")
	flag.BoolVar(&opts.Import, "db", false, "Persist records into the database after the build")
	flag.BoolVar(&opts.Publish, "publish", false, "Upload written outputs to the configured storage")

	flag.Parse()
	return opts
}

// applyFlags 命令行参数优先于配置文件
func applyFlags(cfg *appconfig.Config, opts options) {
	if opts.Book != "" {
		cfg.Input.Book = opts.Book
	}
	if opts.TOC != "" {
		cfg.Input.TOC = opts.TOC
	}
	if opts.OutDir != "" {
		cfg.Output.Dir = opts.OutDir
	}
	if opts.Title != "" {
		cfg.Pipeline.BookTitle = opts.Title
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	cfg.Embed.Enable = cfg.Embed.Enable || opts.Embed
	cfg.Database.Enable = cfg.Database.Enable || opts.Import || opts.ImportFile != ""
	cfg.Storage.Enable = cfg.Storage.Enable || opts.Publish
}

// run 执行完整流水线：加载、构建、写出、导入与发布
func run(ctx context.Context, cfg *appconfig.Config, logger *logrus.Logger) error {
	if cfg.Input.Book == "" || cfg.Input.TOC == "" {
		return errors.New("both a book file and a table of contents are required (-book, -toc)")
	}

	source, err := document.LoadBook(cfg.Input.Book)
	if err != nil {
		return err
	}
	toc, err := document.ParseTOCFile(cfg.Input.TOC)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"book":     cfg.Input.Book,
		"chapters": len(toc),
		"bytes":    len(source),
	}).Info("Input loaded")

	srv, cleanup, err := setupDatasetService(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := srv.Build(ctx, source, toc)
	if err != nil {
		return err
	}

	files, err := writeOutputs(cfg, result, logger)
	if err != nil {
		return err
	}

	if cfg.Database.Enable {
		if err := saveRecords(ctx, cfg, result.Report.RunID, result.Records, logger); err != nil {
			return err
		}
	}

	if cfg.Storage.Enable {
		if err := publish(ctx, cfg, result.Report.RunID, files, logger); err != nil {
			return err
		}
	}

	printReport(os.Stdout, result.Report, files)
	return nil
}

// runImport 读取已写出的数据集文件并写入数据库
func runImport(ctx context.Context, cfg *appconfig.Config, path string, logger *logrus.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	var records []models.Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = export.ReadCSV(f)
	case ".json":
		records, err = export.ReadJSON(f)
	default:
		return fmt.Errorf("unsupported dataset format: %s", filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	runID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return saveRecords(ctx, cfg, runID, records, logger)
}

// setupDatasetService 按配置组装流水线组件
func setupDatasetService(cfg *appconfig.Config, logger *logrus.Logger) (*services.DatasetService, func(), error) {
	p := cfg.Pipeline
	headings := document.NewHeadingMatcher(nil)

	ranges := p.Categories
	if len(ranges) == 0 {
		ranges = extract.DefaultCategoryRanges()
	}
	classifier, err := extract.NewClassifier(ranges)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid category table: %w", err)
	}

	summaryCfg := extract.DefaultSummaryConfig()
	summaryCfg.MaxSentences = p.MaxSentences

	splitter := document.NewChunkSplitter(document.SplitterConfig{
		ChunkCount:          p.ChunkCount,
		WindowFraction:      p.WindowFraction,
		HeadingThreshold:    p.HeadingThreshold,
		MicroChunkSize:      p.MicroChunkSize,
		MicroWindowFraction: p.MicroWindowFraction,
	}, headings)

	dsOpts := []services.DatasetOption{
		services.WithLogger(logger),
		services.WithIDPrefix(p.IDPrefix),
		services.WithMaxSummaryChars(p.MaxSummaryChars),
		services.WithMicroChunks(p.MicroChunks),
		services.WithTables(p.Tables),
		services.WithCleaner(document.NewCleaner(headings, p.CleanHeadingThreshold)),
		services.WithSplitter(splitter),
		services.WithTopicLabeler(extract.NewTopicLabeler(headings, p.LabelHeadingThreshold)),
		services.WithSummarizer(extract.NewSummarizer(summaryCfg, nil, nil)),
		services.WithClassifier(classifier),
	}

	cleanup := func() {}
	if cfg.Embed.Enable {
		enricher, closeCache, err := setupEnricher(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup = closeCache
		dsOpts = append(dsOpts, services.WithEnricher(enricher))
	}

	srv, err := services.NewDatasetService(p.BookTitle, dsOpts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return srv, cleanup, nil
}

// setupEnricher 创建嵌入客户端，启用缓存时包装为缓存客户端
func setupEnricher(cfg *appconfig.Config, logger *logrus.Logger) (*services.EmbeddingEnricher, func(), error) {
	e := cfg.Embed
	client, err := embedding.NewClient(e.Provider,
		embedding.WithModel(e.Model),
		embedding.WithAPIKey(e.APIKey),
		embedding.WithBaseURL(e.BaseURL),
		embedding.WithDimensions(e.Dimensions),
		embedding.WithBatchSize(e.BatchSize),
		embedding.WithTimeout(e.Timeout),
		embedding.WithMaxRetries(e.MaxRetries),
		embedding.WithRetryDelay(e.RetryDelay),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	cleanup := func() {}
	if cfg.Cache.Enable {
		c, err := setupCache(cfg)
		if err != nil {
			return nil, nil, err
		}
		if closer, ok := c.(io.Closer); ok {
			cleanup = func() { _ = closer.Close() }
		}
		client = embedding.NewCachedClient(client, c, logger)
	}

	logger.WithFields(logrus.Fields{
		"provider": client.Name(),
		"cache":    cfg.Cache.Enable,
		"workers":  e.Workers,
	}).Info("Embedding enrichment enabled")

	processor := embedding.NewBatchProcessor(client, e.BatchSize, e.Workers)
	return services.NewEmbeddingEnricher(processor, e.ContentRunes, logger), cleanup, nil
}

// setupCache 创建向量缓存
func setupCache(cfg *appconfig.Config) (cache.Cache, error) {
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Type = cfg.Cache.Type
	cacheCfg.Addr = cfg.Cache.Address
	cacheCfg.Password = cfg.Cache.Password
	cacheCfg.DB = cfg.Cache.DB
	cacheCfg.TTL = cfg.Cache.TTL
	if cfg.Cache.Namespace != "" {
		cacheCfg.Namespace = cfg.Cache.Namespace
	}

	c, err := cache.NewCache(cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return c, nil
}

// saveRecords 打开数据库并以一次事务写入记录
func saveRecords(ctx context.Context, cfg *appconfig.Config, runID string, records []models.Record, logger *logrus.Logger) error {
	dbCfg := database.DefaultConfig()
	dbCfg.Type = cfg.Database.Type
	dbCfg.DSN = cfg.Database.DSN
	dbCfg.ChunkCount = cfg.Pipeline.ChunkCount

	if err := database.Setup(dbCfg, logger); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := repository.NewRecordRepository()
	n, err := repo.SaveRecords(ctx, runID, records)
	if err != nil {
		return fmt.Errorf("failed to import records: %w", err)
	}

	total, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"inserted": n,
		"total":    total,
		"dsn":      cfg.Database.DSN,
	}).Info("Records imported")
	return nil
}

// publish 上传输出文件到 <run-id>/ 下
func publish(ctx context.Context, cfg *appconfig.Config, runID string, files []string, logger *logrus.Logger) error {
	s := cfg.Storage
	store, err := storage.New(ctx, storage.Config{
		Type:  s.Type,
		Local: storage.LocalConfig{Path: s.Path},
		Minio: storage.MinioConfig{
			Endpoint:  s.Endpoint,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
			UseSSL:    s.UseSSL,
			Bucket:    s.Bucket,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	infos, err := storage.PublishFiles(ctx, store, runID, files...)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"storage": s.Type,
		"objects": len(infos),
	}).Info("Artifacts published")
	return nil
}
