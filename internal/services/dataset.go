package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/document"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/extract"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

// DefaultMaxSummaryChars 摘要的默认最大字符数
const DefaultMaxSummaryChars = 600

// DatasetService 数据集构建服务
// 负责协调章节定位、清洗、分块、主题/摘要/分类推导与记录组装
type DatasetService struct {
	bookTitle       string
	idPrefix        string
	maxSummaryChars int
	microChunks     bool
	tables          bool

	segmenter  *document.Segmenter
	cleaner    *document.Cleaner
	splitter   document.Splitter
	labeler    *extract.TopicLabeler
	summarizer *extract.Summarizer
	classifier *extract.Classifier
	enricher   *EmbeddingEnricher
	assembler  *Assembler

	logger *logrus.Logger
}

// DatasetOption 数据集服务配置选项
type DatasetOption func(*DatasetService)

// Result 一次构建的结果
type Result struct {
	Records []models.Record
	Report  *Report
}

// NewDatasetService 创建数据集服务，未通过选项提供的组件使用默认实现
func NewDatasetService(bookTitle string, opts ...DatasetOption) (*DatasetService, error) {
	headings := document.NewHeadingMatcher(nil)

	srv := &DatasetService{
		bookTitle:       bookTitle,
		idPrefix:        DefaultIDPrefix,
		maxSummaryChars: DefaultMaxSummaryChars,
		microChunks:     true,
		tables:          true,
		segmenter:       document.NewSegmenter(),
		cleaner:         document.NewCleaner(headings, 0.5),
		splitter:        document.NewChunkSplitter(document.DefaultSplitterConfig(), headings),
		labeler:         extract.NewTopicLabeler(headings, 0.5),
		summarizer:      extract.NewSummarizer(extract.DefaultSummaryConfig(), nil, nil),
		logger:          logrus.New(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	if srv.classifier == nil {
		classifier, err := extract.NewClassifier(extract.DefaultCategoryRanges())
		if err != nil {
			return nil, fmt.Errorf("failed to build default classifier: %w", err)
		}
		srv.classifier = classifier
	}
	if srv.maxSummaryChars <= 0 {
		return nil, fmt.Errorf("max summary chars must be positive, got %d", srv.maxSummaryChars)
	}

	srv.assembler = NewAssembler(bookTitle, srv.idPrefix, srv.splitter.ChunkCount())
	return srv, nil
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) DatasetOption {
	return func(s *DatasetService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDPrefix 设置章节ID前缀
func WithIDPrefix(prefix string) DatasetOption {
	return func(s *DatasetService) {
		if prefix != "" {
			s.idPrefix = prefix
		}
	}
}

// WithMaxSummaryChars 设置摘要最大字符数
func WithMaxSummaryChars(n int) DatasetOption {
	return func(s *DatasetService) {
		s.maxSummaryChars = n
	}
}

// WithMicroChunks 是否生成子块
func WithMicroChunks(enabled bool) DatasetOption {
	return func(s *DatasetService) {
		s.microChunks = enabled
	}
}

// WithTables 是否提取表格
func WithTables(enabled bool) DatasetOption {
	return func(s *DatasetService) {
		s.tables = enabled
	}
}

// WithCleaner 设置文本清洗器
func WithCleaner(c *document.Cleaner) DatasetOption {
	return func(s *DatasetService) {
		s.cleaner = c
	}
}

// WithSplitter 设置分块器
func WithSplitter(sp document.Splitter) DatasetOption {
	return func(s *DatasetService) {
		s.splitter = sp
	}
}

// WithTopicLabeler 设置主题标签器
func WithTopicLabeler(l *extract.TopicLabeler) DatasetOption {
	return func(s *DatasetService) {
		s.labeler = l
	}
}

// WithSummarizer 设置摘要抽取器
func WithSummarizer(sm *extract.Summarizer) DatasetOption {
	return func(s *DatasetService) {
		s.summarizer = sm
	}
}

// WithClassifier 设置分类器
func WithClassifier(c *extract.Classifier) DatasetOption {
	return func(s *DatasetService) {
		s.classifier = c
	}
}

// WithEnricher 设置向量补充阶段，为 nil 时不生成向量
func WithEnricher(e *EmbeddingEnricher) DatasetOption {
	return func(s *DatasetService) {
		s.enricher = e
	}
}

// Build 由全书文本与章节表构建数据集
// 仅当源文本或章节表为空时返回错误；单个章节的失败记录在报告中
func (s *DatasetService) Build(ctx context.Context, source string, toc []models.ChapterEntry) (*Result, error) {
	if strings.TrimSpace(source) == "" {
		return nil, models.ErrEmptySource
	}
	if len(toc) == 0 {
		return nil, models.ErrEmptyTOC
	}

	report := NewReport(s.bookTitle)
	report.ChaptersDeclared = len(toc)

	chapters, segErrs := s.segmenter.Segment(source, toc)
	for _, err := range segErrs {
		s.record(report, models.ChapterEntry{}, err)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":     report.RunID,
		"chapters":   len(toc),
		"unlocated":  len(segErrs),
		"source_len": len(source),
	}).Info("Chapters segmented")

	var records []models.Record
	for _, chapter := range chapters {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("dataset build canceled: %w", err)
		}
		if chapter.Len() == 0 {
			continue
		}

		recs, errs := s.ProcessChapter(chapter, source[chapter.Start:chapter.End])
		for _, err := range errs {
			s.record(report, chapter, err)
		}
		records = append(records, recs...)
	}

	if s.enricher != nil && len(records) > 0 {
		if err := s.enricher.Enrich(ctx, records); err != nil {
			// 向量是附加字段，失败时保留记录
			report.EmbeddingError = err.Error()
			s.logger.WithError(err).Warn("Embedding enrichment failed, records kept without vectors")
		} else {
			report.Embedded = true
		}
	}

	report.Finish(records)
	report.MarkEmptyCategories(s.classifier.Labels())
	s.logger.WithFields(logrus.Fields{
		"run_id":   report.RunID,
		"records":  report.RecordsEmitted,
		"skipped":  len(report.Skipped),
		"rejected": len(report.Rejected),
		"duration": report.Duration().String(),
	}).Info("Dataset built")

	return &Result{Records: records, Report: report}, nil
}

// ProcessChapter 将一个章节的原始文本转换为记录
// 章节之间互不依赖，可单独调用
func (s *DatasetService) ProcessChapter(chapter models.ChapterEntry, raw string) ([]models.Record, []error) {
	text := s.cleaner.Clean(raw)

	chunks, err := s.splitter.Split(chapter.ChapterNumber, text)
	if err != nil {
		return nil, []error{err}
	}

	category := s.classifier.Classify(chapter.ChapterNumber)

	var records []models.Record
	var errs []error
	for _, chunk := range chunks {
		parts := RecordParts{
			Chapter:  chapter,
			Chunk:    chunk,
			Topic:    s.labeler.Label(chunk.Content, chapter.ChapterName),
			Summary:  s.summarizer.Summarize(chunk.Content, s.maxSummaryChars),
			Category: category,
		}
		if s.microChunks {
			parts.MicroChunks = s.splitter.MicroSplit(chunk.Content)
		}
		if s.tables {
			parts.Tables = document.ExtractTables(chunk.Content)
		}

		rec, err := s.assembler.Assemble(parts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

// record 登记错误到报告并记录日志
func (s *DatasetService) record(report *Report, chapter models.ChapterEntry, err error) {
	if !report.AddError(chapter, err) {
		s.logger.WithError(err).Error("Unclassified chapter error")
		report.Skipped = append(report.Skipped, SkippedChapter{
			ChapterNumber: chapter.ChapterNumber,
			ChapterName:   chapter.ChapterName,
			Stage:         "unknown",
			Reason:        err.Error(),
		})
		return
	}
	s.logger.WithFields(logrus.Fields{
		"run_id": report.RunID,
	}).WithError(err).Warn("Chapter issue recorded")
}
