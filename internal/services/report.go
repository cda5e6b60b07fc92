package services

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

// 章节被跳过时所处的阶段
const (
	StageSegmentation = "segmentation"
	StageChunking     = "chunking"
)

// SkippedChapter 未产出记录的章节
type SkippedChapter struct {
	ChapterNumber int    `json:"chapter_number"`
	ChapterName   string `json:"chapter_name"`
	Stage         string `json:"stage"`
	Reason        string `json:"reason"`
}

// RejectedRecord 未通过校验被排除的记录
type RejectedRecord struct {
	ChapterNumber int    `json:"chapter_number"`
	ChunkIndex    int    `json:"chunk_index"`
	Field         string `json:"field"`
	Reason        string `json:"reason"`
}

// Report 一次运行的汇总报告
type Report struct {
	RunID      string    `json:"run_id"`
	BookTitle  string    `json:"book_title"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	ChaptersDeclared  int `json:"chapters_declared"`
	ChaptersProcessed int `json:"chapters_processed"`
	RecordsEmitted    int `json:"records_emitted"`

	Skipped  []SkippedChapter `json:"skipped"`
	Rejected []RejectedRecord `json:"rejected"`

	Categories      map[string]int `json:"categories"`
	EmptyCategories []string       `json:"empty_categories"` // 分类表中没有任何记录的类别
	AvgContentWords float64        `json:"avg_content_words"`
	AvgSummaryChars float64        `json:"avg_summary_chars"`
	MicroChunks     int            `json:"micro_chunks"`
	Tables          int            `json:"tables"`
	TopicWordCounts map[int]int    `json:"topic_word_counts"` // 主题词数 -> 记录数
	EmptySummaries  int            `json:"empty_summaries"`
	Embedded        bool           `json:"embedded"`
	EmbeddingError  string         `json:"embedding_error,omitempty"`
}

// NewReport 创建带新运行ID的报告
func NewReport(bookTitle string) *Report {
	return &Report{
		RunID:           uuid.New().String(),
		BookTitle:       bookTitle,
		StartedAt:       time.Now(),
		Skipped:         []SkippedChapter{},
		Rejected:        []RejectedRecord{},
		Categories:      map[string]int{},
		EmptyCategories: []string{},
		TopicWordCounts: map[int]int{},
	}
}

// AddError 按错误类型登记跳过的章节或被拒绝的记录
// 未知错误类型返回 false
func (r *Report) AddError(chapter models.ChapterEntry, err error) bool {
	var segErr *models.SegmentationError
	var chunkErr *models.ChunkingError
	var valErr *models.ValidationError

	switch {
	case errors.As(err, &segErr):
		r.Skipped = append(r.Skipped, SkippedChapter{
			ChapterNumber: segErr.ChapterNumber,
			ChapterName:   segErr.ChapterName,
			Stage:         StageSegmentation,
			Reason:        err.Error(),
		})
	case errors.As(err, &chunkErr):
		r.Skipped = append(r.Skipped, SkippedChapter{
			ChapterNumber: chunkErr.ChapterNumber,
			ChapterName:   chapter.ChapterName,
			Stage:         StageChunking,
			Reason:        chunkErr.Reason,
		})
	case errors.As(err, &valErr):
		r.Rejected = append(r.Rejected, RejectedRecord{
			ChapterNumber: valErr.ChapterNumber,
			ChunkIndex:    valErr.ChunkIndex,
			Field:         valErr.Field,
			Reason:        valErr.Reason,
		})
	default:
		return false
	}
	return true
}

// Finish 根据最终记录计算统计信息
func (r *Report) Finish(records []models.Record) {
	r.FinishedAt = time.Now()
	r.RecordsEmitted = len(records)
	r.ChaptersProcessed = len(lo.UniqBy(records, func(rec models.Record) int { return rec.ChapterNumber }))
	r.Categories = lo.CountValuesBy(records, func(rec models.Record) string { return rec.Category })
	r.TopicWordCounts = lo.CountValuesBy(records, func(rec models.Record) int { return len(strings.Fields(rec.TopicName)) })

	r.MicroChunks = lo.SumBy(records, func(rec models.Record) int { return len(rec.MicroChunks) })
	r.Tables = lo.SumBy(records, func(rec models.Record) int { return len(rec.Tables) })
	r.EmptySummaries = lo.CountBy(records, func(rec models.Record) bool { return rec.Summary == "" })

	if len(records) == 0 {
		r.AvgContentWords, r.AvgSummaryChars = 0, 0
		return
	}
	words := lo.SumBy(records, func(rec models.Record) int { return len(strings.Fields(rec.Content)) })
	chars := lo.SumBy(records, func(rec models.Record) int { return utf8.RuneCountInString(rec.Summary) })
	r.AvgContentWords = float64(words) / float64(len(records))
	r.AvgSummaryChars = float64(chars) / float64(len(records))
}

// MarkEmptyCategories 记录 labels 中没有任何记录的类别，按首次出现顺序去重
func (r *Report) MarkEmptyCategories(labels []string) {
	r.EmptyCategories = lo.Filter(lo.Uniq(labels), func(label string, _ int) bool {
		return r.Categories[label] == 0
	})
}

// Duration 返回运行耗时
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Clean 没有任何跳过或拒绝时返回 true
func (r *Report) Clean() bool {
	return len(r.Skipped) == 0 && len(r.Rejected) == 0
}
