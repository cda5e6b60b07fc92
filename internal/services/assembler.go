package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

// DefaultIDPrefix 章节ID的默认前缀
const DefaultIDPrefix = "NELSON"

// ChapterID 根据章节号生成稳定的章节ID，如 NELSON-CH-0005
func ChapterID(prefix string, chapterNumber int) string {
	return fmt.Sprintf("%s-CH-%04d", prefix, chapterNumber)
}

// RecordParts 组装一条记录所需的各部分
type RecordParts struct {
	Chapter     models.ChapterEntry
	Chunk       models.Chunk
	Topic       string
	Summary     string
	Category    string
	MicroChunks []string
	Tables      []models.Table
}

// Assembler 将章节、块及推导出的字段组装为记录并做结构校验
type Assembler struct {
	bookTitle  string
	prefix     string
	chunkCount int
	validate   *validator.Validate
}

// NewAssembler 创建记录组装器
// chunkCount 为每章块数 k，块序号必须落在 [1, k]
func NewAssembler(bookTitle, prefix string, chunkCount int) *Assembler {
	if prefix == "" {
		prefix = DefaultIDPrefix
	}

	v := validator.New()
	// 错误中使用 json 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)

	return &Assembler{
		bookTitle:  bookTitle,
		prefix:     prefix,
		chunkCount: chunkCount,
		validate:   v,
	}
}

// Assemble 组装并校验记录，失败时返回 *models.ValidationError
func (a *Assembler) Assemble(p RecordParts) (models.Record, error) {
	rec := models.Record{
		BookTitle:     a.bookTitle,
		ChapterID:     ChapterID(a.prefix, p.Chapter.ChapterNumber),
		ChapterNumber: p.Chapter.ChapterNumber,
		ChapterName:   p.Chapter.ChapterName,
		ChunkIndex:    p.Chunk.Index,
		TopicName:     p.Topic,
		Content:       p.Chunk.Content,
		Summary:       p.Summary,
		Category:      p.Category,
		MicroChunks:   p.MicroChunks,
		Tables:        p.Tables,
	}

	if err := a.validate.Struct(rec); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return models.Record{}, &models.ValidationError{
				ChapterNumber: rec.ChapterNumber,
				ChunkIndex:    rec.ChunkIndex,
				Field:         fe.Field(),
				Reason:        describeTag(fe),
			}
		}
		return models.Record{}, fmt.Errorf("failed to validate record: %w", err)
	}

	if a.chunkCount > 0 && rec.ChunkIndex > a.chunkCount {
		return models.Record{}, &models.ValidationError{
			ChapterNumber: rec.ChapterNumber,
			ChunkIndex:    rec.ChunkIndex,
			Field:         "chunk_index",
			Reason:        fmt.Sprintf("must be at most %d", a.chunkCount),
		}
	}

	return rec, nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "must not be empty"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
