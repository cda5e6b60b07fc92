package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChunkTableName 导入表名
const ChunkTableName = "pediatrics_chunks"

// ChunkRow 导入数据库的记录行
// 表结构由 schema 产物创建，content_length 为数据库生成列，只读
type ChunkRow struct {
	ID               uint           `gorm:"primaryKey;autoIncrement"`
	RunID            string         `gorm:"size:36;index"`
	BookTitle        string         `gorm:"not null"`
	ChapterID        string         `gorm:"size:32;not null;index"`
	ChapterNumber    int            `gorm:"not null;index"`
	ChapterName      string         `gorm:"type:text"`
	ChunkIndex       int            `gorm:"not null"`
	TopicName        string         `gorm:"size:255"`
	Content          string         `gorm:"type:text;not null"`
	Summary          string         `gorm:"type:text"`
	Category         string         `gorm:"size:64;index"`
	MicroChunks      datatypes.JSON `gorm:"type:json"`
	Tables           datatypes.JSON `gorm:"type:json"`
	ContentEmbedding datatypes.JSON `gorm:"type:json"`
	SummaryEmbedding datatypes.JSON `gorm:"type:json"`
	TopicEmbedding   datatypes.JSON `gorm:"type:json"`
	ContentLength    int            `gorm:"->"`
	CreatedAt        time.Time      `gorm:"not null"`
}

// TableName 明确指定表名
func (ChunkRow) TableName() string {
	return ChunkTableName
}

// BeforeCreate GORM的钩子函数，创建记录前设置时间
func (r *ChunkRow) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}

// NewChunkRow 由记录构造数据库行
func NewChunkRow(runID string, rec Record) (*ChunkRow, error) {
	rec = rec.Normalized()
	row := &ChunkRow{
		RunID:         runID,
		BookTitle:     rec.BookTitle,
		ChapterID:     rec.ChapterID,
		ChapterNumber: rec.ChapterNumber,
		ChapterName:   rec.ChapterName,
		ChunkIndex:    rec.ChunkIndex,
		TopicName:     rec.TopicName,
		Content:       rec.Content,
		Summary:       rec.Summary,
		Category:      rec.Category,
	}

	fields := []struct {
		dst *datatypes.JSON
		v   interface{}
	}{
		{&row.MicroChunks, rec.MicroChunks},
		{&row.Tables, rec.Tables},
		{&row.ContentEmbedding, rec.ContentEmbedding},
		{&row.SummaryEmbedding, rec.SummaryEmbedding},
		{&row.TopicEmbedding, rec.TopicEmbedding},
	}
	for _, f := range fields {
		b, err := json.Marshal(f.v)
		if err != nil {
			return nil, err
		}
		*f.dst = datatypes.JSON(b)
	}
	return row, nil
}

// Record 将数据库行还原为记录
func (r *ChunkRow) Record() (Record, error) {
	rec := Record{
		BookTitle:     r.BookTitle,
		ChapterID:     r.ChapterID,
		ChapterNumber: r.ChapterNumber,
		ChapterName:   r.ChapterName,
		ChunkIndex:    r.ChunkIndex,
		TopicName:     r.TopicName,
		Content:       r.Content,
		Summary:       r.Summary,
		Category:      r.Category,
	}

	fields := []struct {
		src datatypes.JSON
		dst interface{}
	}{
		{r.MicroChunks, &rec.MicroChunks},
		{r.Tables, &rec.Tables},
		{r.ContentEmbedding, &rec.ContentEmbedding},
		{r.SummaryEmbedding, &rec.SummaryEmbedding},
		{r.TopicEmbedding, &rec.TopicEmbedding},
	}
	for _, f := range fields {
		if len(f.src) == 0 {
			continue
		}
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return Record{}, err
		}
	}
	return rec.Normalized(), nil
}
