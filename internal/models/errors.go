package models

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySource 源文本为空，整个运行无法产出结果
	ErrEmptySource = errors.New("source text is empty")

	// ErrEmptyTOC 章节表为空
	ErrEmptyTOC = errors.New("chapter table is empty")
)

// SegmentationError 章节表中声明的章节在源文本中无法定位
type SegmentationError struct {
	ChapterNumber int
	ChapterName   string
}

func (e *SegmentationError) Error() string {
	return fmt.Sprintf("chapter %d (%q) not found in source text", e.ChapterNumber, e.ChapterName)
}

// ChunkingError 章节文本无法切分
type ChunkingError struct {
	ChapterNumber int
	Reason        string
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("chapter %d cannot be chunked: %s", e.ChapterNumber, e.Reason)
}

// ValidationError 组装后的记录违反结构约束
type ValidationError struct {
	ChapterNumber int
	ChunkIndex    int
	Field         string
	Reason        string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record chapter=%d chunk=%d invalid %s: %s", e.ChapterNumber, e.ChunkIndex, e.Field, e.Reason)
}
