package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

func TestChapterID(t *testing.T) {
	tests := []struct {
		prefix string
		n      int
		want   string
	}{
		{"NELSON", 5, "NELSON-CH-0005"},
		{"NELSON", 104, "NELSON-CH-0104"},
		{"NELSON", 1234, "NELSON-CH-1234"},
		{"HLH", 1, "HLH-CH-0001"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChapterID(tt.prefix, tt.n))
	}
	// 同一章节号始终得到同一ID
	assert.Equal(t, ChapterID("NELSON", 42), ChapterID("NELSON", 42))
}

func validParts() RecordParts {
	return RecordParts{
		Chapter:  models.ChapterEntry{ChapterNumber: 5, ChapterName: "Overview of Pediatrics"},
		Chunk:    models.Chunk{ChapterNumber: 5, Index: 2, Content: "Pediatrics is concerned with the health of infants."},
		Topic:    "Pediatrics",
		Summary:  "Pediatrics is concerned with the health of infants.",
		Category: "General Pediatrics",
	}
}

func TestAssemble(t *testing.T) {
	a := NewAssembler("Nelson Textbook of Pediatrics", "", 3)

	rec, err := a.Assemble(validParts())
	require.NoError(t, err)
	assert.Equal(t, "Nelson Textbook of Pediatrics", rec.BookTitle)
	assert.Equal(t, "NELSON-CH-0005", rec.ChapterID)
	assert.Equal(t, 5, rec.ChapterNumber)
	assert.Equal(t, "Overview of Pediatrics", rec.ChapterName)
	assert.Equal(t, 2, rec.ChunkIndex)
	assert.Equal(t, "Pediatrics", rec.TopicName)
	assert.Equal(t, "General Pediatrics", rec.Category)
	assert.Nil(t, rec.ContentEmbedding)
}

func TestAssembleValidation(t *testing.T) {
	a := NewAssembler("Nelson Textbook of Pediatrics", "NELSON", 3)

	tests := []struct {
		name  string
		edit  func(p *RecordParts)
		field string
	}{
		{"章节号为零", func(p *RecordParts) { p.Chapter.ChapterNumber = 0 }, "chapter_number"},
		{"章节号为负", func(p *RecordParts) { p.Chapter.ChapterNumber = -2 }, "chapter_number"},
		{"内容为空", func(p *RecordParts) { p.Chunk.Content = "" }, "content"},
		{"内容只有空白", func(p *RecordParts) { p.Chunk.Content = " \n\t " }, "content"},
		{"块序号为零", func(p *RecordParts) { p.Chunk.Index = 0 }, "chunk_index"},
		{"块序号超过k", func(p *RecordParts) { p.Chunk.Index = 4 }, "chunk_index"},
		{"缺少分类", func(p *RecordParts) { p.Category = "" }, "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParts()
			tt.edit(&p)

			_, err := a.Assemble(p)
			var valErr *models.ValidationError
			require.True(t, errors.As(err, &valErr), "got %v", err)
			assert.Equal(t, tt.field, valErr.Field)
			assert.Equal(t, p.Chapter.ChapterNumber, valErr.ChapterNumber)
			assert.Equal(t, p.Chunk.Index, valErr.ChunkIndex)
			assert.NotEmpty(t, valErr.Reason)
		})
	}

	t.Run("缺少书名", func(t *testing.T) {
		_, err := NewAssembler("", "NELSON", 3).Assemble(validParts())
		var valErr *models.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Equal(t, "book_title", valErr.Field)
	})
}
