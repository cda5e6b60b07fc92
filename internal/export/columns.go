package export

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/gosimple/slug"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

// Columns 表格输出的固定列顺序，与JSON字段名一致
var Columns = []string{
	"book_title",
	"chapter_id",
	"chapter_number",
	"chapter_name",
	"chunk_index",
	"topic_name",
	"content",
	"summary",
	"category",
	"micro_chunks",
	"tables",
	"content_embedding",
	"summary_embedding",
	"topic_embedding",
}

// BaseName 由书名生成输出文件基础名，如 nelson-textbook-of-pediatrics
func BaseName(bookTitle string) string {
	name := slug.Make(bookTitle)
	if name == "" {
		return "dataset"
	}
	return name
}

// compactJSON 编码为紧凑JSON，不转义 HTML 字符
func compactJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// row 将记录渲染为按 Columns 排列的文本单元格
// 列表字段编码为JSON数组文本
func row(rec models.Record) ([]string, error) {
	rec = rec.Normalized()

	lists := []interface{}{rec.MicroChunks, rec.Tables, rec.ContentEmbedding, rec.SummaryEmbedding, rec.TopicEmbedding}
	encoded := make([]string, len(lists))
	for i, v := range lists {
		s, err := compactJSON(v)
		if err != nil {
			return nil, err
		}
		encoded[i] = s
	}

	return append([]string{
		rec.BookTitle,
		rec.ChapterID,
		strconv.Itoa(rec.ChapterNumber),
		rec.ChapterName,
		strconv.Itoa(rec.ChunkIndex),
		rec.TopicName,
		rec.Content,
		rec.Summary,
		rec.Category,
	}, encoded...), nil
}
