package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

// WriteCSV 写出表头与每条记录一行
func WriteCSV(w io.Writer, records []models.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, rec := range records {
		cells, err := row(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %s/%d: %w", rec.ChapterID, rec.ChunkIndex, err)
		}
		if err := cw.Write(cells); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV 读取 WriteCSV 写出的文件
// 只要求表头包含所需列，列的顺序不限
func ReadCSV(r io.Reader) ([]models.Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv input is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, col := range []string{"book_title", "chapter_number", "chunk_index", "content"} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("csv header is missing column %q", col)
		}
	}

	var records []models.Record
	for line := 2; ; line++ {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		rec, err := parseRow(index, cells)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(index map[string]int, cells []string) (models.Record, error) {
	get := func(col string) string {
		if i, ok := index[col]; ok && i < len(cells) {
			return cells[i]
		}
		return ""
	}

	var rec models.Record
	var err error
	if rec.ChapterNumber, err = strconv.Atoi(get("chapter_number")); err != nil {
		return rec, fmt.Errorf("invalid chapter_number: %w", err)
	}
	if rec.ChunkIndex, err = strconv.Atoi(get("chunk_index")); err != nil {
		return rec, fmt.Errorf("invalid chunk_index: %w", err)
	}
	rec.BookTitle = get("book_title")
	rec.ChapterID = get("chapter_id")
	rec.ChapterName = get("chapter_name")
	rec.TopicName = get("topic_name")
	rec.Content = get("content")
	rec.Summary = get("summary")
	rec.Category = get("category")

	lists := []struct {
		col string
		dst interface{}
	}{
		{"micro_chunks", &rec.MicroChunks},
		{"tables", &rec.Tables},
		{"content_embedding", &rec.ContentEmbedding},
		{"summary_embedding", &rec.SummaryEmbedding},
		{"topic_embedding", &rec.TopicEmbedding},
	}
	for _, l := range lists {
		raw := get(l.col)
		if raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), l.dst); err != nil {
			return rec, fmt.Errorf("invalid %s: %w", l.col, err)
		}
	}
	return rec.Normalized(), nil
}
