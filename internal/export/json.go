package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

// WriteJSON 写出记录的JSON数组，列表字段始终为数组
func WriteJSON(w io.Writer, records []models.Record) error {
	out := make([]models.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Normalized()
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return nil
}

// ReadJSON 读取 WriteJSON 写出的数组
func ReadJSON(r io.Reader) ([]models.Record, error) {
	var records []models.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	for i := range records {
		records[i] = records[i].Normalized()
	}
	return records, nil
}

// WriteValue 以缩进JSON写出任意值，用于运行报告
func WriteValue(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
