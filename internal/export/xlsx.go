package export

import (
	"fmt"
	"io"
	"sort"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

const (
	// DatasetSheet 记录工作表名
	DatasetSheet = "Dataset"
	// CategorySheet 分类统计工作表名
	CategorySheet = "Categories"
)

// WriteXLSX 写出包含记录表与分类统计表的工作簿
// 超过单元格上限的文本被截断
func WriteXLSX(w io.Writer, records []models.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DatasetSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeDatasetSheet(f, records); err != nil {
		return err
	}
	if err := writeCategorySheet(f, records); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeDatasetSheet(f *excelize.File, records []models.Record) error {
	sw, err := f.NewStreamWriter(DatasetSheet)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	header := lo.Map(Columns, func(c string, _ int) interface{} {
		return excelize.Cell{StyleID: bold, Value: c}
	})
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, rec := range records {
		cells, err := row(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %s/%d: %w", rec.ChapterID, rec.ChunkIndex, err)
		}

		values := make([]interface{}, len(cells))
		for j, c := range cells {
			values[j] = clip(c)
		}
		// 数字列保留为数值
		values[2] = rec.ChapterNumber
		values[4] = rec.ChunkIndex

		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return sw.Flush()
}

func writeCategorySheet(f *excelize.File, records []models.Record) error {
	if _, err := f.NewSheet(CategorySheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	counts := lo.CountValuesBy(records, func(r models.Record) string { return r.Category })
	labels := lo.Keys(counts)
	sort.Strings(labels)

	if err := f.SetSheetRow(CategorySheet, "A1", &[]interface{}{"category", "records"}); err != nil {
		return err
	}
	for i, label := range labels {
		axis, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(CategorySheet, axis, &[]interface{}{label, counts[label]}); err != nil {
			return err
		}
	}
	return nil
}

// clip 将文本截断到单元格允许的最大字符数
func clip(s string) string {
	if utf8.RuneCountInString(s) <= excelize.TotalCellChars {
		return s
	}
	return string([]rune(s)[:excelize.TotalCellChars])
}
