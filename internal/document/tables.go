package document

import (
	"strings"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

const (
	minTableRows = 2
	maxTableRows = 10
)

// ExtractTables 识别以 "Table N-N" 开头、后跟至少两行数据的表格
// 每个表格最多保留前10行
func ExtractTables(content string) []models.Table {
	var tables []models.Table
	var current *models.Table

	finish := func() {
		if current != nil && len(current.Rows) >= minTableRows {
			tables = append(tables, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			finish()
		case IsTableTitle(line):
			finish()
			current = &models.Table{Title: line}
		case current != nil && len(current.Rows) < maxTableRows:
			current.Rows = append(current.Rows, line)
		}
	}
	finish()

	return tables
}
