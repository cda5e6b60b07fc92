package document

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

// tocLine 目录行格式：CHAPTER: <name> (Page: <n>)，页码可省略
var tocLine = regexp.MustCompile(`^\s*CHAPTER:\s*(.+?)\s*(?:\(Page:\s*(\d+)\))?\s*$`)

// ParseTOC 解析目录，章节号按出现顺序从1开始编号
// 不符合格式的行被忽略
func ParseTOC(r io.Reader) ([]models.ChapterEntry, error) {
	var entries []models.ChapterEntry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := tocLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}

		entry := models.ChapterEntry{
			ChapterNumber: len(entries) + 1,
			ChapterName:   name,
		}
		if m[2] != "" {
			page, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, fmt.Errorf("invalid page number %q for chapter %q: %w", m[2], name, err)
			}
			entry.Page = page
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table of contents: %w", err)
	}

	return entries, nil
}

// ParseTOCFile 从文件解析目录
func ParseTOCFile(path string) ([]models.ChapterEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table of contents: %w", err)
	}
	defer file.Close()

	return ParseTOC(file)
}
