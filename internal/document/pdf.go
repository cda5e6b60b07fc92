package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser PDF文档解析器
// 每页文本前插入 "--- PAGE n ---" 标记，供清洗和按页定位章节使用
type PDFParser struct{}

// NewPDFParser 创建一个新的PDF解析器
func NewPDFParser() Parser {
	return &PDFParser{}
}

var pageFileNumber = regexp.MustCompile(`_(\d+)\.txt$`)

type pageText struct {
	page int
	text string
}

// Parse 解析PDF文件并提取其文本内容
func (p *PDFParser) Parse(filePath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(filePath, tmpDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract text from PDF: %w", err)
	}

	files, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted text dir: %w", err)
	}

	var pages []pageText
	for _, f := range files {
		m := pageFileNumber.FindStringSubmatch(f.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		data, err := os.ReadFile(filepath.Join(tmpDir, f.Name()))
		if err != nil {
			continue
		}
		pages = append(pages, pageText{page: n, text: contentStreamText(string(data))})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].page < pages[j].page })

	var sb strings.Builder
	for _, pg := range pages {
		fmt.Fprintf(&sb, "--- PAGE %d ---\n%s\n", pg.page, strings.TrimSpace(pg.text))
	}

	result := strings.TrimSpace(sb.String())
	if len(pages) == 0 || strings.TrimSpace(stripPageMarkers(result)) == "" {
		return "", fmt.Errorf("no text content found in PDF")
	}
	return result, nil
}

// ParseReader 将Reader内容写入临时文件后解析
func (p *PDFParser) ParseReader(r io.Reader, filename string) (string, error) {
	tmp, err := os.CreateTemp("", "book-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to buffer PDF %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	return p.Parse(tmp.Name())
}

func stripPageMarkers(s string) string {
	return pageMarkerLine.ReplaceAllString(s, "")
}

// contentStreamText 从页面内容流中取出文本显示操作的字符串
// Tj/TJ/'/" 输出文本，Td/TD/T*/Tm/ET 视为换行
func contentStreamText(stream string) string {
	var out strings.Builder
	var line strings.Builder
	var operands []string
	inArray := false

	newline := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			out.WriteString(s)
			out.WriteByte('\n')
		}
		line.Reset()
	}

	for i := 0; i < len(stream); {
		c := stream[i]
		switch {
		case c == '(':
			s, n := readLiteral(stream[i:])
			operands = append(operands, s)
			i += n
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case c == '<' || c == '>' || c == '/' || c == '{' || c == '}':
			j := i + 1
			for j < len(stream) && !isDelimiter(stream[j]) {
				j++
			}
			i = j
		case c == '-' || c == '.' || (c >= '0' && c <= '9'):
			j := i + 1
			for j < len(stream) && (stream[j] == '.' || (stream[j] >= '0' && stream[j] <= '9')) {
				j++
			}
			if inArray {
				if v, err := strconv.ParseFloat(stream[i:j], 64); err == nil && v <= -200 {
					operands = append(operands, " ")
				}
			}
			i = j
		case isDelimiter(c):
			i++
		default:
			j := i + 1
			for j < len(stream) && !isDelimiter(stream[j]) && stream[j] != '(' && stream[j] != '[' {
				j++
			}
			switch stream[i:j] {
			case "Tj", "TJ":
				line.WriteString(strings.Join(operands, ""))
			case "'", `"`:
				newline()
				line.WriteString(strings.Join(operands, ""))
			case "Td", "TD", "T*", "Tm", "ET":
				newline()
			}
			operands = operands[:0]
			i = j
		}
	}
	newline()

	return out.String()
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

// readLiteral 读取以 '(' 开头的PDF字符串，处理转义和嵌套括号
func readLiteral(s string) (string, int) {
	var sb strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return sb.String(), len(s)
			}
			i++
			switch s[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r', 't', 'b', 'f':
				sb.WriteByte(' ')
			case '\n':
			default:
				if s[i] >= '0' && s[i] <= '7' {
					j := i
					for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
						j++
					}
					v, _ := strconv.ParseUint(s[i:j], 8, 8)
					sb.WriteByte(byte(v))
					i = j - 1
				} else {
					sb.WriteByte(s[i])
				}
			}
		case '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), len(s)
}
