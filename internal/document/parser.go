package document

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

// ErrUnsupportedType 不支持的文档类型
var ErrUnsupportedType = errors.New("unsupported document type")

// Parser 文档解析器接口
// 负责将不同格式的书籍文本解析为纯文本
type Parser interface {
	// Parse 解析文档，返回文本内容
	Parse(filePath string) (string, error)

	// ParseReader 从Reader解析文档，返回文本内容
	// filename用于确定文档类型
	ParseReader(r io.Reader, filename string) (string, error)
}

// Splitter 章节分块器接口
type Splitter interface {
	// Split 将一个章节的清洗后文本切分为固定数量的块
	Split(chapterNumber int, text string) ([]models.Chunk, error)

	// MicroSplit 在块内按子标题细分，可能返回 nil
	MicroSplit(content string) []string

	// ChunkCount 返回每章块数
	ChunkCount() int
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ParserFactory 解析器工厂函数，根据文件类型创建对应的解析器
func ParserFactory(filePath string) (Parser, error) {
	switch detectContentType(filePath) {
	case PDF:
		return NewPDFParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filePath))
	}
}

// LoadBook 按扩展名选择解析器读取整本书的文本
func LoadBook(filePath string) (string, error) {
	parser, err := ParserFactory(filePath)
	if err != nil {
		return "", err
	}
	return parser.Parse(filePath)
}

// detectContentType 根据文件扩展名检测内容类型
func detectContentType(filePath string) ContentType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt", ".text":
		return PlainText
	default:
		return Unknown
	}
}
