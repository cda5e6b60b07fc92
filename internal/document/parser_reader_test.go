package document

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserReaderImplementations(t *testing.T) {
	// 测试纯文本解析器
	t.Run("PlainText", func(t *testing.T) {
		content := "Fever is the most common complaint."
		result, err := NewPlainTextParser().ParseReader(strings.NewReader(content), "book.txt")

		assert.NoError(t, err)
		assert.Equal(t, content, result)
	})

	// 测试Markdown解析器
	t.Run("Markdown", func(t *testing.T) {
		content := "# Heading\n\nThis is **markdown** text with &amp; entity."
		result, err := NewMarkdownParser().ParseReader(strings.NewReader(content), "book.md")

		assert.NoError(t, err)
		assert.Contains(t, result, "Heading")
		assert.Contains(t, result, "markdown")
		assert.Contains(t, result, "& entity")
		assert.NotContains(t, result, "<strong>")
	})

	// PDF通过临时文件转交给Parse
	t.Run("PDF", func(t *testing.T) {
		file := createTempPDF(t, "Reader based PDF")
		defer os.Remove(file)

		data, err := os.ReadFile(file)
		require.NoError(t, err)

		result, err := NewPDFParser().ParseReader(bytes.NewReader(data), "book.pdf")
		require.NoError(t, err)
		assert.Contains(t, result, "Reader based PDF")
	})
}

func TestMarkdownTableText(t *testing.T) {
	content := "| Drug | Dose |\n|---|---|\n| Amoxicillin | 90 mg/kg/day |\n"
	result, err := NewMarkdownParser().ParseReader(strings.NewReader(content), "table.md")

	require.NoError(t, err)
	assert.Contains(t, result, "Amoxicillin")
	assert.Contains(t, result, "90 mg/kg/day")
}
