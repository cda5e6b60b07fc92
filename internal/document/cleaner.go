package document

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// 整行的页码标记，连同换行一起删除，使跨页段落重新相连
	pageMarkerLine = regexp.MustCompile(`(?mi)^[ \t]*-{2,}[ \t]*PAGE[ \t]+\d+[ \t]*-{2,}[ \t]*(?:\n|$)`)
	pageMarker     = regexp.MustCompile(`(?i)-{2,}[ \t]*PAGE[ \t]+\d+[ \t]*-{2,}`)

	chapterMarkerLine = regexp.MustCompile(`(?m)^[ \t]*>>[ \t]*CHAPTER:[^\n]*(?:\n|$)`)
	chapterMarker     = regexp.MustCompile(`>>[ \t]*CHAPTER:[^\n<>]{0,200}<<`)

	downloadNotice = regexp.MustCompile(`(?s)Downloaded for .{0,400}?from ClinicalKey\.com.{0,600}?reserved\.`)
	copyrightLine  = regexp.MustCompile(`(?mi)^[ \t]*(?:Copyright|©)[^\n]{0,200}All rights reserved\.?[ \t]*(?:\n|$)`)

	// 书眉，如 "Chapter 12 u Overview of Pediatrics 45" 或 "112 Part V u Nutrition"
	runningHeader = regexp.MustCompile(`(?m)^[ \t]*(?:\d+[ \t]+)?(?:Chapter[ \t]+\d+|Part[ \t]+[IVXLC]+)[ \t]+[uv■▪][ \t]+[^\n]{1,160}(?:\n|$)`)

	hyphenBreak = regexp.MustCompile(`(\p{L})-[ \t\p{Zs}]*\n[ \t\p{Zs}]*(\p{Ll})`)
	horizSpace  = regexp.MustCompile(`[ \t\v\f\p{Zs}]+`)
)

// maxCleanPasses 清洗的最大轮数
// 跨行的版权声明或书眉在合并行之后才能被识别，需要再清洗一轮
const maxCleanPasses = 4

// Cleaner 原始文本清洗器
type Cleaner struct {
	headings  *HeadingMatcher
	threshold float64 // 行被保留为独立段落的最低标题得分
}

// NewCleaner 创建文本清洗器
func NewCleaner(headings *HeadingMatcher, threshold float64) *Cleaner {
	if headings == nil {
		headings = NewHeadingMatcher(nil)
	}
	if threshold <= 0 {
		threshold = 0.5
	}
	return &Cleaner{headings: headings, threshold: threshold}
}

// Clean 清洗文本：去除页码和章节标记、版权声明、书眉，修复断词，规范空白
// 输出中段落以一个空行分隔，标题行单独成段，表格保留行结构
// 对同一输入多次调用结果一致，Clean(Clean(x)) == Clean(x)
func (c *Cleaner) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "")
	}

	text := c.cleanOnce(raw)
	for i := 1; i < maxCleanPasses; i++ {
		next := c.cleanOnce(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

// cleanOnce 执行一轮清洗
func (c *Cleaner) cleanOnce(raw string) string {
	text := strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u00ad", "", "\f", "\n").Replace(raw)

	text = pageMarkerLine.ReplaceAllString(text, "")
	text = pageMarker.ReplaceAllString(text, " ")
	text = chapterMarkerLine.ReplaceAllString(text, "")
	text = chapterMarker.ReplaceAllString(text, " ")
	text = downloadNotice.ReplaceAllString(text, " ")
	text = copyrightLine.ReplaceAllString(text, "")
	text = runningHeader.ReplaceAllString(text, "")
	text = hyphenBreak.ReplaceAllString(text, "$1$2")

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, c.formatParagraph(current)...)
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(horizSpace.ReplaceAllString(line, " "))
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}

// formatParagraph 把一个段落的行整理成一个或多个输出段落
func (c *Cleaner) formatParagraph(lines []string) []string {
	if IsTableTitle(lines[0]) {
		return []string{strings.Join(lines, "\n")}
	}

	var blocks [][]string
	var block []string
	for i, line := range lines {
		if i > 0 && c.isStandaloneHeading(line, lines[i-1]) {
			blocks = append(blocks, block)
			blocks = append(blocks, []string{line})
			block = nil
			continue
		}
		if i == 0 && len(lines) > 1 && c.headings.Score(line) >= c.threshold {
			blocks = append(blocks, []string{line})
			continue
		}
		block = append(block, line)
	}
	if len(block) > 0 {
		blocks = append(blocks, block)
	}

	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if len(b) == 0 {
			continue
		}
		if IsTableTitle(b[0]) {
			out = append(out, strings.Join(b, "\n"))
		} else {
			out = append(out, strings.Join(b, " "))
		}
	}
	return out
}

// isStandaloneHeading 段落中间的行：强标题直接拆出，弱标题需要前一行以句末标点结束
func (c *Cleaner) isStandaloneHeading(line, prev string) bool {
	score := c.headings.Score(line)
	if score < c.threshold {
		return false
	}
	if score >= 1.0 {
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(prev)
	switch last {
	case '.', '!', '?', ':':
		return true
	}
	return false
}
