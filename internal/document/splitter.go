package document

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

// SplitterConfig 分块器配置
type SplitterConfig struct {
	ChunkCount          int     // 每章块数 k
	WindowFraction      float64 // 理想切点两侧的搜索窗口，占单块名义长度的比例
	HeadingThreshold    float64 // 切点处标题行的最低得分
	MicroChunkSize      int     // 子块名义长度
	MicroWindowFraction float64 // 子块切分的搜索窗口比例
}

// DefaultSplitterConfig 返回默认分块器配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkCount:          3,
		WindowFraction:      0.25,
		HeadingThreshold:    1.0,
		MicroChunkSize:      1000,
		MicroWindowFraction: 0.2,
	}
}

// ChunkSplitter 按近似等比例、优先在章节标题处切分章节文本
type ChunkSplitter struct {
	config   SplitterConfig
	headings *HeadingMatcher
}

// NewChunkSplitter 创建分块器
func NewChunkSplitter(config SplitterConfig, headings *HeadingMatcher) *ChunkSplitter {
	if config.ChunkCount < 1 {
		config.ChunkCount = 1
	}
	if headings == nil {
		headings = NewHeadingMatcher(nil)
	}
	return &ChunkSplitter{config: config, headings: headings}
}

// ChunkCount 返回每章块数
func (s *ChunkSplitter) ChunkCount() int {
	return s.config.ChunkCount
}

// boundaries 文本中的候选切点，均为升序字节偏移
type boundaries struct {
	headings   []int // 标题行行首
	paragraphs []int // 段落首
	words      []int // 单词首
	nonSpace   []int // 非空白字符起始
}

// Split 将章节文本切成恰好 k 个非空、连续、不重叠的块
func (s *ChunkSplitter) Split(chapterNumber int, text string) ([]models.Chunk, error) {
	k := s.config.ChunkCount
	if strings.TrimSpace(text) == "" {
		return nil, &models.ChunkingError{ChapterNumber: chapterNumber, Reason: "empty chapter text"}
	}

	b := s.scan(text)
	if len(b.nonSpace) < k {
		return nil, &models.ChunkingError{
			ChapterNumber: chapterNumber,
			Reason:        fmt.Sprintf("%d non-space characters cannot form %d chunks", len(b.nonSpace), k),
		}
	}

	total := len(text)
	nominal := float64(total) / float64(k)
	window := int(s.config.WindowFraction * nominal)

	cuts := make([]int, 0, k+1)
	cuts = append(cuts, 0)
	for i := 1; i < k; i++ {
		prev := cuts[i-1]

		// 当前块至少保留一个非空白字符，后续每块也至少留一个
		j := sort.SearchInts(b.nonSpace, prev)
		_, size := utf8.DecodeRuneInString(text[b.nonSpace[j]:])
		lo := b.nonSpace[j] + size
		hi := b.nonSpace[len(b.nonSpace)-(k-i)]

		target := int(float64(i) * nominal)
		cuts = append(cuts, s.chooseCut(text, b, target, window, lo, hi))
	}
	cuts = append(cuts, total)

	chunks := make([]models.Chunk, 0, k)
	for i := 0; i < k; i++ {
		chunks = append(chunks, models.Chunk{
			ChapterNumber: chapterNumber,
			Index:         i + 1,
			Content:       strings.TrimSpace(text[cuts[i]:cuts[i+1]]),
			Start:         cuts[i],
			End:           cuts[i+1],
		})
	}
	return chunks, nil
}

// chooseCut 依次尝试窗口内的标题、窗口内的段落首、全局最近的单词首，最后退回到字符边界
func (s *ChunkSplitter) chooseCut(text string, b boundaries, target, window, lo, hi int) int {
	wlo, whi := max(lo, target-window), min(hi, target+window)
	if wlo <= whi {
		if c, ok := nearest(b.headings, target, wlo, whi); ok {
			return c
		}
		if c, ok := nearest(b.paragraphs, target, wlo, whi); ok {
			return c
		}
	}
	if c, ok := nearest(b.words, target, lo, hi); ok {
		return c
	}

	c := min(max(target, lo), hi)
	for c > lo && !utf8.RuneStart(text[c]) {
		c--
	}
	return c
}

// nearest 在 [lo, hi] 内寻找离 target 最近的候选，距离相同取较早者
func nearest(cands []int, target, lo, hi int) (int, bool) {
	a := sort.SearchInts(cands, lo)
	z := sort.SearchInts(cands, hi+1)
	if a >= z {
		return 0, false
	}
	in := cands[a:z]

	i := sort.SearchInts(in, target)
	switch {
	case i == 0:
		return in[0], true
	case i == len(in):
		return in[len(in)-1], true
	}
	if target-in[i-1] <= in[i]-target {
		return in[i-1], true
	}
	return in[i], true
}

// scan 一次遍历收集所有候选切点
func (s *ChunkSplitter) scan(text string) boundaries {
	var b boundaries

	lineStart := 0
	blankBefore := true
	for lineStart <= len(text) {
		end := strings.IndexByte(text[lineStart:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += lineStart
		}
		line := text[lineStart:end]

		if strings.TrimSpace(line) == "" {
			blankBefore = true
		} else {
			if blankBefore && lineStart > 0 {
				b.paragraphs = append(b.paragraphs, lineStart)
			}
			if lineStart > 0 && s.headings.Score(line) >= s.config.HeadingThreshold {
				b.headings = append(b.headings, lineStart)
			}
			blankBefore = false
		}

		if end == len(text) {
			break
		}
		lineStart = end + 1
	}

	prevSpace := true
	for i, r := range text {
		space := unicode.IsSpace(r)
		if !space {
			b.nonSpace = append(b.nonSpace, i)
			if prevSpace && i > 0 {
				b.words = append(b.words, i)
			}
		}
		prevSpace = space
	}

	return b
}

// MicroSplit 在块内按子标题再切分，子块按顺序拼接等于原内容
// 块内没有可用的子标题时返回 nil
func (s *ChunkSplitter) MicroSplit(content string) []string {
	size := s.config.MicroChunkSize
	if size <= 0 || len(content) <= size {
		return nil
	}

	m := int(math.Ceil(float64(len(content)) / float64(size)))
	nominal := float64(len(content)) / float64(m)
	window := int(s.config.MicroWindowFraction * nominal)

	headings := s.scan(content).headings
	var cuts []int
	last := 0
	for j := 1; j < m; j++ {
		target := int(float64(j) * nominal)
		c, ok := nearest(headings, target, max(last+1, target-window), min(len(content)-1, target+window))
		if !ok {
			continue
		}
		cuts = append(cuts, c)
		last = c
	}
	if len(cuts) == 0 {
		return nil
	}

	parts := make([]string, 0, len(cuts)+1)
	prev := 0
	for _, c := range cuts {
		parts = append(parts, content[prev:c])
		prev = c
	}
	return append(parts, content[prev:])
}
