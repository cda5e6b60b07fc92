package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/document"
)

// SummaryConfig 摘要抽取配置
type SummaryConfig struct {
	MinSentenceLen int // 候选句最少字符数
	MaxSentenceLen int // 候选句最多字符数
	MinSentences   int // 少于该数量的候选句时改用首段截断
	MaxSentences   int // 最多选取句数，0表示不限
}

// DefaultSummaryConfig 返回默认摘要配置
func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{
		MinSentenceLen: 20,
		MaxSentenceLen: 500,
		MinSentences:   3,
		MaxSentences:   5,
	}
}

var noisePrefix = regexp.MustCompile(`^(?:Table|Fig|Figure|Chapter|Downloaded)\b`)

// Summarizer 按临床关键词加权选句的抽取式摘要器
type Summarizer struct {
	config   SummaryConfig
	keywords []KeywordRule
	bonuses  []KeywordRule
}

// NewSummarizer 创建摘要器，规则表为空时使用默认表
func NewSummarizer(config SummaryConfig, keywords, bonuses []KeywordRule) *Summarizer {
	if keywords == nil {
		keywords = DefaultKeywordRules
	}
	if bonuses == nil {
		bonuses = DefaultBonusRules
	}
	return &Summarizer{config: config, keywords: keywords, bonuses: bonuses}
}

type candidate struct {
	index int
	text  string
	score float64
}

// Summarize 返回不超过 maxChars 个字符的摘要，句子保持原文顺序
func (s *Summarizer) Summarize(content string, maxChars int) string {
	content = strings.TrimSpace(content)
	if content == "" || maxChars <= 0 {
		return ""
	}

	var cands []candidate
	for i, sent := range document.SplitSentences(content) {
		n := utf8.RuneCountInString(sent)
		if n < s.config.MinSentenceLen || n > s.config.MaxSentenceLen || noisePrefix.MatchString(sent) {
			continue
		}
		cands = append(cands, candidate{index: i, text: sent, score: scoreSentence(sent, s.keywords, s.bonuses)})
	}
	if len(cands) < s.config.MinSentences {
		return leadingText(content, maxChars)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].index < cands[j].index
	})

	seen := make(map[string]bool)
	var chosen []candidate
	used := 0
	for _, c := range cands {
		if s.config.MaxSentences > 0 && len(chosen) >= s.config.MaxSentences {
			break
		}
		if seen[c.text] {
			continue
		}
		n := utf8.RuneCountInString(c.text)
		if len(chosen) > 0 {
			n++ // 分隔空格
		}
		if used+n > maxChars {
			continue
		}
		seen[c.text] = true
		chosen = append(chosen, c)
		used += n
	}
	if len(chosen) == 0 {
		return leadingText(content, maxChars)
	}

	sort.Slice(chosen, func(i, j int) bool { return chosen[i].index < chosen[j].index })
	parts := make([]string, len(chosen))
	for i, c := range chosen {
		parts[i] = c.text
	}
	return strings.Join(parts, " ")
}

// leadingText 取首段，在单词边界处截断到 maxChars 个字符以内
func leadingText(content string, maxChars int) string {
	para := content
	if i := strings.Index(content, "\n\n"); i >= 0 {
		para = content[:i]
	}
	para = strings.Join(strings.Fields(para), " ")

	if utf8.RuneCountInString(para) <= maxChars {
		return para
	}

	runes := []rune(para)
	cut := maxChars
	for cut > 0 && !unicode.IsSpace(runes[cut]) {
		cut--
	}
	if cut == 0 {
		// 单个词超过预算，只能按字符截断
		return string(runes[:maxChars])
	}
	return strings.TrimSpace(string(runes[:cut]))
}
