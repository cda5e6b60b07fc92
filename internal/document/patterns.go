package document

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// HeadingRule 标题识别规则
// Weight 为命中该规则时行的标题得分，多条规则命中时取最大值
type HeadingRule struct {
	Name    string
	Pattern *regexp.Regexp
	Weight  float64
}

// SectionKeywords 临床章节标题关键词
var SectionKeywords = []string{
	"introduction",
	"overview",
	"epidemiology",
	"etiology",
	"pathogenesis",
	"pathophysiology",
	"pathology",
	"genetics",
	"clinical manifestations",
	"clinical features",
	"clinical presentation",
	"laboratory findings",
	"diagnosis",
	"differential diagnosis",
	"screening",
	"treatment",
	"management",
	"supportive care",
	"complications",
	"prognosis",
	"prevention",
}

// MaxHeadingLen 标题行的最大长度（字符）
const MaxHeadingLen = 80

// DefaultHeadingRules 默认标题规则表
var DefaultHeadingRules = []HeadingRule{
	{
		Name:    "all_caps",
		Pattern: regexp.MustCompile(`^[\p{Lu}0-9][\p{Lu}0-9 ,&/()'-]*[\p{Lu})]$`),
		Weight:  1.0,
	},
	{
		Name: "section_keyword",
		Pattern: regexp.MustCompile(`(?i)^(?:` + strings.Join(SectionKeywords, "|") +
			`)(?:\s+(?:and|of|in|&)\s+\p{L}+(?:\s+\p{L}+){0,3})?\s*:?$`),
		Weight: 1.0,
	},
	{
		Name:    "title_case",
		Pattern: regexp.MustCompile(`^(?:\p{Lu}[\p{Ll}'-]+|\p{Lu}{2,})(?:\s+(?:and|of|the|in|for|with|to|or|a|an|on|by|vs|\p{Lu}[\p{L}'-]*)){0,6}$`),
		Weight:  0.5,
	},
}

// HeadingMatcher 基于规则表对行打分
type HeadingMatcher struct {
	rules []HeadingRule
}

// NewHeadingMatcher 创建标题匹配器，rules为空时使用默认规则
func NewHeadingMatcher(rules []HeadingRule) *HeadingMatcher {
	if len(rules) == 0 {
		rules = DefaultHeadingRules
	}
	return &HeadingMatcher{rules: rules}
}

// Score 返回行的标题得分，0表示不是标题
func (m *HeadingMatcher) Score(line string) float64 {
	line = strings.TrimSpace(line)
	if !plausibleHeading(line) {
		return 0
	}

	best := 0.0
	for _, r := range m.rules {
		if r.Weight > best && r.Pattern.MatchString(line) {
			best = r.Weight
		}
	}
	return best
}

// plausibleHeading 规则无关的前置过滤：长度、结尾标点、字母数量
func plausibleHeading(line string) bool {
	n := utf8.RuneCountInString(line)
	if n == 0 || n > MaxHeadingLen {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	switch last {
	case '.', ',', ';', '!', '?':
		return false
	}

	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 3
}

// tableTitlePattern 临床表格标题，如 "Table 12-3" 或 "Table 4.1"
var tableTitlePattern = regexp.MustCompile(`^Table\s+\d+[.\-]\d+`)

// IsTableTitle 判断行是否为表格标题
func IsTableTitle(line string) bool {
	return tableTitlePattern.MatchString(strings.TrimSpace(line))
}
