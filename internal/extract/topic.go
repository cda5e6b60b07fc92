package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/document"
)

// MaxTopicWords 主题标签最多词数
const MaxTopicWords = 5

// TopicTier 一层主题推断，失败时返回 false
type TopicTier func(content string) (string, bool)

// FirstSuccess 依次尝试各层，返回第一个成功的结果
func FirstSuccess(tiers ...TopicTier) TopicTier {
	return func(content string) (string, bool) {
		for _, tier := range tiers {
			if label, ok := tier(content); ok {
				return label, true
			}
		}
		return "", false
	}
}

var positionalLabel = regexp.MustCompile(`(?i)^(?:part|section|chunk|chapter|page)\s+(?:\d+|[ivxlc]+)$`)

// minorWords Title Case 中保持小写的词
var minorWords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "by": true, "for": true,
	"from": true, "in": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"vs": true, "with": true,
}

var leadingDeterminers = map[string]bool{
	"a": true, "an": true, "the": true, "this": true, "these": true, "those": true,
	"that": true, "its": true, "their": true, "most": true, "many": true, "some": true,
	"all": true, "in": true, "of": true, "for": true, "although": true, "because": true,
}

// verbBoundary 名词短语结束处的常见动词
var verbBoundary = map[string]bool{
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"has": true, "have": true, "had": true, "can": true, "may": true, "might": true,
	"will": true, "should": true, "must": true, "could": true, "would": true, "does": true,
	"include": true, "includes": true, "occur": true, "occurs": true, "cause": true,
	"causes": true, "result": true, "results": true, "affect": true, "affects": true,
	"present": true, "presents": true, "develop": true, "develops": true, "require": true,
	"requires": true, "refers": true, "remains": true, "consists": true, "involves": true,
	"represents": true, "becomes": true, "appears": true, "leads": true, "depends": true,
	"relies": true, "describes": true, "provides": true, "reflects": true,
	"follow": true, "follows": true, "begins": true, "begin": true,
}

var stopwords = map[string]bool{
	"about": true, "after": true, "also": true, "although": true, "among": true, "because": true,
	"been": true, "before": true, "being": true, "between": true, "both": true, "could": true,
	"does": true, "during": true, "each": true, "either": true, "from": true, "have": true,
	"however": true, "into": true, "itself": true, "many": true, "more": true, "most": true,
	"much": true, "must": true, "only": true, "other": true, "over": true, "same": true,
	"should": true, "some": true, "such": true, "than": true, "that": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true, "this": true,
	"those": true, "through": true, "under": true, "until": true, "very": true, "were": true,
	"what": true, "when": true, "where": true, "which": true, "while": true, "with": true,
	"within": true, "without": true, "would": true, "your": true, "usually": true, "often": true,
	"include": true, "includes": true, "including": true, "occurs": true, "patients": true,
	"patient": true, "child": true, "children": true, "years": true, "table": true, "figure": true,
}

// TopicLabeler 为块生成1至5个词的主题标签
type TopicLabeler struct {
	headings  *document.HeadingMatcher
	threshold float64
	caser     cases.Caser
	label     TopicTier
}

// NewTopicLabeler 创建主题标签器
// threshold 为标题层接受的最低标题得分
func NewTopicLabeler(headings *document.HeadingMatcher, threshold float64) *TopicLabeler {
	if headings == nil {
		headings = document.NewHeadingMatcher(nil)
	}
	l := &TopicLabeler{
		headings:  headings,
		threshold: threshold,
		caser:     cases.Title(language.English, cases.NoLower),
	}
	l.label = FirstSuccess(l.fromHeading, l.fromLeadingPhrase, l.fromSalience)
	return l
}

// Label 依次尝试标题行、首句名词短语、关键词显著度，最后退回到章节名
func (l *TopicLabeler) Label(content, chapterName string) string {
	if label, ok := l.label(content); ok {
		return label
	}
	if label, ok := l.accept(strings.Fields(chapterName), false); ok {
		return label
	}
	return strings.TrimSpace(chapterName)
}

func (l *TopicLabeler) fromHeading(content string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || l.headings.Score(line) < l.threshold {
			continue
		}
		allCaps := strings.ToUpper(line) == line
		if label, ok := l.accept(words(line), allCaps); ok {
			return label, true
		}
	}
	return "", false
}

func (l *TopicLabeler) fromLeadingPhrase(content string) (string, bool) {
	var first string
	for _, s := range document.SplitSentences(content) {
		if l.headings.Score(s) == 0 && strings.IndexFunc(s, unicode.IsLetter) >= 0 {
			first = s
			break
		}
	}
	if first == "" {
		return "", false
	}

	if i := strings.IndexAny(first, ",;:()"); i >= 0 {
		first = first[:i]
	}

	var phrase []string
	for _, w := range words(first) {
		lw := strings.ToLower(w)
		if len(phrase) == 0 && leadingDeterminers[lw] {
			continue
		}
		if verbBoundary[lw] {
			break
		}
		phrase = append(phrase, w)
		if len(phrase) == MaxTopicWords {
			break
		}
	}

	// 去掉末尾的功能词
	for len(phrase) > 0 && (minorWords[strings.ToLower(phrase[len(phrase)-1])] || leadingDeterminers[strings.ToLower(phrase[len(phrase)-1])]) {
		phrase = phrase[:len(phrase)-1]
	}
	if len(phrase) == 0 {
		return "", false
	}
	return l.accept(phrase, false)
}

// fromSalience 取最高频的相邻实词二元组（至少出现两次），否则取最高频实词
// 频次相同时取最早出现者
func (l *TopicLabeler) fromSalience(content string) (string, bool) {
	tokens := lo.Map(words(content), func(w string, _ int) string { return strings.ToLower(w) })
	isContent := func(w string) bool {
		return len([]rune(w)) >= 4 && !stopwords[w] && !verbBoundary[w] && strings.IndexFunc(w, unicode.IsDigit) < 0
	}

	var bigrams []string
	for i := 0; i+1 < len(tokens); i++ {
		if isContent(tokens[i]) && isContent(tokens[i+1]) {
			bigrams = append(bigrams, tokens[i]+" "+tokens[i+1])
		}
	}
	if best, n := mostFrequent(bigrams); n >= 2 {
		return l.accept(strings.Fields(best), false)
	}

	if best, n := mostFrequent(lo.Filter(tokens, func(w string, _ int) bool { return isContent(w) })); n > 0 {
		return l.accept([]string{best}, false)
	}
	return "", false
}

// mostFrequent 返回出现次数最多的元素，次数相同取最早出现者
func mostFrequent(items []string) (string, int) {
	counts := lo.CountValues(items)
	best, bestCount := "", 0
	for _, it := range lo.Uniq(items) {
		if counts[it] > bestCount {
			best, bestCount = it, counts[it]
		}
	}
	return best, bestCount
}

// accept 规范化词序列并拒绝位置性标签
func (l *TopicLabeler) accept(ws []string, lower bool) (string, bool) {
	ws = lo.Filter(lo.Map(ws, func(w string, _ int) string { return stripPunct(w) }), func(w string, _ int) bool { return w != "" })
	if len(ws) == 0 {
		return "", false
	}
	if len(ws) > MaxTopicWords {
		ws = ws[:MaxTopicWords]
	}

	out := make([]string, len(ws))
	for i, w := range ws {
		lw := strings.ToLower(w)
		switch {
		case i > 0 && minorWords[lw]:
			out[i] = lw
		case !lower && isAcronym(w):
			out[i] = w
		default:
			out[i] = l.caser.String(lw)
		}
	}

	label := strings.Join(out, " ")
	if positionalLabel.MatchString(label) || strings.IndexFunc(label, unicode.IsLetter) < 0 {
		return "", false
	}
	return label, true
}

// words 按空白切词，去掉词首尾的标点
func words(s string) []string {
	return lo.Filter(lo.Map(strings.Fields(s), func(w string, _ int) string { return stripPunct(w) }),
		func(w string, _ int) bool { return w != "" })
}

func stripPunct(w string) string {
	w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '\'' {
			return r
		}
		return -1
	}, w)
}

func isAcronym(w string) bool {
	letters := 0
	for _, r := range w {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}
