package extract

import (
	"fmt"
	"sort"
	"strings"
)

// Uncategorized 不在任何区间内的章节号对应的类别
const Uncategorized = "Uncategorized"

// CategoryRange 闭区间 [From, To] 内的章节属于 Label
type CategoryRange struct {
	From  int    `mapstructure:"from" json:"from"`
	To    int    `mapstructure:"to" json:"to"`
	Label string `mapstructure:"label" json:"label"`
}

// DefaultCategoryRanges 儿科学教材的专科划分
func DefaultCategoryRanges() []CategoryRange {
	return []CategoryRange{
		{1, 5, "General Pediatrics"},
		{6, 18, "Social & Preventive Medicine"},
		{19, 31, "Child Development"},
		{32, 46, "Behavioral Pediatrics"},
		{47, 56, "Neurodevelopmental Disorders"},
		{57, 72, "Nutrition & Metabolism"},
		{73, 86, "Fluid & Electrolytes"},
		{87, 103, "Emergency Medicine"},
		{104, 110, "Genetics"},
		{111, 199, "Metabolic Diseases"},
		{200, 209, "Neonatal Medicine"},
		{210, 399, "Infectious Diseases"},
		{400, 449, "Immunology"},
		{450, 499, "Allergy"},
		{500, 549, "Rheumatology"},
		{550, 599, "Gastroenterology"},
		{600, 649, "Cardiology"},
		{650, 699, "Pulmonology"},
	}
}

// Classifier 按章节号区间查找类别
type Classifier struct {
	ranges []CategoryRange
}

// NewClassifier 校验区间表后创建分类器
// 区间必须从1开始、升序、首尾相接，不允许空洞或重叠
func NewClassifier(ranges []CategoryRange) (*Classifier, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("category table is empty")
	}

	next := 1
	for i, r := range ranges {
		if strings.TrimSpace(r.Label) == "" {
			return nil, fmt.Errorf("category range %d has no label", i)
		}
		if r.From > r.To {
			return nil, fmt.Errorf("category %q: range %d-%d is inverted", r.Label, r.From, r.To)
		}
		if r.From < next {
			return nil, fmt.Errorf("category %q: range %d-%d overlaps previous range", r.Label, r.From, r.To)
		}
		if r.From > next {
			return nil, fmt.Errorf("category %q: gap before chapter %d", r.Label, r.From)
		}
		next = r.To + 1
	}

	return &Classifier{ranges: append([]CategoryRange(nil), ranges...)}, nil
}

// Classify 返回章节号所属类别，区间外返回 Uncategorized
func (c *Classifier) Classify(chapterNumber int) string {
	i := sort.Search(len(c.ranges), func(i int) bool {
		return c.ranges[i].To >= chapterNumber
	})
	if i < len(c.ranges) && c.ranges[i].From <= chapterNumber {
		return c.ranges[i].Label
	}
	return Uncategorized
}

// MaxChapter 返回区间表覆盖的最大章节号
func (c *Classifier) MaxChapter() int {
	return c.ranges[len(c.ranges)-1].To
}

// Labels 按区间顺序返回所有类别名（可能重复）
func (c *Classifier) Labels() []string {
	labels := make([]string, len(c.ranges))
	for i, r := range c.ranges {
		labels[i] = r.Label
	}
	return labels
}
