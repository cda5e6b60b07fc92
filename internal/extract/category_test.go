package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCategoryTable(t *testing.T) {
	c, err := NewClassifier(DefaultCategoryRanges())
	require.NoError(t, err)
	require.Equal(t, 699, c.MaxChapter())

	// 每个章节号恰好落在一个区间内
	ranges := DefaultCategoryRanges()
	for n := 1; n <= c.MaxChapter(); n++ {
		hits := 0
		for _, r := range ranges {
			if n >= r.From && n <= r.To {
				hits++
			}
		}
		assert.Equal(t, 1, hits, "chapter %d", n)
		assert.NotEqual(t, Uncategorized, c.Classify(n))
	}
}

func TestClassify(t *testing.T) {
	c, err := NewClassifier(DefaultCategoryRanges())
	require.NoError(t, err)

	tests := []struct {
		chapter int
		want    string
	}{
		{1, "General Pediatrics"},
		{5, "General Pediatrics"},
		{6, "Social & Preventive Medicine"},
		{104, "Genetics"},
		{205, "Neonatal Medicine"},
		{399, "Infectious Diseases"},
		{699, "Pulmonology"},
		{700, Uncategorized},
		{750, Uncategorized},
		{0, Uncategorized},
		{-3, Uncategorized},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(tt.chapter), "chapter %d", tt.chapter)
	}
}

func TestNewClassifierRejectsBadTables(t *testing.T) {
	tests := []struct {
		name   string
		ranges []CategoryRange
	}{
		{"空表", nil},
		{"不从1开始", []CategoryRange{{2, 5, "A"}}},
		{"空洞", []CategoryRange{{1, 5, "A"}, {7, 9, "B"}}},
		{"重叠", []CategoryRange{{1, 5, "A"}, {5, 9, "B"}}},
		{"倒置", []CategoryRange{{1, 5, "A"}, {9, 6, "B"}}},
		{"缺少标签", []CategoryRange{{1, 5, " "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClassifier(tt.ranges)
			assert.Error(t, err)
		})
	}
}
