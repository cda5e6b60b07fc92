package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadingMatcher(t *testing.T) {
	m := NewHeadingMatcher(nil)

	tests := []struct {
		line  string
		score float64
	}{
		{"INTRODUCTION", 1.0},
		{"DIAGNOSIS AND TREATMENT", 1.0},
		{"Clinical Manifestations", 1.0},
		{"Treatment:", 1.0},
		{"Differential Diagnosis", 1.0},
		{"Approach to the Child", 0.5},
		{"Overview of Pediatrics", 1.0},
		{"Iron Deficiency Anemia", 0.5},
		{"The child was febrile.", 0},
		{"treatment is supportive and includes fluids", 0},
		{"45", 0},
		{"", 0},
		{strings.Repeat("LONG ", 30), 0},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.score, m.Score(tt.line))
		})
	}
}

func TestHeadingMatcherCustomRules(t *testing.T) {
	m := NewHeadingMatcher([]HeadingRule{
		{Name: "numbered", Pattern: tableTitlePattern, Weight: 0.7},
	})
	assert.Equal(t, 0.7, m.Score("Table 4-1 Normal Values"))
	assert.Equal(t, 0.0, m.Score("INTRODUCTION"))
}

func TestHeadingPatternsLinearTime(t *testing.T) {
	m := NewHeadingMatcher(nil)
	// 超长行在规则匹配前被长度过滤，规则本身基于RE2也不会回溯
	for _, r := range DefaultHeadingRules {
		assert.False(t, r.Pattern.MatchString(strings.Repeat("A a ", 50000)+"!"))
	}
	assert.Equal(t, 0.0, m.Score(strings.Repeat("Aa ", 100000)))
}

func TestSplitSentences(t *testing.T) {
	text := "Treatment is supportive. Fever (e.g. above 38 °C) is common! Is it viral? Dose is 2.5 mg/kg.\nTable 3-1 Values\nNo punctuation here"
	got := SplitSentences(text)

	assert.Equal(t, []string{
		"Treatment is supportive.",
		"Fever (e.g. above 38 °C) is common!",
		"Is it viral?",
		"Dose is 2.5 mg/kg.",
		"Table 3-1 Values",
		"No punctuation here",
	}, got)
}

func TestSplitSentencesAbbreviations(t *testing.T) {
	got := SplitSentences(`Smith et al. reported outcomes. See Fig. 2 for details. He said "stop." Then left.`)
	assert.Equal(t, []string{
		"Smith et al. reported outcomes.",
		"See Fig. 2 for details.",
		`He said "stop."`,
		"Then left.",
	}, got)
}

func TestExtractTables(t *testing.T) {
	content := "Intro paragraph.\n\nTable 12-3 Causes of Neonatal Jaundice\nPhysiologic\nBreast milk\nHemolysis\n\nTable 12-4 Empty\nonly one row\n\nTable 5.1 Doses\n" +
		strings.Repeat("row\n", 15)

	tables := ExtractTables(content)
	require.Len(t, tables, 2)

	assert.Equal(t, "Table 12-3 Causes of Neonatal Jaundice", tables[0].Title)
	assert.Equal(t, []string{"Physiologic", "Breast milk", "Hemolysis"}, tables[0].Rows)

	assert.Equal(t, "Table 5.1 Doses", tables[1].Title)
	assert.Len(t, tables[1].Rows, 10)
}

func TestParseTOC(t *testing.T) {
	input := "TABLE OF CONTENTS\nCHAPTER: Overview of Pediatrics (Page: 1)\n\nCHAPTER: Ethics in Pediatric Care (Page: 12)\nnoise line\nCHAPTER: Genetic Counseling\n"

	entries, err := ParseTOC(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, 1, entries[0].ChapterNumber)
	assert.Equal(t, "Overview of Pediatrics", entries[0].ChapterName)
	assert.Equal(t, 1, entries[0].Page)

	assert.Equal(t, 2, entries[1].ChapterNumber)
	assert.Equal(t, 12, entries[1].Page)

	assert.Equal(t, 3, entries[2].ChapterNumber)
	assert.Equal(t, "Genetic Counseling", entries[2].ChapterName)
	assert.Equal(t, 0, entries[2].Page)
}

func TestParseTOCFileMissing(t *testing.T) {
	_, err := ParseTOCFile("/nonexistent/toc.txt")
	assert.Error(t, err)
}
